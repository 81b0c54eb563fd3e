package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// ErrInvalidSecretKey is returned when a credential store is constructed with
// a key that is not 32 bytes long.
var ErrInvalidSecretKey = errors.New("secret key must be 32 bytes: set FIRECHAT_SECRET_KEY to 64 hex chars")

// CredentialStore defines the driven port for the last-used login pair.
type CredentialStore interface {
	// Save stores or replaces the credentials.
	Save(ctx context.Context, creds model.Credentials) error

	// Load returns the stored credentials, or (nil, nil) if none are stored.
	Load(ctx context.Context) (*model.Credentials, error)

	// Clear removes the stored credentials.
	Clear(ctx context.Context) error
}
