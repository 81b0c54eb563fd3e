package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// ErrInvalidLogin is returned by an IdentityProvider when the email/password
// pair is rejected. Network failures are returned as other errors.
var ErrInvalidLogin = errors.New("invalid email or password")

// IdentityProvider defines the driven port for the hosted identity service.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password string) (*model.Session, error)

	// Refresh exchanges a refresh token for a new session.
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
}
