package driven

import (
	"context"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// SessionStore persists the identity provider session between process runs.
type SessionStore interface {
	Save(ctx context.Context, session model.Session) error

	// Load returns the persisted session, or (nil, nil) if none is stored.
	Load(ctx context.Context) (*model.Session, error)

	Clear(ctx context.Context) error
}
