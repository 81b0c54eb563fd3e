package driven

import (
	"context"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// MessageCache defines the driven port for the last-known full message list.
type MessageCache interface {
	// Load returns the cached list. An absent cache yields an empty slice.
	Load(ctx context.Context) ([]model.Message, error)

	// Save overwrites the cached list with messages.
	Save(ctx context.Context, messages []model.Message) error
}
