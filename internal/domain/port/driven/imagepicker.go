package driven

import (
	"context"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// ImagePicker lets the user choose one image. Pick blocks until the user
// picks, cancels, or the picker fails.
type ImagePicker interface {
	Pick(ctx context.Context) model.PickResult
}
