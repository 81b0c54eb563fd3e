package driven

import (
	"context"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// Direction is the sort direction of an ordered query.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// OrderedQuery selects the whole collection ordered by one field.
type OrderedQuery struct {
	OrderBy   string
	Direction Direction
}

// CreatedAtAscending is the query the message feed subscribes to.
var CreatedAtAscending = OrderedQuery{OrderBy: "createdAt", Direction: Asc}

// MessageCollection defines the driven port for the hosted document collection.
type MessageCollection interface {
	// Subscribe opens a live query. onNext is called with every snapshot,
	// onError with every subscription error. Both may be called from another
	// goroutine. The returned func releases the subscription; after it
	// returns no further callbacks are made.
	Subscribe(ctx context.Context, q OrderedQuery, onNext func(model.Snapshot), onError func(error)) (unsubscribe func())

	// Add submits a new record. createdAt is assigned by the server.
	Add(ctx context.Context, msg model.NewMessage) error
}
