// Package firestore implements the message collection port on Cloud
// Firestore snapshot listeners.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MessageCollection = (*Collection)(nil)

// record is the stored document layout. CreatedAt is nil until the server
// has resolved the timestamp sentinel.
type record struct {
	Text        string     `firestore:"text"`
	User        string     `firestore:"user"`
	ImageBase64 *string    `firestore:"imageBase64"`
	CreatedAt   *time.Time `firestore:"createdAt"`
}

// outbound is the layout written by Add. The zero CreatedAt is replaced by
// the commit time on the server.
type outbound struct {
	Text        string    `firestore:"text"`
	User        string    `firestore:"user"`
	ImageBase64 *string   `firestore:"imageBase64"`
	CreatedAt   time.Time `firestore:"createdAt,serverTimestamp"`
}

// Collection is one Firestore collection of chat messages.
type Collection struct {
	client *firestore.Client
	ref    *firestore.CollectionRef
}

// NewClient opens a Firestore client for projectID. Calls carry the
// signed-in user's ID token from tokens, so security rules apply to that
// account. A non-empty credentialsFile switches to service-account access,
// which bypasses security rules and is meant for development only.
// FIRESTORE_EMULATOR_HOST is honored by the client library.
func NewClient(ctx context.Context, projectID, credentialsFile string, tokens SessionTokens) (*firestore.Client, error) {
	var opts []option.ClientOption
	switch {
	case credentialsFile != "":
		slog.Warn("firestore uses service account credentials; security rules are bypassed", "file", credentialsFile)
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	case tokens != nil:
		opts = append(opts, option.WithTokenSource(sessionTokenSource{tokens: tokens}))
	default:
		return nil, errors.New("create firestore client: no session tokens or credentials file")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

// NewCollection creates a Collection over the named collection.
func NewCollection(client *firestore.Client, name string) *Collection {
	return &Collection{client: client, ref: client.Collection(name)}
}

// Subscribe listens to the ordered query on its own goroutine. Listener
// errors are terminal: onError is called once and the goroutine exits.
func (c *Collection) Subscribe(ctx context.Context, q driven.OrderedQuery, onNext func(model.Snapshot), onError func(error)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	it := c.ref.OrderBy(q.OrderBy, direction(q.Direction)).Snapshots(ctx)

	go func() {
		defer close(done)
		defer it.Stop()

		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || isStopped(err) {
					return
				}
				onError(fmt.Errorf("listen %s: %w", c.ref.ID, err))
				return
			}

			snap, err := toSnapshot(qs)
			if err != nil {
				onError(err)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			onNext(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			slog.Debug("firestore listener stopped", "collection", c.ref.ID)
		})
	}
}

// Add writes msg as a new document with a server-assigned createdAt.
func (c *Collection) Add(ctx context.Context, msg model.NewMessage) error {
	_, _, err := c.ref.Add(ctx, outbound{
		Text:        msg.Text,
		User:        msg.User,
		ImageBase64: msg.ImageBase64,
	})
	if err != nil {
		return fmt.Errorf("add to %s: %w", c.ref.ID, err)
	}
	return nil
}

func toSnapshot(qs *firestore.QuerySnapshot) (model.Snapshot, error) {
	docs, err := qs.Documents.GetAll()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read snapshot documents: %w", err)
	}

	messages := make([]model.Message, 0, len(docs))
	for _, doc := range docs {
		var rec record
		if err := doc.DataTo(&rec); err != nil {
			slog.Warn("skipping malformed message document", "id", doc.Ref.ID, "error", err)
			continue
		}
		messages = append(messages, toMessage(doc.Ref.ID, rec))
	}

	return model.Snapshot{Messages: messages, ReadTime: qs.ReadTime}, nil
}

func toMessage(id string, rec record) model.Message {
	m := model.Message{
		ID:          id,
		Text:        rec.Text,
		User:        rec.User,
		ImageBase64: rec.ImageBase64,
	}
	if rec.CreatedAt != nil {
		ts := model.TimestampFrom(*rec.CreatedAt)
		m.CreatedAt = &ts
	}
	return m
}

func direction(d driven.Direction) firestore.Direction {
	if d == driven.Desc {
		return firestore.Desc
	}
	return firestore.Asc
}

func isStopped(err error) bool {
	return errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled
}
