// Package memory provides in-process implementations of the identity
// provider and message collection ports. They back FIRECHAT_BACKEND=memory
// for local runs without a Firebase project.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// ErrUnavailable is returned by every call while the backend is offline.
var ErrUnavailable = errors.New("backend unavailable")

// Compile-time interface satisfaction check.
var _ driven.MessageCollection = (*Collection)(nil)

// Collection is an ordered in-process message collection with live
// subscriptions. Each subscriber receives the full result set after every
// write; snapshots that arrive faster than a subscriber consumes them
// coalesce to the latest.
type Collection struct {
	now func() time.Time

	mu      sync.Mutex
	docs    []model.Message
	subs    map[*subscriber]struct{}
	offline bool
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{
		now:  time.Now,
		subs: make(map[*subscriber]struct{}),
	}
}

// SetOffline makes Add fail with ErrUnavailable and pushes the error to every
// subscriber when switched on.
func (c *Collection) SetOffline(offline bool) {
	c.mu.Lock()
	c.offline = offline
	subs := c.subscribersLocked()
	c.mu.Unlock()

	if offline {
		for _, s := range subs {
			s.fail(ErrUnavailable)
		}
	}
}

// Subscribe delivers the current result set immediately, then again after
// every Add.
func (c *Collection) Subscribe(ctx context.Context, q driven.OrderedQuery, onNext func(model.Snapshot), onError func(error)) func() {
	s := &subscriber{
		query:   q,
		onNext:  onNext,
		onError: onError,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	c.subs[s] = struct{}{}
	s.push(c.snapshotLocked(q))
	c.mu.Unlock()

	go s.run(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, s)
			c.mu.Unlock()

			close(s.stop)
			<-s.done
		})
	}
}

// Add appends msg with a fresh id and the current time as createdAt.
func (c *Collection) Add(ctx context.Context, msg model.NewMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.offline {
		c.mu.Unlock()
		return ErrUnavailable
	}
	created := model.TimestampFrom(c.now())
	c.docs = append(c.docs, model.Message{
		ID:          uuid.NewString(),
		Text:        msg.Text,
		User:        msg.User,
		ImageBase64: msg.ImageBase64,
		CreatedAt:   &created,
	})
	for _, s := range c.subscribersLocked() {
		s.push(c.snapshotLocked(s.query))
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored messages.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection) subscribersLocked() []*subscriber {
	subs := make([]*subscriber, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	return subs
}

func (c *Collection) snapshotLocked(q driven.OrderedQuery) model.Snapshot {
	msgs := slices.Clone(c.docs)
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		return compareCreatedAt(a, b)
	})
	if q.Direction == driven.Desc {
		slices.Reverse(msgs)
	}
	return model.Snapshot{Messages: msgs, ReadTime: c.now()}
}

func compareCreatedAt(a, b model.Message) int {
	at, bt := a.CreatedAt, b.CreatedAt
	switch {
	case at == nil && bt == nil:
		return 0
	case at == nil:
		return 1
	case bt == nil:
		return -1
	}
	return at.Time().Compare(bt.Time())
}

type subscriber struct {
	query   driven.OrderedQuery
	onNext  func(model.Snapshot)
	onError func(error)

	mu      sync.Mutex
	pending *model.Snapshot
	err     error

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func (s *subscriber) push(snap model.Snapshot) {
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-s.wake:
			s.mu.Lock()
			snap, err := s.pending, s.err
			s.pending, s.err = nil, nil
			s.mu.Unlock()

			if err != nil {
				s.onError(err)
			}
			if snap != nil {
				s.onNext(*snap)
			}
		}
	}
}
