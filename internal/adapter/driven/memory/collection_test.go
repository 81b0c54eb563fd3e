package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

type snapshotSink struct {
	mu     sync.Mutex
	snaps  []model.Snapshot
	errs   []error
	notify chan struct{}
}

func newSnapshotSink() *snapshotSink {
	return &snapshotSink{notify: make(chan struct{}, 64)}
}

func (s *snapshotSink) onNext(snap model.Snapshot) {
	s.mu.Lock()
	s.snaps = append(s.snaps, snap)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *snapshotSink) onError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

// waitFor blocks until cond holds or the test times out.
func (s *snapshotSink) waitFor(t *testing.T, cond func(snaps []model.Snapshot, errs []error) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		ok := cond(s.snaps, s.errs)
		s.mu.Unlock()
		if ok {
			return
		}
		select {
		case <-s.notify:
		case <-deadline:
			t.Fatal("condition not met before deadline")
		}
	}
}

func lastLen(snaps []model.Snapshot) int {
	if len(snaps) == 0 {
		return -1
	}
	return len(snaps[len(snaps)-1].Messages)
}

func TestCollection_InitialSnapshotIsEmpty(t *testing.T) {
	c := NewCollection()
	sink := newSnapshotSink()

	unsubscribe := c.Subscribe(context.Background(), driven.CreatedAtAscending, sink.onNext, sink.onError)
	defer unsubscribe()

	sink.waitFor(t, func(snaps []model.Snapshot, _ []error) bool { return len(snaps) == 1 })
	assert.True(t, sink.snaps[0].Empty())
}

func TestCollection_AddAssignsIDAndTimestamp(t *testing.T) {
	c := NewCollection()
	img := "data:image/jpeg;base64,AAAA"

	require.NoError(t, c.Add(context.Background(), model.NewMessage{Text: "", User: "x@x.com", ImageBase64: &img}))

	sink := newSnapshotSink()
	unsubscribe := c.Subscribe(context.Background(), driven.CreatedAtAscending, sink.onNext, sink.onError)
	defer unsubscribe()

	sink.waitFor(t, func(snaps []model.Snapshot, _ []error) bool { return lastLen(snaps) == 1 })
	m := sink.snaps[0].Messages[0]
	assert.NotEmpty(t, m.ID)
	assert.NotNil(t, m.CreatedAt)
	assert.Equal(t, &img, m.ImageBase64)
}

func TestCollection_OrderedByCreatedAt(t *testing.T) {
	c := NewCollection()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, c.Add(context.Background(), model.NewMessage{Text: text, User: "x@x.com"}))
	}

	asc := newSnapshotSink()
	defer c.Subscribe(context.Background(), driven.CreatedAtAscending, asc.onNext, asc.onError)()
	desc := newSnapshotSink()
	defer c.Subscribe(context.Background(), driven.OrderedQuery{OrderBy: "createdAt", Direction: driven.Desc}, desc.onNext, desc.onError)()

	asc.waitFor(t, func(snaps []model.Snapshot, _ []error) bool { return lastLen(snaps) == 3 })
	desc.waitFor(t, func(snaps []model.Snapshot, _ []error) bool { return lastLen(snaps) == 3 })

	texts := func(s model.Snapshot) []string {
		out := make([]string, 0, len(s.Messages))
		for _, m := range s.Messages {
			out = append(out, m.Text)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts(asc.snaps[len(asc.snaps)-1]))
	assert.Equal(t, []string{"c", "b", "a"}, texts(desc.snaps[len(desc.snaps)-1]))
}

func TestCollection_SubscribersSeeAdds(t *testing.T) {
	c := NewCollection()
	sink := newSnapshotSink()
	defer c.Subscribe(context.Background(), driven.CreatedAtAscending, sink.onNext, sink.onError)()

	require.NoError(t, c.Add(context.Background(), model.NewMessage{Text: "hi", User: "x@x.com"}))

	sink.waitFor(t, func(snaps []model.Snapshot, _ []error) bool { return lastLen(snaps) == 1 })
}

func TestCollection_NoCallbacksAfterUnsubscribe(t *testing.T) {
	c := NewCollection()
	sink := newSnapshotSink()
	unsubscribe := c.Subscribe(context.Background(), driven.CreatedAtAscending, sink.onNext, sink.onError)
	sink.waitFor(t, func(snaps []model.Snapshot, _ []error) bool { return len(snaps) == 1 })

	unsubscribe()
	unsubscribe()
	require.NoError(t, c.Add(context.Background(), model.NewMessage{Text: "late", User: "x@x.com"}))
	time.Sleep(20 * time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.snaps, 1)
}

func TestCollection_Offline(t *testing.T) {
	c := NewCollection()
	sink := newSnapshotSink()
	defer c.Subscribe(context.Background(), driven.CreatedAtAscending, sink.onNext, sink.onError)()

	c.SetOffline(true)

	err := c.Add(context.Background(), model.NewMessage{Text: "hi", User: "x@x.com"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, c.Len())
	sink.waitFor(t, func(_ []model.Snapshot, errs []error) bool { return len(errs) == 1 })

	c.SetOffline(false)
	require.NoError(t, c.Add(context.Background(), model.NewMessage{Text: "hi", User: "x@x.com"}))
	assert.Equal(t, 1, c.Len())
}
