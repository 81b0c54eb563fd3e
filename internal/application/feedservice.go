package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
	"github.com/ericfisherdev/firechat/internal/metrics"
)

// FeedService is the chat view's message feed. On Mount it paints the
// cached list, then keeps the displayed list in sync with the live ordered
// collection. An empty or failing remote never clears a populated view:
// empty snapshots are discarded and subscription errors are only logged.
//
// A FeedService is mounted at most once. After Unmount every late snapshot
// is dropped before it touches the displayed list or the cache.
type FeedService struct {
	collection driven.MessageCollection
	cache      driven.MessageCache
	identity   model.Identity
	metrics    metrics.Recorder

	mu          sync.Mutex
	messages    []model.Message
	mounted     bool
	done        bool
	unsubscribe func()
	watchers    map[int]func([]model.Message)
	nextID      int
	unmounted   chan struct{}
	lastSync    time.Time

	uploading atomic.Bool
}

// NewFeedService creates a feed that sends as identity.
func NewFeedService(collection driven.MessageCollection, cache driven.MessageCache, identity model.Identity, rec metrics.Recorder) *FeedService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &FeedService{
		collection: collection,
		cache:      cache,
		identity:   identity,
		metrics:    rec,
		messages:   []model.Message{},
		watchers:   make(map[int]func([]model.Message)),
		unmounted:  make(chan struct{}),
	}
}

// Identity returns the identity outbound messages are sent as.
func (f *FeedService) Identity() model.Identity {
	return f.identity
}

// Mount loads the cached list into the view, then opens the live
// subscription ordered by createdAt ascending. The cache read completes
// before the subscription is opened.
func (f *FeedService) Mount(ctx context.Context) {
	f.mu.Lock()
	if f.mounted || f.done {
		f.mu.Unlock()
		return
	}
	f.mounted = true
	f.mu.Unlock()

	f.loadLocal(ctx)

	unsubscribe := f.collection.Subscribe(ctx, driven.CreatedAtAscending,
		func(snap model.Snapshot) { f.applySnapshot(ctx, snap) },
		f.subscriptionError,
	)

	f.mu.Lock()
	if !f.mounted {
		// Unmounted while the subscription was being opened.
		f.mu.Unlock()
		unsubscribe()
		return
	}
	f.unsubscribe = unsubscribe
	f.mu.Unlock()

	slog.Info("message feed mounted", "user", f.identity.DisplayName())
}

// Unmount releases the subscription and drops all watchers. It is safe to
// call more than once.
func (f *FeedService) Unmount() {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.mounted = false
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.watchers = make(map[int]func([]model.Message))
	close(f.unmounted)
	f.mu.Unlock()

	// Called outside the lock: the subscription may be blocked delivering a
	// snapshot that needs it.
	if unsubscribe != nil {
		unsubscribe()
	}
	slog.Info("message feed unmounted", "user", f.identity.DisplayName())
}

func (f *FeedService) loadLocal(ctx context.Context) {
	cached, err := f.cache.Load(ctx)
	if err != nil {
		slog.Error("load cached messages failed", "error", err)
		return
	}
	if len(cached) == 0 {
		return
	}
	f.replace(cached)
}

// applySnapshot is the live subscription's onNext handler.
func (f *FeedService) applySnapshot(ctx context.Context, snap model.Snapshot) {
	if snap.Empty() {
		slog.Info("empty snapshot ignored, keeping local messages")
		f.metrics.RecordSnapshot(metrics.SnapshotDiscarded)
		return
	}

	list := cloneMessages(snap.Messages)
	if !f.replace(list) {
		return
	}
	f.metrics.RecordSnapshot(metrics.SnapshotApplied)

	f.mu.Lock()
	f.lastSync = snap.ReadTime
	f.mu.Unlock()
	slog.Debug("snapshot applied", "messages", len(list), "read_time", snap.ReadTime)

	if err := f.cache.Save(ctx, list); err != nil {
		slog.Error("save cached messages failed", "error", err)
		f.metrics.RecordCacheWriteFailure()
	}
}

func (f *FeedService) subscriptionError(err error) {
	slog.Warn("live feed offline", "error", err)
	f.metrics.RecordSnapshot(metrics.SnapshotError)
}

// replace swaps the displayed list if the feed is still mounted and
// notifies watchers. It reports whether the swap happened.
func (f *FeedService) replace(list []model.Message) bool {
	f.mu.Lock()
	if !f.mounted {
		f.mu.Unlock()
		return false
	}
	f.messages = list
	watchers := make([]func([]model.Message), 0, len(f.watchers))
	for _, fn := range f.watchers {
		watchers = append(watchers, fn)
	}
	f.mu.Unlock()

	for _, fn := range watchers {
		fn(cloneMessages(list))
	}
	return true
}

// Messages returns a copy of the displayed list in the order it was received.
func (f *FeedService) Messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneMessages(f.messages)
}

// Watch registers fn to receive the displayed list after every change. The
// returned func unregisters fn.
func (f *FeedService) Watch(fn func([]model.Message)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watchers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}
}

// LastSync returns the read time of the last applied snapshot, or the zero
// time while only cached messages are displayed.
func (f *FeedService) LastSync() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSync
}

// Done is closed when the feed is unmounted.
func (f *FeedService) Done() <-chan struct{} {
	return f.unmounted
}

// Uploading reports whether an image send is in flight.
func (f *FeedService) Uploading() bool {
	return f.uploading.Load()
}

// SendText submits a text message. Blank text returns model.ErrEmptyMessage
// without a remote write. The message is not inserted locally; it shows up
// when the live subscription reports it back.
func (f *FeedService) SendText(ctx context.Context, text string) error {
	if model.IsBlankText(text) {
		return model.ErrEmptyMessage
	}

	err := f.collection.Add(ctx, model.NewMessage{
		Text: text,
		User: f.identity.DisplayName(),
	})
	if err != nil {
		f.metrics.RecordSend(metrics.SendText, metrics.SendFailed)
		return fmt.Errorf("send message: %w", err)
	}

	f.metrics.RecordSend(metrics.SendText, metrics.SendOK)
	return nil
}

// SendImage awaits the picker and submits the chosen image as a data URI.
// A cancelled pick is a no-op. Picker and upload failures are returned as
// *model.Notice. While an upload is in flight further image sends return
// model.ErrUploadInProgress. Nothing is retried.
func (f *FeedService) SendImage(ctx context.Context, picker driven.ImagePicker) error {
	if f.uploading.Load() {
		return model.ErrUploadInProgress
	}

	res := picker.Pick(ctx)
	switch {
	case res.Cancelled:
		return nil
	case res.Err != nil:
		return &model.Notice{Title: "Picker error", Message: res.Err.Error(), Err: res.Err}
	case res.Asset == nil || res.Asset.Base64 == "":
		return &model.Notice{Title: "Failed", Message: "Cannot process this image."}
	}

	if !f.uploading.CompareAndSwap(false, true) {
		return model.ErrUploadInProgress
	}
	defer f.uploading.Store(false)

	uri := res.Asset.DataURI()
	err := f.collection.Add(ctx, model.NewMessage{
		Text:        "",
		User:        f.identity.DisplayName(),
		ImageBase64: &uri,
	})
	if err != nil {
		slog.Error("send image failed", "error", err)
		f.metrics.RecordSend(metrics.SendImage, metrics.SendFailed)
		return &model.Notice{
			Title:   "Upload failed",
			Message: "Connection problem or image too large.",
			Err:     err,
		}
	}

	f.metrics.RecordSend(metrics.SendImage, metrics.SendOK)
	return nil
}

func cloneMessages(in []model.Message) []model.Message {
	out := make([]model.Message, len(in))
	copy(out, in)
	return out
}
