package application_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// --- Mock implementations ---

type fakeCollection struct {
	mu           sync.Mutex
	onNext       func(model.Snapshot)
	onError      func(error)
	query        driven.OrderedQuery
	subscribed   int
	unsubscribed int
	added        []model.NewMessage
	addErr       error
	addBlock     chan struct{} // when non-nil, Add waits for it to close
	addStarted   chan struct{}
}

func (c *fakeCollection) Subscribe(_ context.Context, q driven.OrderedQuery, onNext func(model.Snapshot), onError func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
	c.onNext = onNext
	c.onError = onError
	c.subscribed++
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.unsubscribed++
	}
}

func (c *fakeCollection) Add(_ context.Context, msg model.NewMessage) error {
	c.mu.Lock()
	c.added = append(c.added, msg)
	block, started := c.addBlock, c.addStarted
	err := c.addErr
	c.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return err
}

// deliver simulates the backend pushing a snapshot. It keeps calling the
// handler captured at subscribe time, even after unsubscribe, so tests can
// check that late snapshots are dropped.
func (c *fakeCollection) deliver(msgs ...model.Message) {
	c.mu.Lock()
	fn := c.onNext
	c.mu.Unlock()
	fn(model.Snapshot{Messages: msgs})
}

func (c *fakeCollection) deliverAt(readTime time.Time, msgs ...model.Message) {
	c.mu.Lock()
	fn := c.onNext
	c.mu.Unlock()
	fn(model.Snapshot{Messages: msgs, ReadTime: readTime})
}

func (c *fakeCollection) fail(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	fn(err)
}

func (c *fakeCollection) addedMessages() []model.NewMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.NewMessage, len(c.added))
	copy(out, c.added)
	return out
}

type fakeCache struct {
	mu      sync.Mutex
	stored  []model.Message
	loadErr error
	saveErr error
	saves   int
}

func (c *fakeCache) Load(_ context.Context) ([]model.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return []model.Message{}, c.loadErr
	}
	out := make([]model.Message, len(c.stored))
	copy(out, c.stored)
	return out, nil
}

func (c *fakeCache) Save(_ context.Context, msgs []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	c.stored = make([]model.Message, len(msgs))
	copy(c.stored, msgs)
	return nil
}

func (c *fakeCache) snapshot() ([]model.Message, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.stored))
	copy(out, c.stored)
	return out, c.saves
}

type fakeCredentialStore struct {
	mu      sync.Mutex
	creds   *model.Credentials
	loadErr error
	cleared int
	calls   []string
}

func (s *fakeCredentialStore) Save(_ context.Context, creds model.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "save")
	s.creds = &creds
	return nil
}

func (s *fakeCredentialStore) Load(_ context.Context) (*model.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.creds == nil {
		return nil, nil
	}
	c := *s.creds
	return &c, nil
}

func (s *fakeCredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "clear")
	s.cleared++
	s.creds = nil
	return nil
}

type fakeSessionStore struct {
	mu      sync.Mutex
	session *model.Session
	cleared int
}

func (s *fakeSessionStore) Save(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	return nil
}

func (s *fakeSessionStore) Load(_ context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	c := *s.session
	return &c, nil
}

func (s *fakeSessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	s.session = nil
	return nil
}

var errOffline = errors.New("network unavailable")

type fakeProvider struct {
	mu         sync.Mutex
	signInErr  error
	signUpErr  error
	refreshErr error
	expiresAt  time.Time // applied to sessions issued by SignIn
	signIns    int
	signUps    int
	refreshes  int
}

func (p *fakeProvider) SignIn(_ context.Context, email, _ string) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signIns++
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	return &model.Session{UID: "uid-" + email, Email: email, IDToken: "id", RefreshToken: "rt-" + email, ExpiresAt: p.expiresAt}, nil
}

func (p *fakeProvider) SignUp(_ context.Context, email, _ string) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signUps++
	if p.signUpErr != nil {
		return nil, p.signUpErr
	}
	return &model.Session{UID: "uid-" + email, Email: email, IDToken: "id", RefreshToken: "rt-" + email}, nil
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return &model.Session{
		UID:          "uid-restored",
		Email:        "restored@x.com",
		IDToken:      "id-refreshed",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (p *fakeProvider) counts() (signIns, signUps, refreshes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signIns, p.signUps, p.refreshes
}

type fakePicker struct {
	result model.PickResult
	picks  int
}

func (p *fakePicker) Pick(_ context.Context) model.PickResult {
	p.picks++
	return p.result
}

type recordingMetrics struct {
	mu        sync.Mutex
	snapshots map[string]int
	sends     map[string]int
	bootstrap []string
	cacheFail int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{snapshots: map[string]int{}, sends: map[string]int{}}
}

func (m *recordingMetrics) RecordSnapshot(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[outcome]++
}

func (m *recordingMetrics) RecordCacheWriteFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheFail++
}

func (m *recordingMetrics) RecordSend(kind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends[kind+"/"+result]++
}

func (m *recordingMetrics) RecordBootstrap(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootstrap = append(m.bootstrap, state)
}

// --- Fixtures ---

func ts(seconds int64) *model.Timestamp {
	return &model.Timestamp{Seconds: seconds}
}

func msg(id, text string, seconds int64) model.Message {
	return model.Message{ID: id, Text: text, User: "x@x.com", CreatedAt: ts(seconds)}
}
