package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// SessionKey is the key the identity provider session is stored under.
const SessionKey = "auth_session"

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo persists the refreshable part of a session. ID tokens are
// short-lived and never written.
type SessionRepo struct {
	kv driven.KeyValueStore
}

// NewSessionRepo creates a new SessionRepo on top of kv.
func NewSessionRepo(kv driven.KeyValueStore) *SessionRepo {
	return &SessionRepo{kv: kv}
}

// Save stores or replaces the persisted session.
func (r *SessionRepo) Save(ctx context.Context, session model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return r.kv.Set(ctx, SessionKey, string(data))
}

// Load returns the persisted session, or (nil, nil) if none is stored.
func (r *SessionRepo) Load(ctx context.Context) (*model.Session, error) {
	value, ok, err := r.kv.Get(ctx, SessionKey)
	if err != nil || !ok {
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal([]byte(value), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Clear removes the persisted session.
func (r *SessionRepo) Clear(ctx context.Context) error {
	return r.kv.Remove(ctx, SessionKey)
}
