package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// MessagesKey is the key the cached message list is stored under.
const MessagesKey = "chat_debug_v1"

// Compile-time interface satisfaction check.
var _ driven.MessageCache = (*MessageCacheRepo)(nil)

// MessageCacheRepo stores the whole displayed message list as one JSON array.
// Each Save is a full overwrite.
type MessageCacheRepo struct {
	kv driven.KeyValueStore
}

// NewMessageCacheRepo creates a new MessageCacheRepo on top of kv.
func NewMessageCacheRepo(kv driven.KeyValueStore) *MessageCacheRepo {
	return &MessageCacheRepo{kv: kv}
}

// Load returns the cached list, or an empty slice when nothing is cached.
func (r *MessageCacheRepo) Load(ctx context.Context) ([]model.Message, error) {
	value, ok, err := r.kv.Get(ctx, MessagesKey)
	if err != nil {
		return []model.Message{}, err
	}
	if !ok {
		return []model.Message{}, nil
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(value), &messages); err != nil {
		return []model.Message{}, fmt.Errorf("unmarshal cached messages: %w", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// Save overwrites the cached list.
func (r *MessageCacheRepo) Save(ctx context.Context, messages []model.Message) error {
	if messages == nil {
		messages = []model.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal cached messages: %w", err)
	}
	return r.kv.Set(ctx, MessagesKey, string(data))
}
