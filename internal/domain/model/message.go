package model

import (
	"strings"
	"time"
)

// Timestamp mirrors the document store's timestamp shape so cached lists keep
// the same JSON layout the remote collection produces.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

// TimestampFrom converts a time.Time into a Timestamp.
func TimestampFrom(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

// Time converts the Timestamp back to a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanoseconds)).UTC()
}

// Message is a single chat message as delivered by the live collection and
// as stored in the local message cache. ID is assigned by the remote store.
// CreatedAt is nil while the server timestamp has not been assigned yet.
type Message struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	User        string     `json:"user"`
	ImageBase64 *string    `json:"imageBase64,omitempty"`
	CreatedAt   *Timestamp `json:"createdAt"`
}

// HasImage reports whether the message carries an inline image data URI.
func (m Message) HasImage() bool {
	return m.ImageBase64 != nil && *m.ImageBase64 != ""
}

// NewMessage is an outbound record submitted to the remote collection.
// CreatedAt is always assigned by the server.
type NewMessage struct {
	Text        string
	User        string
	ImageBase64 *string
}

// IsBlankText reports whether text is empty or whitespace only.
func IsBlankText(text string) bool {
	return strings.TrimSpace(text) == ""
}

// Snapshot is one result set delivered by the live query subscription.
type Snapshot struct {
	Messages []Message
	ReadTime time.Time
}

// Empty reports whether the snapshot carries no records.
func (s Snapshot) Empty() bool {
	return len(s.Messages) == 0
}
