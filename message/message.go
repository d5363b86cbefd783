package message

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/keys"
	"github.com/vx-labs/caucus/knowledge"
	"github.com/vx-labs/caucus/streaming"
)

const ClassName = "Message"

var (
	ErrInvalidID = errors.New("invalid message id")
)

// Message is one chat entry. A message answering another one carries the
// id of the message it answers.
type Message struct {
	ID           string
	AuthorID     string
	ResponseToID *string
	Text         string
	SentAt       time.Time
	Segments     []knowledge.Segment

	tokens int
	// estimated is reset by every setter.
	estimated bool
}

var _ streaming.DynamicStreamable = &Message{}

type wireMessage struct {
	ID           string              `json:"id"`
	AuthorID     string              `json:"authorId"`
	ResponseToID *string             `json:"responseToId,omitempty"`
	Text         string              `json:"text"`
	SentAt       time.Time           `json:"sentAt"`
	Segments     []knowledge.Segment `json:"segments"`
	// Sources is how segments used to be named.
	Sources []knowledge.Segment `json:"sources,omitempty"`
}

// New builds a message. An empty id is replaced by a generated one.
func New(id, authorID string, responseToID *string, text string, sentAt time.Time, segments []knowledge.Segment) *Message {
	if id == "" {
		id = keys.Generate()
	}
	if segments == nil {
		segments = []knowledge.Segment{}
	}
	return &Message{
		ID:           id,
		AuthorID:     authorID,
		ResponseToID: responseToID,
		Text:         text,
		SentAt:       sentAt,
		Segments:     segments,
	}
}

func (m *Message) ClassName() string {
	return ClassName
}

func (m *Message) StreamOut() string {
	segments := m.Segments
	if segments == nil {
		segments = []knowledge.Segment{}
	}
	out, err := json.Marshal(wireMessage{
		ID:           m.ID,
		AuthorID:     m.AuthorID,
		ResponseToID: m.ResponseToID,
		Text:         m.Text,
		SentAt:       m.SentAt,
		Segments:     segments,
	})
	if err != nil {
		panic(err)
	}
	return string(out)
}

func (m *Message) StreamIn(stream string) error {
	wire := wireMessage{}
	if err := json.Unmarshal([]byte(stream), &wire); err != nil {
		return err
	}
	if wire.ID == "" {
		return ErrInvalidID
	}
	segments := wire.Segments
	if segments == nil {
		segments = wire.Sources
	}
	*m = *New(wire.ID, wire.AuthorID, wire.ResponseToID, wire.Text, wire.SentAt, segments)
	return nil
}

// IsUnprompted reports whether the message starts a thread instead of
// answering another message.
func (m *Message) IsUnprompted() bool {
	return m.ResponseToID == nil
}

// IsFrom reports whether authorID wrote the message.
func (m *Message) IsFrom(authorID string) bool {
	return m.AuthorID == authorID
}

func (m *Message) Equals(other *Message) bool {
	if m.ID != other.ID || m.AuthorID != other.AuthorID || m.Text != other.Text || !m.SentAt.Equal(other.SentAt) {
		return false
	}
	if (m.ResponseToID == nil) != (other.ResponseToID == nil) {
		return false
	}
	if m.ResponseToID != nil && *m.ResponseToID != *other.ResponseToID {
		return false
	}
	if len(m.Segments) != len(other.Segments) {
		return false
	}
	for idx := range m.Segments {
		if !m.Segments[idx].Equals(&other.Segments[idx]) {
			return false
		}
	}
	return true
}

// BySentAt orders messages chronologically.
func BySentAt(a, b *Message) int {
	switch {
	case a.SentAt.Before(b.SentAt):
		return -1
	case a.SentAt.After(b.SentAt):
		return 1
	}
	return 0
}

func Register(r *streaming.Registry) error {
	return r.Register(ClassName, func() streaming.DynamicStreamable { return &Message{} })
}
