package persona

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/keys"
	"github.com/vx-labs/caucus/streaming"
)

const ClassName = "Persona"

const (
	UnknownID = "88a77968-2525-4b83-b396-352ca83d1680"
	BotID     = "9c6c1a0e-7a3f-4f4e-9d3b-6a1f2b7c8d90"
	BotName   = "BraidBot"
)

type Icon string

const (
	IconUnknown Icon = "UnknownPersona"
	IconPerson  Icon = "PersonPersona"
	IconBot     Icon = "BotPersona"
	IconLLM     Icon = "LLMPersona"
)

func (i Icon) Valid() bool {
	switch i {
	case IconUnknown, IconPerson, IconBot, IconLLM:
		return true
	}
	return false
}

var (
	ErrInvalidName      = errors.New("invalid persona name")
	ErrInvalidIcon      = errors.New("invalid persona icon")
	ErrInvalidThumbnail = errors.New("invalid persona thumbnail")
)

// Persona describes a participant: no personal data beyond a display name,
// so it can be shared with every other participant.
type Persona struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Icon         Icon      `json:"icon"`
	ThumbnailB64 *string   `json:"thumbnailB64,omitempty"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

var _ streaming.DynamicStreamable = &Persona{}

// New validates its arguments. An empty id is replaced by a generated one.
func New(id, name string, icon Icon, thumbnail *string, lastSeenAt time.Time) (*Persona, error) {
	if id == "" {
		id = keys.Generate()
	}
	p := &Persona{
		ID:           id,
		Name:         name,
		Icon:         icon,
		ThumbnailB64: thumbnail,
		LastSeenAt:   lastSeenAt,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Persona) Validate() error {
	if p.Name == "" {
		return ErrInvalidName
	}
	if !p.Icon.Valid() {
		return errors.Wrap(ErrInvalidIcon, string(p.Icon))
	}
	if !ValidThumbnail(p.ThumbnailB64) {
		return ErrInvalidThumbnail
	}
	return nil
}

// ValidThumbnail accepts an absent thumbnail, or a non-empty base64 string.
func ValidThumbnail(thumbnail *string) bool {
	if thumbnail == nil {
		return true
	}
	if *thumbnail == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(*thumbnail)
	return err == nil
}

func (p *Persona) ClassName() string {
	return ClassName
}

func (p *Persona) StreamOut() string {
	out, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func (p *Persona) StreamIn(stream string) error {
	decoded := Persona{}
	if err := json.Unmarshal([]byte(stream), &decoded); err != nil {
		return err
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// Touch records that the participant was just seen.
func (p *Persona) Touch(now time.Time) {
	p.LastSeenAt = now
}

func (p *Persona) Equals(other *Persona) bool {
	if p.ID != other.ID || p.Name != other.Name || p.Icon != other.Icon || !p.LastSeenAt.Equal(other.LastSeenAt) {
		return false
	}
	if (p.ThumbnailB64 == nil) != (other.ThumbnailB64 == nil) {
		return false
	}
	return p.ThumbnailB64 == nil || *p.ThumbnailB64 == *other.ThumbnailB64
}

// Unknown is the persona shown for authors nobody knows about.
func Unknown() *Persona {
	return &Persona{
		ID:         UnknownID,
		Name:       "Guest",
		Icon:       IconUnknown,
		LastSeenAt: time.Unix(0, 0).UTC(),
	}
}

func IsUnknown(p *Persona) bool {
	return p != nil && p.Equals(Unknown())
}

// Bot is the persona of the assistant taking part in every conversation.
func Bot(now time.Time) *Persona {
	return &Persona{
		ID:         BotID,
		Name:       BotName,
		Icon:       IconLLM,
		LastSeenAt: now,
	}
}

func Register(r *streaming.Registry) error {
	return r.Register(ClassName, func() streaming.DynamicStreamable { return &Persona{} })
}
