package activity

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/streaming"
)

const ClassName = "ActivityRecord"

var (
	ErrInvalidEmail = errors.New("invalid activity email")
)

// Record notes that someone joined a conversation. HappenedAt is kept in UTC
// with a one second precision.
type Record struct {
	ID         string
	Email      string
	HappenedAt time.Time
}

var _ streaming.DynamicStreamable = &Record{}

type wireRecord struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	HappenedAt string `json:"happenedAt"`
}

// NewRecord builds a record. An empty id is replaced by a ULID.
func NewRecord(id, email string, happenedAt time.Time) *Record {
	if id == "" {
		id = ulid.Make().String()
	}
	return &Record{
		ID:         id,
		Email:      email,
		HappenedAt: happenedAt.UTC().Truncate(time.Second),
	}
}

func (r *Record) ClassName() string {
	return ClassName
}

func (r *Record) StreamOut() string {
	out, err := json.Marshal(wireRecord{
		ID:         r.ID,
		Email:      r.Email,
		HappenedAt: r.HappenedAt.UTC().Format(http.TimeFormat),
	})
	if err != nil {
		panic(err)
	}
	return string(out)
}

func (r *Record) StreamIn(stream string) error {
	wire := wireRecord{}
	if err := json.Unmarshal([]byte(stream), &wire); err != nil {
		return err
	}
	happenedAt, err := http.ParseTime(wire.HappenedAt)
	if err != nil {
		return errors.Wrap(err, "invalid activity timestamp")
	}
	*r = *NewRecord(wire.ID, wire.Email, happenedAt)
	return nil
}

func (r *Record) Equals(other *Record) bool {
	return r.ID == other.ID && r.Email == other.Email && r.HappenedAt.Equal(other.HappenedAt)
}

func Register(r *streaming.Registry) error {
	return r.Register(ClassName, func() streaming.DynamicStreamable { return &Record{} })
}
