package knowledge

import (
	"encoding/json"
	"time"
)

// Segment is a piece of reference material attached to a message: where it
// comes from, what it says, and its embedding.
type Segment struct {
	URL       string     `json:"url"`
	Summary   string     `json:"summary"`
	Embedding []float64  `json:"ada_v2"`
	TimeStamp *time.Time `json:"timeStamp,omitempty"`
	Relevance *float64   `json:"relevance,omitempty"`
}

func (s *Segment) StreamOut() string {
	out, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func (s *Segment) StreamIn(stream string) error {
	decoded := Segment{}
	if err := json.Unmarshal([]byte(stream), &decoded); err != nil {
		return err
	}
	if decoded.Embedding == nil {
		decoded.Embedding = []float64{}
	}
	*s = decoded
	return nil
}

// Equals compares field values.
func (s *Segment) Equals(other *Segment) bool {
	if s.URL != other.URL || s.Summary != other.Summary || len(s.Embedding) != len(other.Embedding) {
		return false
	}
	for idx := range s.Embedding {
		if s.Embedding[idx] != other.Embedding[idx] {
			return false
		}
	}
	if (s.TimeStamp == nil) != (other.TimeStamp == nil) {
		return false
	}
	if s.TimeStamp != nil && !s.TimeStamp.Equal(*other.TimeStamp) {
		return false
	}
	if (s.Relevance == nil) != (other.Relevance == nil) {
		return false
	}
	return s.Relevance == nil || *s.Relevance == *other.Relevance
}
