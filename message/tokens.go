package message

import (
	"strings"
	"unicode/utf8"

	"github.com/vx-labs/caucus/knowledge"
)

// charsPerToken is the average length of a token in english prose.
const charsPerToken = 4

// EstimateTokens approximates how many model tokens text encodes to: every
// word costs one token per started run of four characters.
func EstimateTokens(text string) int {
	count := 0
	for _, word := range strings.Fields(text) {
		count += (utf8.RuneCountInString(word) + charsPerToken - 1) / charsPerToken
	}
	return count
}

// Tokens estimates the size of the text and of the segment summaries. The
// estimate is cached until the message is changed through a setter. Callers
// assigning Text or Segments directly must call MarkDirty.
func (m *Message) Tokens() int {
	if !m.estimated {
		count := EstimateTokens(m.Text)
		for idx := range m.Segments {
			count += EstimateTokens(m.Segments[idx].Summary)
		}
		m.tokens = count
		m.estimated = true
	}
	return m.tokens
}

// IsDirty reports whether the token estimate must be computed again.
func (m *Message) IsDirty() bool {
	return !m.estimated
}

func (m *Message) MarkDirty() {
	m.tokens = 0
	m.estimated = false
}

func (m *Message) SetText(text string) {
	m.Text = text
	m.MarkDirty()
}

func (m *Message) SetSegments(segments []knowledge.Segment) {
	if segments == nil {
		segments = []knowledge.Segment{}
	}
	m.Segments = segments
	m.MarkDirty()
}
