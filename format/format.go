package format

import (
	"io"
	"text/template"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/vx-labs/caucus/message"
	"github.com/vx-labs/caucus/persona"
)

var FuncMap = template.FuncMap{
	"shorten": func(s string) string {
		if len(s) < 8 {
			return s
		}
		return s[0:8]
	},
	"clock": func(t time.Time) string { return t.Local().Format("15:04:05") },
	"since": func(t time.Time) string { return time.Since(t).Round(time.Second).String() },
}

var MessageTemplate = `{{ .SentAt | clock | faint }} {{ .Author | bold }}{{ if .Reply }} {{ "(reply)" | faint }}{{ end }}: {{ .Text }}
`

var ParticipantTemplate = `• {{ .Name | green | bold }} {{ .ID | shorten | faint }}
  {{ "Kind:" | faint }} {{ .Icon }}
  {{ "Seen:" | faint }} {{ .LastSeenAt | since }} ago
`

func ParseTemplate(body string) *template.Template {
	tpl, err := template.New("").Funcs(promptui.FuncMap).Funcs(FuncMap).Parse(body)
	if err != nil {
		panic(err)
	}
	return tpl
}

// MessageView is what MessageTemplate renders.
type MessageView struct {
	Author string
	Reply  bool
	Text   string
	SentAt time.Time
}

// Message resolves the author of m among participants, falling back to the
// unknown persona.
func Message(m *message.Message, participants map[string]*persona.Persona) MessageView {
	author, ok := participants[m.AuthorID]
	if !ok {
		author = persona.Unknown()
	}
	return MessageView{
		Author: author.Name,
		Reply:  m.ResponseToID != nil,
		Text:   m.Text,
		SentAt: m.SentAt,
	}
}

// Renderer writes messages and participants to a terminal.
type Renderer struct {
	out         io.Writer
	message     *template.Template
	participant *template.Template
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out:         out,
		message:     ParseTemplate(MessageTemplate),
		participant: ParseTemplate(ParticipantTemplate),
	}
}

func (r *Renderer) Messages(messages []*message.Message, participants map[string]*persona.Persona) error {
	for _, m := range messages {
		if err := r.message.Execute(r.out, Message(m, participants)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) Participants(participants []*persona.Persona) error {
	for _, p := range participants {
		if err := r.participant.Execute(r.out, p); err != nil {
			return err
		}
	}
	return nil
}
