package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/caucus"
	"github.com/vx-labs/caucus/connection"
	"github.com/vx-labs/caucus/format"
	"github.com/vx-labs/caucus/message"
	"github.com/vx-labs/caucus/notify"
	"github.com/vx-labs/caucus/persona"
	"go.uber.org/zap"
)

var (
	ErrUnknownMessage   = errors.New("no such message")
	ErrAmbiguousMessage = errors.New("several messages match")
)

const chatHelp = `/who                 list participants
/history             print the whole conversation
/reply <id> <text>   answer a message, <id> being a prefix of its id
/reset               clear the conversation
/quit                leave
`

// Chat is a terminal session over a connection: remote messages are printed
// as they arrive, and lines typed by the user are sent.
type Chat struct {
	conn     *connection.Connection
	logger   *zap.Logger
	mtx      sync.Mutex
	out      io.Writer
	renderer *format.Renderer
	cancels  []func()
}

// NewChat starts printing the conversation of conn to out. conn must be
// connected.
func NewChat(conn *connection.Connection, out io.Writer, logger *zap.Logger) *Chat {
	c := &Chat{
		conn:     conn,
		logger:   logger,
		out:      out,
		renderer: format.NewRenderer(out),
	}
	onMessage := notify.ObserverFor(func(_ notify.Interest, n notify.Notification[string]) {
		c.onMessage(n.Payload())
	})
	c.cancels = append(c.cancels,
		conn.Messages().AddObserver(caucus.MemberAdded, onMessage),
		conn.Messages().AddObserver(caucus.MemberChanged, onMessage),
		conn.Participants().AddObserver(caucus.MemberAdded, notify.ObserverFor(func(_ notify.Interest, n notify.Notification[string]) {
			c.onParticipant(n.Payload())
		})),
	)
	return c
}

func (c *Chat) printf(msg string, args ...interface{}) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	fmt.Fprintf(c.out, msg, args...)
}

func (c *Chat) participants() map[string]*persona.Persona {
	return c.conn.Participants().Current()
}

func (c *Chat) onMessage(key string) {
	if key == "" {
		c.history()
		return
	}
	m, ok := c.conn.Messages().Lookup(key)
	if !ok {
		return
	}
	c.render(m)
}

func (c *Chat) onParticipant(key string) {
	if key == "" {
		return
	}
	p, ok := c.conn.Participants().Lookup(key)
	if !ok {
		return
	}
	c.printf("%s joined\n", p.Name)
}

func (c *Chat) render(messages ...*message.Message) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.renderer.Messages(messages, c.participants()); err != nil {
		c.logger.Error("failed to render message", zap.Error(err))
	}
}

func (c *Chat) history() {
	c.render(c.conn.Messages().CurrentAsArray()...)
}

func (c *Chat) findMessage(prefix string) (*message.Message, error) {
	var found *message.Message
	for key, m := range c.conn.Messages().Current() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if found != nil {
			return nil, errors.Wrap(ErrAmbiguousMessage, prefix)
		}
		found = m
	}
	if found == nil {
		return nil, errors.Wrap(ErrUnknownMessage, prefix)
	}
	return found, nil
}

// Handle runs one input line. It returns true when the user asked to leave.
func (c *Chat) Handle(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		m, err := c.conn.Send(line, nil)
		if err != nil {
			return false, err
		}
		c.render(m)
		return false, nil
	}
	fields := strings.SplitN(line, " ", 3)
	switch fields[0] {
	case "/quit":
		return true, nil
	case "/who":
		c.mtx.Lock()
		defer c.mtx.Unlock()
		return false, c.renderer.Participants(c.conn.Participants().CurrentAsArray())
	case "/history":
		c.history()
		return false, nil
	case "/reset":
		return false, c.conn.ResetMessages()
	case "/reply":
		if len(fields) < 3 {
			c.printf("usage: /reply <id> <text>\n")
			return false, nil
		}
		target, err := c.findMessage(fields[1])
		if err != nil {
			return false, err
		}
		m, err := c.conn.Send(fields[2], &target.ID)
		if err != nil {
			return false, err
		}
		c.render(m)
		return false, nil
	default:
		c.printf(chatHelp)
		return false, nil
	}
}

// Run prompts for lines until the user leaves or closes the input.
func (c *Chat) Run() error {
	prompt := promptui.Prompt{
		Label: c.conn.LocalUser().Name,
	}
	for {
		line, err := prompt.Run()
		if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := c.Handle(line)
		if err != nil {
			c.printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Close stops printing the conversation.
func (c *Chat) Close() {
	for _, cancel := range c.cancels {
		cancel()
	}
}
