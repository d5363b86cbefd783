package connection

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/activity"
	"github.com/vx-labs/caucus/assert"
	"github.com/vx-labs/caucus/caucus"
	"github.com/vx-labs/caucus/message"
	"github.com/vx-labs/caucus/notify"
	"github.com/vx-labs/caucus/persona"
	"github.com/vx-labs/caucus/streaming"
	"go.uber.org/zap"
)

const (
	ParticipantMap = "participants"
	MessageMap     = "messages"

	ConnectedID             = "connected"
	DefaultPresenceInterval = 10 * time.Second
)

// Connected is dispatched once a connection is set up. The payload is a
// notify.Notification[string] carrying the container id.
var Connected = notify.NewInterest(ConnectedID)

// RegisterAll registers every type stored in a conversation.
func RegisterAll(r *streaming.Registry) error {
	for _, register := range []func(*streaming.Registry) error{persona.Register, message.Register, activity.Register} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}

type options struct {
	logger         *zap.Logger
	registry       *streaming.Registry
	presence       time.Duration
	kickStartDelay time.Duration
	clock          func() time.Time
	recorder       *activity.Recorder
	email          string
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}
func WithRegistry(registry *streaming.Registry) Option {
	return func(o *options) { o.registry = registry }
}
func WithPresenceInterval(interval time.Duration) Option {
	return func(o *options) { o.presence = interval }
}
func WithKickStartDelay(delay time.Duration) Option {
	return func(o *options) { o.kickStartDelay = delay }
}
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithActivity records email joining the conversation on Connect.
func WithActivity(recorder *activity.Recorder, email string) Option {
	return func(o *options) {
		o.recorder = recorder
		o.email = email
	}
}

// Connection is one participant's session in a conversation: who takes part
// in it, and what they said.
type Connection struct {
	*notify.Notifier
	container    Container
	opts         options
	logger       *zap.Logger
	mtx          sync.Mutex
	self         *persona.Persona
	participants *caucus.Caucus[*persona.Persona]
	messages     *caucus.Caucus[*message.Message]
	cancel       chan struct{}
	done         chan struct{}
}

func New(container Container, self *persona.Persona, opts ...Option) *Connection {
	o := options{
		logger:         zap.NewNop(),
		registry:       streaming.Default,
		presence:       DefaultPresenceInterval,
		kickStartDelay: caucus.DefaultKickStartDelay,
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Connection{
		Notifier:  notify.NewNotifier(),
		container: container,
		opts:      o,
		logger:    o.logger.With(zap.String("container_id", container.ID()), zap.String("participant_id", self.ID)),
		self:      self,
	}
}

// Connect attaches to the container's maps, makes sure the local participant
// and the bot are listed, and starts the presence check.
func (c *Connection) Connect() (string, error) {
	c.mtx.Lock()
	if c.participants != nil {
		c.mtx.Unlock()
		return c.container.ID(), nil
	}
	participantMap, err := c.container.Map(ParticipantMap)
	if err != nil {
		c.mtx.Unlock()
		return "", errors.Wrap(err, "failed to open participant map")
	}
	messageMap, err := c.container.Map(MessageMap)
	if err != nil {
		c.mtx.Unlock()
		return "", errors.Wrap(err, "failed to open message map")
	}
	c.participants = caucus.New[*persona.Persona](participantMap,
		caucus.WithRegistry[*persona.Persona](c.opts.registry),
		caucus.WithLogger[*persona.Persona](c.logger),
		caucus.WithKickStartDelay[*persona.Persona](c.opts.kickStartDelay),
	)
	c.messages = caucus.New[*message.Message](messageMap,
		caucus.WithRegistry[*message.Message](c.opts.registry),
		caucus.WithLogger[*message.Message](c.logger),
		caucus.WithKickStartDelay[*message.Message](c.opts.kickStartDelay),
		caucus.WithComparator(message.BySentAt),
	)
	c.cancel = make(chan struct{})
	c.done = make(chan struct{})
	c.mtx.Unlock()

	if err := c.seed(); err != nil {
		c.detach()
		return "", err
	}
	if c.opts.recorder != nil && c.opts.email != "" {
		c.opts.recorder.Record(c.opts.email, c.opts.clock())
	}
	go c.presenceRoutine(c.cancel, c.done)

	id := c.container.ID()
	c.logger.Info("connected to conversation")
	c.NotifyObservers(Connected, notify.NewNotification(Connected, id))
	return id, nil
}

// detach undoes a Connect that failed before the presence check started.
func (c *Connection) detach() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.participants == nil {
		return
	}
	c.participants.Close()
	c.messages.Close()
	c.participants = nil
	c.messages = nil
	c.cancel = nil
	c.done = nil
}

func (c *Connection) presenceRoutine(cancel, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.opts.presence)
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if err := c.ensureSelf(); err != nil {
				c.logger.Warn("failed to refresh presence", zap.Error(err))
			}
		}
	}
}

func (c *Connection) seed() error {
	if err := c.ensureSelf(); err != nil {
		return err
	}
	participants, ok := c.participantCaucus()
	if !ok {
		return nil
	}
	if !participants.Has(persona.BotID) {
		if err := participants.Add(persona.BotID, persona.Bot(c.opts.clock())); err != nil {
			return errors.Wrap(err, "failed to add bot to participants")
		}
	}
	return nil
}

// ensureSelf lists the local participant, or fixes its listing when the
// stored name is stale.
func (c *Connection) ensureSelf() error {
	self := c.LocalUser()
	participants, ok := c.participantCaucus()
	if !ok {
		return nil
	}
	stored, ok := participants.Lookup(self.ID)
	if ok && stored.Name == self.Name {
		return nil
	}
	if err := participants.Add(self.ID, self); err != nil {
		return errors.Wrap(err, "failed to add local user to participants")
	}
	return nil
}

func (c *Connection) LocalUser() *persona.Persona {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.self
}

// SetLocalUser replaces the local participant. The listing is updated on
// the next presence check.
func (c *Connection) SetLocalUser(self *persona.Persona) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.self = self
}

func (c *Connection) participantCaucus() (*caucus.Caucus[*persona.Persona], bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.participants, c.participants != nil
}

func (c *Connection) Participants() *caucus.Caucus[*persona.Persona] {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	assert.True(c.participants != nil, "connection: not connected")
	return c.participants
}

func (c *Connection) Messages() *caucus.Caucus[*message.Message] {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	assert.True(c.messages != nil, "connection: not connected")
	return c.messages
}

// Send adds text to the conversation as a message from the local user.
func (c *Connection) Send(text string, responseToID *string) (*message.Message, error) {
	m := message.New("", c.LocalUser().ID, responseToID, text, c.opts.clock(), nil)
	if err := c.Messages().Add(m.ID, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ResetMessages empties the conversation, participants included, then lists
// the local participant and the bot again.
func (c *Connection) ResetMessages() error {
	if err := c.Messages().RemoveAll(); err != nil {
		return err
	}
	if err := c.Participants().RemoveAll(); err != nil {
		return err
	}
	return c.seed()
}

// Disconnect stops the presence check and detaches from the container.
// Calling it on a connection that is not connected does nothing.
func (c *Connection) Disconnect() error {
	c.mtx.Lock()
	if c.participants == nil {
		c.mtx.Unlock()
		return nil
	}
	close(c.cancel)
	done := c.done
	c.participants.Close()
	c.messages.Close()
	c.participants = nil
	c.messages = nil
	c.mtx.Unlock()

	<-done
	c.logger.Info("disconnected from conversation")
	return c.container.Close()
}
