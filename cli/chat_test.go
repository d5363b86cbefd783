package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/caucus/connection"
	"github.com/vx-labs/caucus/message"
	"github.com/vx-labs/caucus/persona"
	"go.uber.org/zap"
)

type syncBuffer struct {
	mtx sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.buf.String()
}

func (s *syncBuffer) eventuallyContains(t *testing.T, text string) {
	assert.Eventually(t, func() bool {
		return strings.Contains(s.String(), text)
	}, 2*time.Second, 10*time.Millisecond, "output never contained %q", text)
}

func joinChat(t *testing.T, ctx *Context, name string) (*Chat, *syncBuffer) {
	self, err := persona.New("", name, persona.IconPerson, nil, time.Now())
	require.NoError(t, err)
	container, err := ctx.OpenContainer(context.Background(), "room", self.ID)
	require.NoError(t, err)
	conn := connection.New(container, self,
		connection.WithRegistry(ctx.Registry),
		connection.WithKickStartDelay(10*time.Millisecond),
	)
	_, err = conn.Connect()
	require.NoError(t, err)
	out := &syncBuffer{}
	chat := NewChat(conn, out, zap.NewNop())
	t.Cleanup(func() {
		chat.Close()
		conn.Disconnect()
	})
	return chat, out
}

func TestChat(t *testing.T) {
	ctx := testContext(t, nil)
	alice, aliceOut := joinChat(t, ctx, "alice")
	bob, bobOut := joinChat(t, ctx, "bob")

	aliceOut.eventuallyContains(t, "bob joined")

	quit, err := alice.Handle("hello bob")
	require.NoError(t, err)
	assert.False(t, quit)
	aliceOut.eventuallyContains(t, "hello bob")
	bobOut.eventuallyContains(t, "hello bob")

	var helloID string
	for id, m := range bob.conn.Messages().Current() {
		if m.Text == "hello bob" {
			helloID = id
		}
	}
	require.NotEmpty(t, helloID)

	quit, err = bob.Handle("/reply " + helloID[0:8] + " hi alice")
	require.NoError(t, err)
	assert.False(t, quit)
	aliceOut.eventuallyContains(t, "hi alice")
	aliceOut.eventuallyContains(t, "(reply)")

	_, err = bob.Handle("/reply ffffffff-nope nobody")
	assert.Equal(t, ErrUnknownMessage, errors.Cause(err))

	_, err = bob.Handle("/who")
	require.NoError(t, err)
	bobOut.eventuallyContains(t, "alice")
	bobOut.eventuallyContains(t, persona.BotName)

	_, err = alice.Handle("/help")
	require.NoError(t, err)
	aliceOut.eventuallyContains(t, "/reply <id> <text>")

	_, err = alice.Handle("/reset")
	require.NoError(t, err)
	assert.Equal(t, 0, bob.conn.Messages().Len())

	quit, err = alice.Handle("/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestChat_History(t *testing.T) {
	ctx := testContext(t, nil)
	alice, _ := joinChat(t, ctx, "alice")
	_, err := alice.Handle("first")
	require.NoError(t, err)
	_, err = alice.Handle("second")
	require.NoError(t, err)

	_, lateOut := joinChat(t, ctx, "carol")
	lateOut.eventuallyContains(t, "second")
	out := lateOut.String()
	assert.True(t, strings.Index(out, "first") < strings.Index(out, "second"))
}

func TestChat_AmbiguousReply(t *testing.T) {
	ctx := testContext(t, nil)
	alice, _ := joinChat(t, ctx, "alice")
	messages := alice.conn.Messages()
	author := alice.conn.LocalUser().ID
	require.NoError(t, messages.Add("abc-1", message.New("abc-1", author, nil, "first", time.Now(), nil)))
	require.NoError(t, messages.Add("abc-2", message.New("abc-2", author, nil, "second", time.Now(), nil)))

	_, err := alice.Handle("/reply abc answer")
	assert.Equal(t, ErrAmbiguousMessage, errors.Cause(err))
	assert.Equal(t, 2, messages.Len())

	_, err = alice.Handle("/reply abc-2 answer")
	require.NoError(t, err)
	replies := 0
	for _, m := range messages.Current() {
		if m.ResponseToID != nil {
			require.Equal(t, "abc-2", *m.ResponseToID)
			replies++
		}
	}
	assert.Equal(t, 1, replies)
}
