package persona

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/caucus/keys"
	"github.com/vx-labs/caucus/streaming"
)

func TestPersona(t *testing.T) {
	seen := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("new generates missing ids", func(t *testing.T) {
		p, err := New("", "Jon", IconPerson, nil, seen)
		require.NoError(t, err)
		require.True(t, keys.CouldBeKey(p.ID))
	})
	t.Run("validation", func(t *testing.T) {
		_, err := New("id", "", IconPerson, nil, seen)
		require.Equal(t, ErrInvalidName, errors.Cause(err))
		_, err = New("id", "Jon", Icon("Banana"), nil, seen)
		require.Equal(t, ErrInvalidIcon, errors.Cause(err))
		bad := "%%%"
		_, err = New("id", "Jon", IconPerson, &bad, seen)
		require.Equal(t, ErrInvalidThumbnail, errors.Cause(err))
		empty := ""
		_, err = New("id", "Jon", IconPerson, &empty, seen)
		require.Equal(t, ErrInvalidThumbnail, errors.Cause(err))
	})
	t.Run("round trip", func(t *testing.T) {
		thumbnail := "aGVsbG8="
		p, err := New("id", "Jon", IconPerson, &thumbnail, seen)
		require.NoError(t, err)
		decoded := &Persona{}
		require.NoError(t, decoded.StreamIn(p.StreamOut()))
		require.True(t, p.Equals(decoded))

		p.ThumbnailB64 = nil
		require.NotContains(t, p.StreamOut(), "thumbnailB64")
		require.NoError(t, decoded.StreamIn(p.StreamOut()))
		require.Nil(t, decoded.ThumbnailB64)
	})
	t.Run("stream in rejects invalid personas", func(t *testing.T) {
		decoded := &Persona{}
		require.Error(t, decoded.StreamIn(`{"id":"a","name":"Jon","icon":"Banana"}`))
		require.Error(t, decoded.StreamIn(`not json`))
	})
	t.Run("unknown", func(t *testing.T) {
		require.True(t, IsUnknown(Unknown()))
		require.False(t, IsUnknown(Bot(seen)))
		require.False(t, IsUnknown(nil))
	})
	t.Run("registry", func(t *testing.T) {
		registry := streaming.NewRegistry()
		require.NoError(t, Register(registry))
		bot := Bot(seen)
		resurrected := registry.Resurrect(streaming.Flatten(bot))
		require.True(t, bot.Equals(resurrected.(*Persona)))
	})
}
