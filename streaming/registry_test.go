package streaming

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/caucus/assert"
)

type point struct {
	X, Y  int
	Label *string `json:",omitempty"`
}

func (p *point) ClassName() string { return "point" }
func (p *point) StreamOut() string {
	out, _ := json.Marshal(p)
	return string(out)
}
func (p *point) StreamIn(stream string) error {
	return json.Unmarshal([]byte(stream), p)
}

type failing struct{}

func (failing) ClassName() string            { return "failing" }
func (failing) StreamOut() string            { return "" }
func (failing) StreamIn(stream string) error { return errors.New("refused") }

func testRegistry(t *testing.T) *Registry {
	r := NewRegistry()
	require.NoError(t, r.Register("point", func() DynamicStreamable { return &point{} }))
	require.NoError(t, r.Register("failing", func() DynamicStreamable { return failing{} }))
	return r
}

func TestRegistry(t *testing.T) {
	r := testRegistry(t)
	t.Run("round trip", func(t *testing.T) {
		label := "origin"
		for _, p := range []*point{{X: 1, Y: 2}, {X: -3, Label: &label}} {
			out := r.Resurrect(Flatten(p))
			require.IsType(t, &point{}, out)
			require.Equal(t, p, out)
		}
	})
	t.Run("absent fields stay absent", func(t *testing.T) {
		out := r.Resurrect(Flatten(&point{X: 1})).(*point)
		require.Nil(t, out.Label)
	})
	t.Run("envelope", func(t *testing.T) {
		var env map[string]string
		require.NoError(t, json.Unmarshal([]byte(Flatten(&point{X: 1})), &env))
		require.Equal(t, "point", env["className"])
		require.Equal(t, `{"X":1,"Y":0}`, env["payload"])
	})
	t.Run("duplicate registration", func(t *testing.T) {
		err := r.Register("point", func() DynamicStreamable { return &point{} })
		require.Equal(t, ErrDuplicateClass, errors.Cause(err))
		require.Panics(t, func() {
			r.MustRegister("point", func() DynamicStreamable { return &point{} })
		})
		require.Equal(t, ErrInvalidClass, r.Register("", nil))
	})
	t.Run("classes", func(t *testing.T) {
		require.Equal(t, []string{"failing", "point"}, r.Classes())
		require.True(t, r.Has("point"))
		require.False(t, r.Has("line"))
	})
	t.Run("unknown class", func(t *testing.T) {
		flat := `{"className":"line","payload":"{}"}`
		_, err := r.Decode(flat)
		require.Equal(t, ErrUnknownClass, errors.Cause(err))
		require.Panics(t, func() { r.Resurrect(flat) })

		var recovered error
		func() {
			defer assert.Recover(&recovered)
			r.Resurrect(flat)
		}()
		require.IsType(t, &assert.Failure{}, recovered)
	})
	t.Run("malformed", func(t *testing.T) {
		for _, flat := range []string{"", "nope", `{"payload":"{}"}`} {
			_, err := r.Decode(flat)
			require.Equal(t, ErrMalformed, errors.Cause(err), flat)
		}
	})
	t.Run("payload rejected", func(t *testing.T) {
		_, err := r.Decode(Flatten(failing{}))
		require.EqualError(t, err, "failed to stream in failing: refused")
	})
}
