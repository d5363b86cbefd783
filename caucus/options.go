package caucus

import (
	"time"

	"github.com/vx-labs/caucus/streaming"
	"go.uber.org/zap"
)

// DefaultKickStartDelay is how long after the last kick-start request the
// synthetic notification fires.
const DefaultKickStartDelay = 250 * time.Millisecond

type config[T any] struct {
	compare  func(a, b T) int
	logger   *zap.Logger
	registry *streaming.Registry
	delay    time.Duration
}

type Option[T any] func(*config[T])

// WithComparator orders CurrentAsArray. It returns a negative number when a
// sorts before b, zero when they are equivalent.
func WithComparator[T any](compare func(a, b T) int) Option[T] {
	return func(c *config[T]) {
		c.compare = compare
	}
}

func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(c *config[T]) {
		c.logger = logger
	}
}

// WithRegistry resolves class names against registry instead of
// streaming.Default.
func WithRegistry[T any](registry *streaming.Registry) Option[T] {
	return func(c *config[T]) {
		c.registry = registry
	}
}

func WithKickStartDelay[T any](delay time.Duration) Option[T] {
	return func(c *config[T]) {
		c.delay = delay
	}
}
