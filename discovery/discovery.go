package discovery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrNoPeers = errors.New("not enough peers to join")

// Joiner is the part of a mesh layer discovery needs.
type Joiner interface {
	Join(hosts []string) error
}

func newBackOff(ctx context.Context, maxElapsed time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed
	return backoff.WithContext(b, ctx)
}

// JoinStatic joins hosts, retrying with an exponential backoff until the join
// succeeds, maxElapsed is spent, or ctx is done. An empty host list is a
// no-op.
func JoinStatic(ctx context.Context, hosts []string, joiner Joiner, maxElapsed time.Duration, logger *zap.Logger) error {
	if len(hosts) == 0 {
		return nil
	}
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := joiner.Join(hosts)
		if err != nil {
			logger.Warn("failed to join peers", zap.Strings("peers", hosts), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, newBackOff(ctx, maxElapsed))
}
