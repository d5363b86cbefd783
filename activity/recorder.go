package activity

import (
	"context"
	"time"

	"github.com/vx-labs/caucus/pool"
	"go.uber.org/zap"
)

// Recorder saves records on a small worker pool, so callers joining a
// conversation do not wait on the repository. Failures are only logged.
type Recorder struct {
	repository Repository
	logger     *zap.Logger
	timeout    time.Duration
	pool       *pool.Pool
}

func NewRecorder(repository Repository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repository: repository,
		logger:     logger,
		timeout:    10 * time.Second,
		pool:       pool.NewPool(2, 64),
	}
}

// Record saves a record of email joining now.
func (r *Recorder) Record(email string, now time.Time) {
	record := NewRecord("", email, now)
	err := r.pool.Call(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.repository.Save(ctx, record); err != nil {
			r.logger.Warn("failed to save activity record", zap.String("activity_id", record.ID), zap.Error(err))
			return
		}
		r.logger.Debug("saved activity record", zap.String("activity_id", record.ID))
	})
	if err != nil {
		r.logger.Warn("dropped activity record", zap.String("activity_id", record.ID), zap.Error(err))
	}
}

// Wait blocks until every pending record is saved or failed.
func (r *Recorder) Wait() {
	r.pool.Wait()
}

// Close saves the pending records, then stops the workers. Records made
// afterwards are dropped.
func (r *Recorder) Close() {
	r.pool.Cancel()
}
