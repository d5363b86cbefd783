package activity

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vx-labs/caucus/streaming"
	"go.uber.org/zap"
)

func TestRecord(t *testing.T) {
	happened := time.Date(2023, 5, 1, 10, 0, 0, 999, time.FixedZone("CEST", 2*3600))
	record := NewRecord("", "jon@example.com", happened)
	require.NotEmpty(t, record.ID)
	require.Equal(t, time.UTC, record.HappenedAt.Location())
	require.Equal(t, 0, record.HappenedAt.Nanosecond())
	require.Contains(t, record.StreamOut(), "Mon, 01 May 2023 08:00:00 GMT")

	decoded := &Record{}
	require.NoError(t, decoded.StreamIn(record.StreamOut()))
	require.True(t, record.Equals(decoded))
	require.Error(t, decoded.StreamIn(`{"id":"a","email":"b","happenedAt":"yesterday"}`))
}

func openRepository(t *testing.T) *BoltRepository {
	dir, err := ioutil.TempDir("", "activity")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	repository, err := NewBoltRepository(Options{Path: filepath.Join(dir, "activity.db"), NoSync: true}, streaming.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close() })
	return repository
}

func TestBoltRepository(t *testing.T) {
	repository := openRepository(t)
	ctx := context.Background()
	start := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	for idx, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, repository.Save(ctx, NewRecord("", email, start.Add(time.Duration(idx)*time.Minute))))
	}
	require.Equal(t, ErrInvalidEmail, repository.Save(ctx, NewRecord("", "", start)))

	recent, err := repository.LoadRecent(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, len(recent))
	require.Equal(t, "c@example.com", recent[0].Email)
	require.Equal(t, "b@example.com", recent[1].Email)

	all, err := repository.LoadRecent(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 3, len(all))
}

type failingRepository struct{}

func (failingRepository) Save(context.Context, *Record) error {
	return context.DeadlineExceeded
}
func (failingRepository) LoadRecent(context.Context, int) ([]*Record, error) {
	return nil, nil
}

func TestRecorder(t *testing.T) {
	repository := openRepository(t)
	recorder := NewRecorder(repository, zap.NewNop())
	recorder.Record("jon@example.com", time.Now())
	recorder.Wait()
	recent, err := repository.LoadRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "jon@example.com", recent[0].Email)

	recorder.Record("arya@example.com", time.Now().Add(time.Second))
	recorder.Close()
	recorder.Record("sansa@example.com", time.Now().Add(2*time.Second))
	recent, err = repository.LoadRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "arya@example.com", recent[0].Email)

	failing := NewRecorder(failingRepository{}, zap.NewNop())
	failing.Record("jon@example.com", time.Now())
	failing.Wait()
	failing.Close()
}
