package activity

import (
	"context"
	"os"

	"github.com/boltdb/bolt"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/streaming"
)

const dbFileMode os.FileMode = 0600

var activityBucket = []byte("activity")

var (
	ErrBucketNotFound = errors.New("bucket not found")
)

// Repository stores activity records.
type Repository interface {
	Save(ctx context.Context, record *Record) error
	// LoadRecent returns at most count records, most recent first.
	LoadRecent(ctx context.Context, count int) ([]*Record, error)
}

type Options struct {
	// Path is the file path to the BoltDB to use
	Path string

	// BoltOptions contains any specific BoltDB options you might
	// want to specify [e.g. open timeout]
	BoltOptions *bolt.Options

	// NoSync causes the database to skip fsync calls after each
	// write. This is unsafe, so it should be used with caution.
	NoSync bool
}

// BoltRepository keeps records in a bolt bucket, keyed by a ULID derived
// from their timestamp so a cursor walks them chronologically.
type BoltRepository struct {
	conn     *bolt.DB
	registry *streaming.Registry
}

var _ Repository = &BoltRepository{}

func NewBoltRepository(options Options, registry *streaming.Registry) (*BoltRepository, error) {
	handle, err := bolt.Open(options.Path, dbFileMode, options.BoltOptions)
	if err != nil {
		return nil, err
	}
	handle.NoSync = options.NoSync
	if !registry.Has(ClassName) {
		if err := Register(registry); err != nil {
			handle.Close()
			return nil, err
		}
	}
	repository := &BoltRepository{
		conn:     handle,
		registry: registry,
	}
	return repository, repository.initStore()
}

func (b *BoltRepository) initStore() error {
	tx, err := b.conn.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.CreateBucketIfNotExists(activityBucket)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Close is used to gracefully close the DB connection.
func (b *BoltRepository) Close() error {
	return b.conn.Close()
}

func (b *BoltRepository) Save(ctx context.Context, record *Record) error {
	if record.Email == "" {
		return ErrInvalidEmail
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := ulid.New(ulid.Timestamp(record.HappenedAt), ulid.DefaultEntropy())
	if err != nil {
		return err
	}
	return b.conn.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(activityBucket)
		if bucket == nil {
			return ErrBucketNotFound
		}
		return bucket.Put(key[:], []byte(streaming.Flatten(record)))
	})
}

func (b *BoltRepository) LoadRecent(ctx context.Context, count int) ([]*Record, error) {
	out := []*Record{}
	err := b.conn.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(activityBucket)
		if bucket == nil {
			return ErrBucketNotFound
		}
		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(out) < count; k, v = cursor.Prev() {
			if err := ctx.Err(); err != nil {
				return err
			}
			obj, err := b.registry.Decode(string(v))
			if err != nil {
				return err
			}
			record, ok := obj.(*Record)
			if !ok {
				return errors.Errorf("unexpected class %s in activity store", obj.ClassName())
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
