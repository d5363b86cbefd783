package gossip

import (
	"context"
	"sync"
	"time"

	proto "github.com/golang/protobuf/proto"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/crdt"
	"github.com/vx-labs/caucus/sharedmap"
	"go.uber.org/zap"
)

const (
	table = "entries"
)

var now = func() int64 {
	return time.Now().UnixNano()
}

// State is a last-writer-wins map replicated over a gossip layer. Local
// writes are applied to a memdb table and broadcast as deltas; remote deltas
// and full states are merged entry by entry.
type State struct {
	name      string
	db        *memdb.MemDB
	mtx       sync.Mutex
	channel   Channel
	listeners sharedmap.Listeners
	logger    *zap.Logger
}

var _ sharedmap.Map = &State{}
var _ GossipState = &State{}

func NewState(name string, layer Layer, logger *zap.Logger) (*State, error) {
	db, err := memdb.NewMemDB(&memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			table: {
				Name: table,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name: "id",
						Indexer: &memdb.StringFieldIndex{
							Field: "Key",
						},
						Unique:       true,
						AllowMissing: false,
					},
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	s := &State{
		name:   name,
		db:     db,
		logger: logger.With(zap.String("gossip_state", name)),
	}
	s.channel, err = layer.AddState(name, s)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to register gossip state %q", name)
	}
	return s, nil
}

func (s *State) read(statement func(tx *memdb.Txn) error) error {
	tx := s.db.Txn(false)
	return s.run(tx, statement)
}
func (s *State) write(statement func(tx *memdb.Txn) error) error {
	tx := s.db.Txn(true)
	return s.run(tx, statement)
}
func (s *State) run(tx *memdb.Txn, statement func(tx *memdb.Txn) error) error {
	defer tx.Abort()
	err := statement(tx)
	if err != nil {
		return err
	}
	tx.Commit()
	return nil
}

func (s *State) first(tx *memdb.Txn, key string) *Entry {
	data, err := tx.First(table, "id", key)
	if err != nil || data == nil {
		return nil
	}
	return data.(*Entry)
}

func (s *State) each(tx *memdb.Txn, f func(*Entry) bool) error {
	iterator, err := tx.Get(table, "id")
	if err != nil {
		return err
	}
	for {
		payload := iterator.Next()
		if payload == nil {
			return nil
		}
		if !f(payload.(*Entry)) {
			return nil
		}
	}
}

func isAdded(e *Entry) bool {
	return e != nil && crdt.IsEntryAdded(e)
}

// stamp returns a timestamp later than every update already applied to
// current, so a local write always wins over what this replica has seen.
func stamp(current *Entry) int64 {
	ts := now()
	if current != nil {
		if last := crdt.GetLastEntryUpdate(current); ts <= last {
			ts = last + 1
		}
	}
	return ts
}

func (s *State) Get(key string) (string, bool) {
	var value string
	var found bool
	s.read(func(tx *memdb.Txn) error {
		entry := s.first(tx, key)
		if isAdded(entry) {
			value, found = entry.Value, true
		}
		return nil
	})
	return value, found
}

func (s *State) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *State) Set(key, value string) error {
	s.mtx.Lock()
	var had bool
	var entry *Entry
	err := s.write(func(tx *memdb.Txn) error {
		current := s.first(tx, key)
		had = isAdded(current)
		entry = &Entry{Key: key, Value: value, LastAdded: stamp(current)}
		if current != nil {
			entry.LastDeleted = current.LastDeleted
		}
		return tx.Insert(table, entry)
	})
	s.mtx.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to write entry")
	}
	s.broadcast(entry)
	s.listeners.Emit(sharedmap.ValueChanged{Key: key, HadPrevious: had, Local: true, Exists: true})
	return nil
}

func (s *State) Delete(key string) (bool, error) {
	s.mtx.Lock()
	var tombstone *Entry
	err := s.write(func(tx *memdb.Txn) error {
		current := s.first(tx, key)
		if !isAdded(current) {
			return nil
		}
		tombstone = &Entry{Key: key, LastAdded: current.LastAdded, LastDeleted: stamp(current)}
		return tx.Insert(table, tombstone)
	})
	s.mtx.Unlock()
	if err != nil {
		return false, errors.Wrap(err, "failed to delete entry")
	}
	if tombstone == nil {
		return false, nil
	}
	s.broadcast(tombstone)
	s.listeners.Emit(sharedmap.ValueChanged{Key: key, HadPrevious: true, Local: true, Exists: false})
	return true, nil
}

func (s *State) Clear() error {
	s.mtx.Lock()
	tombstones := []*Entry{}
	err := s.write(func(tx *memdb.Txn) error {
		current := []*Entry{}
		err := s.each(tx, func(entry *Entry) bool {
			if isAdded(entry) {
				current = append(current, entry)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, entry := range current {
			tombstone := &Entry{Key: entry.Key, LastAdded: entry.LastAdded, LastDeleted: stamp(entry)}
			if err := tx.Insert(table, tombstone); err != nil {
				return err
			}
			tombstones = append(tombstones, tombstone)
		}
		return nil
	})
	s.mtx.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to clear entries")
	}
	if len(tombstones) == 0 {
		return nil
	}
	s.broadcast(tombstones...)
	for _, tombstone := range tombstones {
		s.listeners.Emit(sharedmap.ValueChanged{Key: tombstone.Key, HadPrevious: true, Local: true, Exists: false})
	}
	return nil
}

// Range walks live entries in key order, over a snapshot of the table.
func (s *State) Range(f func(key, value string) bool) {
	s.read(func(tx *memdb.Txn) error {
		return s.each(tx, func(entry *Entry) bool {
			if !isAdded(entry) {
				return true
			}
			return f(entry.Key, entry.Value)
		})
	})
}

func (s *State) Len() int {
	count := 0
	s.Range(func(string, string) bool {
		count++
		return true
	})
	return count
}

func (s *State) Subscribe(f func(sharedmap.ValueChanged)) func() {
	return s.listeners.Subscribe(f)
}

func (s *State) broadcast(entries ...*Entry) {
	payload, err := proto.Marshal(&EntryList{Entries: entries})
	if err != nil {
		s.logger.Error("failed to encode delta", zap.Error(err))
		return
	}
	s.channel.Broadcast(payload)
}

// Merge applies a remote delta, or a remote full state when full is true.
// Remote entries replace local ones following crdt.Supersedes.
func (s *State) Merge(data []byte, full bool) error {
	set := &EntryList{}
	if err := proto.Unmarshal(data, set); err != nil {
		return errors.Wrap(err, "failed to decode remote state")
	}
	events := []sharedmap.ValueChanged{}
	s.mtx.Lock()
	err := s.write(func(tx *memdb.Txn) error {
		for _, remote := range set.Entries {
			local := s.first(tx, remote.Key)
			if local != nil && !crdt.Supersedes(local, remote) {
				continue
			}
			if err := tx.Insert(table, remote); err != nil {
				return err
			}
			had, exists := isAdded(local), isAdded(remote)
			if had || exists {
				events = append(events, sharedmap.ValueChanged{Key: remote.Key, HadPrevious: had, Exists: exists})
			}
		}
		return nil
	})
	s.mtx.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to merge remote state")
	}
	if full && len(events) > 0 {
		s.logger.Debug("merged remote full state", zap.Int("changed_entries", len(events)))
	}
	for _, ev := range events {
		s.listeners.Emit(ev)
	}
	return nil
}

// MarshalBinary encodes every entry, tombstones included.
func (s *State) MarshalBinary() []byte {
	set := &EntryList{}
	s.read(func(tx *memdb.Txn) error {
		return s.each(tx, func(entry *Entry) bool {
			set.Entries = append(set.Entries, entry)
			return true
		})
	})
	payload, err := proto.Marshal(set)
	if err != nil {
		s.logger.Error("failed to encode state", zap.Error(err))
		return nil
	}
	return payload
}

// GC forgets tombstones deleted before limit.
func (s *State) GC(limit int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.write(func(tx *memdb.Txn) error {
		iterator, err := tx.Get(table, "id")
		if err != nil {
			return err
		}
		entries := []crdt.Entry{}
		for payload := iterator.Next(); payload != nil; payload = iterator.Next() {
			entries = append(entries, payload.(*Entry))
		}
		expired := crdt.Expired(limit, entries)
		for _, key := range expired {
			if _, err := tx.DeleteAll(table, "id", key); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunGC collects expired tombstones every hour until ctx is done.
func (s *State) RunGC(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.GC(crdt.Horizon(time.Now())); err != nil {
				s.logger.Error("failed to collect tombstones", zap.Error(err))
			}
		}
	}
}
