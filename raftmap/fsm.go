package raftmap

import (
	"bytes"
	"io"
	"io/ioutil"

	proto "github.com/golang/protobuf/proto"
	"github.com/hashicorp/raft"
	"github.com/vx-labs/caucus/sharedmap"
	"go.uber.org/zap"
)

type fsm struct {
	m *Map
}

func (f *fsm) Apply(log *raft.Log) interface{} {
	if log.Type != raft.LogCommand {
		return nil
	}
	cmd := &Command{}
	if err := proto.Unmarshal(log.Data, cmd); err != nil {
		f.m.logger.Error("failed to decode raft command", zap.Error(err))
		return err
	}
	local := cmd.Origin == f.m.id
	events := []sharedmap.ValueChanged{}
	var result bool

	f.m.mtx.Lock()
	switch cmd.Op {
	case OpSet:
		_, had := f.m.table.Set(cmd.Key, cmd.Value)
		events = append(events, sharedmap.ValueChanged{Key: cmd.Key, HadPrevious: had, Local: local, Exists: true})
	case OpDelete:
		_, result = f.m.table.Delete(cmd.Key)
		if result {
			events = append(events, sharedmap.ValueChanged{Key: cmd.Key, HadPrevious: true, Local: local})
		}
	case OpClear:
		for _, key := range f.m.table.Keys() {
			events = append(events, sharedmap.ValueChanged{Key: key, HadPrevious: true, Local: local})
		}
		f.m.table.Clear()
	}
	f.m.mtx.Unlock()

	for _, ev := range events {
		f.m.listeners.Emit(ev)
	}
	return result
}

type snapshot struct {
	src []byte
}

func (s *snapshot) Persist(sink raft.SnapshotSink) error {
	_, err := io.Copy(sink, bytes.NewReader(s.src))
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *snapshot) Release() {}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	dump := &Snapshot{}
	f.m.mtx.RLock()
	f.m.table.Range(func(key, value string) bool {
		dump.Entries = append(dump.Entries, &KV{Key: key, Value: value})
		return true
	})
	f.m.mtx.RUnlock()
	payload, err := proto.Marshal(dump)
	if err != nil {
		return nil, err
	}
	return &snapshot{src: payload}, nil
}

// Restore replaces the table with a snapshot and reports the difference to
// listeners as remote changes.
func (f *fsm) Restore(snap io.ReadCloser) error {
	defer snap.Close()
	payload, err := ioutil.ReadAll(snap)
	if err != nil {
		return err
	}
	dump := &Snapshot{}
	if err := proto.Unmarshal(payload, dump); err != nil {
		return err
	}
	restored := sharedmap.NewTable()
	for _, entry := range dump.Entries {
		restored.Set(entry.Key, entry.Value)
	}
	events := []sharedmap.ValueChanged{}

	f.m.mtx.Lock()
	f.m.table.Range(func(key, value string) bool {
		if _, ok := restored.Get(key); !ok {
			events = append(events, sharedmap.ValueChanged{Key: key, HadPrevious: true})
		}
		return true
	})
	restored.Range(func(key, value string) bool {
		old, had := f.m.table.Get(key)
		if !had || old != value {
			events = append(events, sharedmap.ValueChanged{Key: key, HadPrevious: had, Exists: true})
		}
		return true
	})
	f.m.table = restored
	f.m.mtx.Unlock()

	for _, ev := range events {
		f.m.listeners.Emit(ev)
	}
	return nil
}
