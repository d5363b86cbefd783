package sharedmap

import (
	"sync"
)

// Cluster is an in-process shared map: every replica it hands out reads and
// writes the same ordered table, and every mutation is echoed to the issuing
// replica as local and to the others as remote, synchronously.
type Cluster struct {
	mtx      sync.RWMutex
	table    *Table
	replicas []*Replica
}

func NewCluster() *Cluster {
	return &Cluster{table: NewTable()}
}

// Join returns a new participant view of the cluster.
func (c *Cluster) Join(id string) *Replica {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	r := &Replica{id: id, cluster: c}
	c.replicas = append(c.replicas, r)
	return r
}

func (c *Cluster) leave(r *Replica) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for idx := range c.replicas {
		if c.replicas[idx] == r {
			c.replicas = append(c.replicas[:idx], c.replicas[idx+1:]...)
			return
		}
	}
}

func (c *Cluster) broadcast(origin *Replica, events []ValueChanged) {
	c.mtx.RLock()
	replicas := make([]*Replica, len(c.replicas))
	copy(replicas, c.replicas)
	c.mtx.RUnlock()
	for _, ev := range events {
		for _, r := range replicas {
			ev.Local = r == origin
			r.listeners.Emit(ev)
		}
	}
}

// Replica is one participant's handle on a Cluster.
type Replica struct {
	id        string
	cluster   *Cluster
	listeners Listeners
	closed    bool
}

var _ Map = &Replica{}

func (r *Replica) ID() string {
	return r.id
}

func (r *Replica) Get(key string) (string, bool) {
	r.cluster.mtx.RLock()
	defer r.cluster.mtx.RUnlock()
	return r.cluster.table.Get(key)
}

func (r *Replica) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

func (r *Replica) Set(key, value string) error {
	r.cluster.mtx.Lock()
	if r.closed {
		r.cluster.mtx.Unlock()
		return ErrClosed
	}
	_, had := r.cluster.table.Set(key, value)
	r.cluster.mtx.Unlock()
	r.cluster.broadcast(r, []ValueChanged{{Key: key, HadPrevious: had, Exists: true}})
	return nil
}

func (r *Replica) Delete(key string) (bool, error) {
	r.cluster.mtx.Lock()
	if r.closed {
		r.cluster.mtx.Unlock()
		return false, ErrClosed
	}
	_, had := r.cluster.table.Delete(key)
	r.cluster.mtx.Unlock()
	if had {
		r.cluster.broadcast(r, []ValueChanged{{Key: key, HadPrevious: true, Exists: false}})
	}
	return had, nil
}

func (r *Replica) Range(f func(key, value string) bool) {
	r.cluster.mtx.RLock()
	snapshot := NewTable()
	r.cluster.table.Range(func(key, value string) bool {
		snapshot.Set(key, value)
		return true
	})
	r.cluster.mtx.RUnlock()
	snapshot.Range(f)
}

func (r *Replica) Len() int {
	r.cluster.mtx.RLock()
	defer r.cluster.mtx.RUnlock()
	return r.cluster.table.Len()
}

func (r *Replica) Clear() error {
	r.cluster.mtx.Lock()
	if r.closed {
		r.cluster.mtx.Unlock()
		return ErrClosed
	}
	keys := r.cluster.table.Keys()
	r.cluster.table.Clear()
	r.cluster.mtx.Unlock()
	events := make([]ValueChanged, len(keys))
	for idx, key := range keys {
		events[idx] = ValueChanged{Key: key, HadPrevious: true, Exists: false}
	}
	r.cluster.broadcast(r, events)
	return nil
}

func (r *Replica) Subscribe(f func(ValueChanged)) func() {
	return r.listeners.Subscribe(f)
}

// Close detaches the replica from its cluster. Later writes fail with
// ErrClosed.
func (r *Replica) Close() error {
	r.cluster.mtx.Lock()
	r.closed = true
	r.cluster.mtx.Unlock()
	r.cluster.leave(r)
	return nil
}
