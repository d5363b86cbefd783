package notify

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// Observer receives every notification dispatched for the interest it was
// registered with. The notification is one of the Notification[T] values.
type Observer func(interest Interest, notification interface{})

// ObserverFor adapts a typed handler into an Observer. A notification whose
// payload is not a T is a programming error and panics.
func ObserverFor[T any](handler func(Interest, Notification[T])) Observer {
	return func(interest Interest, notification interface{}) {
		typed, ok := notification.(Notification[T])
		if !ok {
			panic(fmt.Sprintf("notify: observer for %q expects %T, got %T", interest.ID(), typed, notification))
		}
		handler(interest, typed)
	}
}

type registration struct {
	interest Interest
	observer Observer
}

// Notifier holds observer registrations and dispatches synchronously, in
// registration order, on the calling goroutine.
//
// Registrations are kept in an immutable radix tree keyed by a big-endian
// sequence number, so a walk visits them in the order they were added and a
// dispatch always sees a consistent snapshot.
type Notifier struct {
	state *iradix.Tree
	seq   uint64
}

func NewNotifier() *Notifier {
	return &Notifier{state: iradix.New()}
}

func (n *Notifier) load() *iradix.Tree {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(&n.state))
	tree := (*iradix.Tree)(atomic.LoadPointer(ptr))
	if tree == nil {
		tree = iradix.New()
		if atomic.CompareAndSwapPointer(ptr, nil, unsafe.Pointer(tree)) {
			return tree
		}
		return (*iradix.Tree)(atomic.LoadPointer(ptr))
	}
	return tree
}

func (n *Notifier) cas(old, new *iradix.Tree) bool {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(&n.state))
	return atomic.CompareAndSwapPointer(ptr, unsafe.Pointer(old), unsafe.Pointer(new))
}

// AddObserver registers observer for interest. The returned function removes
// the registration; calling it more than once is harmless.
func (n *Notifier) AddObserver(interest Interest, observer Observer) func() {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, atomic.AddUint64(&n.seq, 1))
	reg := &registration{interest: interest, observer: observer}
	for {
		old := n.load()
		new, _, _ := old.Insert(key, reg)
		if n.cas(old, new) {
			break
		}
	}
	return func() {
		for {
			old := n.load()
			new, _, removed := old.Delete(key)
			if !removed || n.cas(old, new) {
				return
			}
		}
	}
}

// NotifyObservers calls every observer registered for interest. Observers
// added or removed while the dispatch runs do not affect it.
func (n *Notifier) NotifyObservers(interest Interest, notification interface{}) {
	n.load().Root().Walk(func(k []byte, v interface{}) bool {
		reg := v.(*registration)
		if reg.interest.Equals(interest) {
			reg.observer(interest, notification)
		}
		return false
	})
}

// Len returns the number of registered observers.
func (n *Notifier) Len() int {
	return n.load().Len()
}
