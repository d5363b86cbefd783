package sharedmap

import "sync"

// Listeners is a set of change-feed callbacks, usable by Map implementations.
type Listeners struct {
	mtx  sync.RWMutex
	seq  int
	subs map[int]func(ValueChanged)
	ids  []int
}

func (l *Listeners) Subscribe(f func(ValueChanged)) func() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.subs == nil {
		l.subs = map[int]func(ValueChanged){}
	}
	l.seq++
	id := l.seq
	l.subs[id] = f
	l.ids = append(l.ids, id)
	return func() {
		l.mtx.Lock()
		defer l.mtx.Unlock()
		if _, ok := l.subs[id]; !ok {
			return
		}
		delete(l.subs, id)
		for idx := range l.ids {
			if l.ids[idx] == id {
				l.ids = append(l.ids[:idx], l.ids[idx+1:]...)
				break
			}
		}
	}
}

// Emit calls every listener, in subscription order, outside of the lock.
func (l *Listeners) Emit(ev ValueChanged) {
	l.mtx.RLock()
	fns := make([]func(ValueChanged), 0, len(l.ids))
	for _, id := range l.ids {
		fns = append(fns, l.subs[id])
	}
	l.mtx.RUnlock()
	for _, f := range fns {
		f(ev)
	}
}

func (l *Listeners) Len() int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return len(l.ids)
}
