package caucus

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/assert"
	"github.com/vx-labs/caucus/debounce"
	"github.com/vx-labs/caucus/notify"
	"github.com/vx-labs/caucus/sharedmap"
	"github.com/vx-labs/caucus/streaming"
	"go.uber.org/zap"
)

const (
	MemberAddedID   = "caucusMemberAdded"
	MemberChangedID = "caucusMemberChanged"
	MemberRemovedID = "caucusMemberRemoved"
)

// Interests dispatched by every Caucus. The notification payload is a
// notify.Notification[string] carrying the affected key; observers read the
// value back from the caucus.
var (
	MemberAdded   = notify.NewInterest(MemberAddedID)
	MemberChanged = notify.NewInterest(MemberChangedID)
	MemberRemoved = notify.NewInterest(MemberRemovedID)
)

// Caucus presents a shared map as a typed collection. The shared map is the
// only copy of the data: every read rebuilds its result from it.
type Caucus[T streaming.DynamicStreamable] struct {
	*notify.Notifier
	shared      sharedmap.Map
	registry    *streaming.Registry
	compare     func(a, b T) int
	logger      *zap.Logger
	kick        *debounce.Debouncer
	unsubscribe func()
}

// New binds a caucus to shared and schedules the kick-start notification:
// entries written before this participant attached are never reported as
// remote changes, so observers get one MemberAdded with an empty key telling
// them to read the whole collection.
func New[T streaming.DynamicStreamable](shared sharedmap.Map, opts ...Option[T]) *Caucus[T] {
	cfg := config[T]{
		logger:   zap.NewNop(),
		registry: streaming.Default,
		delay:    DefaultKickStartDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Caucus[T]{
		Notifier: notify.NewNotifier(),
		shared:   shared,
		registry: cfg.registry,
		compare:  cfg.compare,
		logger:   cfg.logger,
	}
	c.unsubscribe = shared.Subscribe(c.onValueChanged)
	c.kick = debounce.New(cfg.delay, c.kickStart)
	c.kick.Trigger()
	return c
}

func (c *Caucus[T]) kickStart() {
	c.dispatch(MemberAdded, "")
}

func (c *Caucus[T]) onValueChanged(ev sharedmap.ValueChanged) {
	if ev.Local {
		return
	}
	switch {
	case ev.HadPrevious && ev.Exists:
		c.dispatch(MemberChanged, ev.Key)
	case ev.HadPrevious:
		c.dispatch(MemberRemoved, ev.Key)
	case ev.Exists:
		c.dispatch(MemberAdded, ev.Key)
	}
}

func (c *Caucus[T]) dispatch(interest notify.Interest, key string) {
	c.logger.Debug("dispatching caucus notification", zap.String("interest", interest.ID()), zap.String("key", key))
	notificationsCounter.WithLabelValues(interest.ID()).Inc()
	c.NotifyObservers(interest, notify.NewNotification(interest, key))
}

func (c *Caucus[T]) Has(key string) bool {
	return c.shared.Has(key)
}

func (c *Caucus[T]) Len() int {
	return c.shared.Len()
}

// Add writes element under key, replacing whatever was there.
func (c *Caucus[T]) Add(key string, element T) error {
	return c.write("add", key, element)
}

// Amend is Add for callers who know key is already present.
func (c *Caucus[T]) Amend(key string, element T) error {
	return c.write("amend", key, element)
}

func (c *Caucus[T]) write(op, key string, element T) error {
	if className := element.ClassName(); !c.registry.Has(className) {
		return errors.Wrapf(streaming.ErrUnknownClass, "failed to %s caucus member %q of class %q", op, key, className)
	}
	err := c.shared.Set(key, streaming.Flatten(element))
	if err != nil {
		return errors.Wrapf(err, "failed to %s caucus member %q", op, key)
	}
	writesCounter.WithLabelValues(op).Inc()
	return nil
}

// Remove deletes key and reports whether it was present.
func (c *Caucus[T]) Remove(key string) (bool, error) {
	deleted, err := c.shared.Delete(key)
	if err != nil {
		return false, errors.Wrapf(err, "failed to remove caucus member %q", key)
	}
	if deleted {
		writesCounter.WithLabelValues("remove").Inc()
	}
	return deleted, nil
}

// Get returns a fresh copy of the member stored under key. Reading a key that
// is not there is a precondition violation and panics; use Has or Lookup when
// absence is expected.
func (c *Caucus[T]) Get(key string) T {
	stream, ok := c.shared.Get(key)
	if !ok {
		assert.Failf("caucus: no member under key %q", key)
	}
	return c.resurrect(stream)
}

func (c *Caucus[T]) Lookup(key string) (T, bool) {
	stream, ok := c.shared.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	return c.resurrect(stream), true
}

func (c *Caucus[T]) resurrect(stream string) T {
	obj := c.registry.Resurrect(stream)
	typed, ok := obj.(T)
	if !ok {
		assert.Failf("caucus: class %s is not a %T", obj.ClassName(), typed)
	}
	return typed
}

// Current rebuilds the whole collection.
func (c *Caucus[T]) Current() map[string]T {
	out := make(map[string]T, c.shared.Len())
	c.shared.Range(func(key, value string) bool {
		out[key] = c.resurrect(value)
		return true
	})
	return out
}

// CurrentAsArray rebuilds the whole collection as a slice, sorted with the
// comparator given to New. Without one the order is the shared map's
// iteration order.
func (c *Caucus[T]) CurrentAsArray() []T {
	out := make([]T, 0, c.shared.Len())
	c.shared.Range(func(_, value string) bool {
		out = append(out, c.resurrect(value))
		return true
	})
	if c.compare != nil {
		sort.SliceStable(out, func(i, j int) bool {
			return c.compare(out[i], out[j]) < 0
		})
	}
	return out
}

// RemoveAll empties the shared map, for every participant, and re-runs the
// kick-start so local observers refresh.
func (c *Caucus[T]) RemoveAll() error {
	err := c.shared.Clear()
	if err != nil {
		return errors.Wrap(err, "failed to clear caucus")
	}
	writesCounter.WithLabelValues("clear").Inc()
	c.kick.Trigger()
	return nil
}

// SynchFrom makes the shared map hold exactly desired, writing only the
// entries whose flattened form differs.
func (c *Caucus[T]) SynchFrom(desired map[string]T) error {
	// the shared map must not be mutated while it is being ranged over
	deletions := []string{}
	c.shared.Range(func(key, _ string) bool {
		if _, ok := desired[key]; !ok {
			deletions = append(deletions, key)
		}
		return true
	})
	for _, key := range deletions {
		if _, err := c.Remove(key); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(desired))
	for key := range desired {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		element := desired[key]
		stored, ok := c.shared.Get(key)
		if !ok {
			if err := c.Add(key, element); err != nil {
				return err
			}
			continue
		}
		if stored != streaming.Flatten(element) {
			if err := c.Amend(key, element); err != nil {
				return err
			}
			continue
		}
		skippedWritesCounter.Inc()
	}
	return nil
}

// Close detaches the caucus from its shared map and cancels a pending
// kick-start. The shared map itself is left open.
func (c *Caucus[T]) Close() {
	c.kick.Stop()
	c.unsubscribe()
}
