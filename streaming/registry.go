package streaming

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/assert"
)

var (
	ErrDuplicateClass = errors.New("class already registered")
	ErrUnknownClass   = errors.New("class not registered")
	ErrInvalidClass   = errors.New("invalid class name")
	ErrMalformed      = errors.New("malformed flattened object")
)

type envelope struct {
	ClassName string `json:"className"`
	Payload   string `json:"payload"`
}

// Registry maps class names to factories. It is meant to be filled once,
// before the first Resurrect, and read many times afterwards.
type Registry struct {
	mtx       sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(className string, factory Factory) error {
	if className == "" || factory == nil {
		return ErrInvalidClass
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	if _, ok := r.factories[className]; ok {
		return errors.Wrap(ErrDuplicateClass, className)
	}
	r.factories[className] = factory
	return nil
}

// MustRegister is Register for program initialisation: a collision is a
// static programming error.
func (r *Registry) MustRegister(className string, factory Factory) {
	if err := r.Register(className, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(className string) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, ok := r.factories[className]
	return ok
}

// Classes returns the registered class names, sorted.
func (r *Registry) Classes() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) factory(className string) (Factory, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	f, ok := r.factories[className]
	return f, ok
}

// Flatten encodes obj together with its class name.
func Flatten(obj DynamicStreamable) string {
	payload, err := json.Marshal(envelope{
		ClassName: obj.ClassName(),
		Payload:   obj.StreamOut(),
	})
	if err != nil {
		// two strings always encode
		panic(err)
	}
	return string(payload)
}

// Decode rebuilds the object flattened in flat.
func (r *Registry) Decode(flat string) (DynamicStreamable, error) {
	var env envelope
	if err := json.Unmarshal([]byte(flat), &env); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if env.ClassName == "" {
		return nil, errors.Wrap(ErrMalformed, "missing class name")
	}
	factory, ok := r.factory(env.ClassName)
	if !ok {
		return nil, errors.Wrap(ErrUnknownClass, env.ClassName)
	}
	obj := factory()
	if err := obj.StreamIn(env.Payload); err != nil {
		return nil, errors.Wrapf(err, "failed to stream in %s", env.ClassName)
	}
	return obj, nil
}

// Resurrect is Decode for callers that treat an unknown class or a corrupt
// payload as an impossible state: it panics with an *assert.Failure instead of
// returning a partially built object.
func (r *Registry) Resurrect(flat string) DynamicStreamable {
	obj, err := r.Decode(flat)
	assert.NoError(err)
	return obj
}

// Default is the process-wide registry.
var Default = NewRegistry()

func Register(className string, factory Factory) error {
	return Default.Register(className, factory)
}
func MustRegister(className string, factory Factory) {
	Default.MustRegister(className, factory)
}
func Decode(flat string) (DynamicStreamable, error) {
	return Default.Decode(flat)
}
func Resurrect(flat string) DynamicStreamable {
	return Default.Resurrect(flat)
}
