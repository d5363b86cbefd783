package sharedmap

import "github.com/pkg/errors"

var (
	ErrClosed = errors.New("shared map closed")
)

// ValueChanged describes one mutation of a shared map as seen by one
// participant.
type ValueChanged struct {
	Key string
	// HadPrevious is true when the key held a value before the mutation.
	HadPrevious bool
	// Local is true when this participant issued the mutation.
	Local bool
	// Exists is true when the key holds a value after the mutation.
	Exists bool
}

// Map is a string-keyed map replicated between participants. Mutations are
// visible to every participant, eventually, and every mutation a participant
// sees (its own included) is reported to the listeners registered with
// Subscribe.
type Map interface {
	Get(key string) (string, bool)
	Has(key string) bool
	Set(key, value string) error
	// Delete reports whether the key was present.
	Delete(key string) (bool, error)
	// Range calls f for each entry until f returns false. f must not mutate
	// the map.
	Range(f func(key, value string) bool)
	Len() int
	Clear() error
	Subscribe(f func(ValueChanged)) (cancel func())
}
