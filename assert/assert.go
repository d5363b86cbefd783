package assert

import "fmt"

// Failure is the panic value raised when an invariant the caller was
// responsible for does not hold: reading a key that is not there, resurrecting
// an unregistered class, and so on.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return "assertion failed: " + f.Message
}

// Failf panics with a *Failure built from format and args.
func Failf(format string, args ...interface{}) {
	panic(&Failure{Message: fmt.Sprintf(format, args...)})
}

// True panics with a *Failure carrying msg when cond is false.
func True(cond bool, msg string) {
	if !cond {
		panic(&Failure{Message: msg})
	}
}

// NoError panics with a *Failure wrapping err when err is not nil.
func NoError(err error) {
	if err != nil {
		panic(&Failure{Message: err.Error()})
	}
}

// Recover converts a *Failure panic into an error, leaving every other panic
// untouched. It must be deferred directly.
func Recover(err *error) {
	if r := recover(); r != nil {
		f, ok := r.(*Failure)
		if !ok {
			panic(r)
		}
		*err = f
	}
}
