package streaming

// Streamable objects encode their own field state as a canonical string and
// can overwrite themselves from such a string.
//
// For any valid x, a blank instance that StreamIn(x.StreamOut()) is equal by
// value to x.
type Streamable interface {
	StreamOut() string
	StreamIn(stream string) error
}

// DynamicStreamable objects additionally report a class name that is
// registered in a Registry, so they can be rebuilt without the reader knowing
// their concrete type.
type DynamicStreamable interface {
	Streamable
	ClassName() string
}

// Factory returns a blank instance of one concrete DynamicStreamable type.
type Factory func() DynamicStreamable
