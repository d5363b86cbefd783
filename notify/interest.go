package notify

// Interest names a topic observers can register for. Two interests are equal
// when their identifiers are.
type Interest struct {
	id string
}

func NewInterest(id string) Interest {
	return Interest{id: id}
}

func (i Interest) ID() string {
	return i.id
}

func (i Interest) Equals(other Interest) bool {
	return i.id == other.id
}

func (i Interest) String() string {
	return i.id
}

// Notification pairs an interest with a typed payload.
type Notification[T any] struct {
	interest Interest
	payload  T
}

func NewNotification[T any](interest Interest, payload T) Notification[T] {
	return Notification[T]{interest: interest, payload: payload}
}

func (n Notification[T]) Interest() Interest {
	return n.interest
}

func (n Notification[T]) Payload() T {
	return n.payload
}
