package gossip

// GossipState is a named piece of replicated state hosted by a Layer.
type GossipState interface {
	Merge(data []byte, full bool) error
	MarshalBinary() []byte
}

// Channel sends a state's deltas to the other members.
type Channel interface {
	Broadcast([]byte)
}

// Layer hosts named states and carries their deltas between members.
type Layer interface {
	AddState(key string, state GossipState) (Channel, error)
}
