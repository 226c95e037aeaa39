package relay

import "chordmesh/internal/ring"

// Payload is the tagged union of relay message variants (spec.md §4.5).
// Implementations are value types; a type switch on the concrete type
// recovers the variant.
type Payload interface {
	isPayload()
}

// ConnectNode requests link establishment with id, carrying an opaque
// transport handshake blob. Forwarded but not acted upon by the ring
// core itself.
type ConnectNode struct {
	ID            ring.Id
	HandshakeInfo string
}

// ConnectedNode answers ConnectNode.
type ConnectedNode struct {
	AlreadyConnected bool
	HandshakeInfo    string // empty when AlreadyConnected
}

// AlreadyConnected is an inert acknowledgement that a link already exists.
type AlreadyConnected struct{}

// FindSuccessor asks the ring for the successor of ID. ForFix marks this
// as a fix_fingers lookup so the reply can be attributed to the finger
// slot that originated it; FixIndex carries that slot along the whole
// round trip rather than trusting the cursor at reply time, which may
// have advanced (spec.md §9 open question 1).
type FindSuccessor struct {
	ID       ring.Id
	ForFix   bool
	FixIndex int
}

// FoundSuccessor answers FindSuccessor.
type FoundSuccessor struct {
	Successor ring.Id
	ForFix    bool
	FixIndex  int
}

// NotifyPredecessor tells the receiver that Predecessor believes it may
// be the receiver's predecessor.
type NotifyPredecessor struct {
	Predecessor ring.Id
}

// NotifiedPredecessor answers NotifyPredecessor with the receiver's
// resulting predecessor (after chord.Notify has run).
type NotifiedPredecessor struct {
	Predecessor ring.Id
}

// Ping is an inert liveness check (supplements spec.md with the
// original's ICE-transport-level liveness primitive; see SPEC_FULL.md).
type Ping struct{}

// Pong answers Ping.
type Pong struct{}

// QuerySuccessorList asks the receiver for its successor list, used by
// the successor-list fault-tolerance supplement (SPEC_FULL.md, grounded
// on the teacher's fixSuccessorList).
type QuerySuccessorList struct{}

// SuccessorListReply answers QuerySuccessorList.
type SuccessorListReply struct {
	Successors []ring.Id
}

// StoreResource asks the receiver to accept ownership of a resource,
// used for both client-initiated Put forwarding and predecessor-driven
// ownership transfer (SPEC_FULL.md "Resource storage with ownership
// transfer").
type StoreResource struct {
	Key    ring.Id
	RawKey string
	Value  []byte
}

// StoredResource answers StoreResource.
type StoredResource struct {
	Accepted bool
}

// RetrieveResource asks the receiver for the resource at Key.
type RetrieveResource struct {
	Key ring.Id
}

// RetrievedResource answers RetrieveResource.
type RetrievedResource struct {
	Found  bool
	RawKey string
	Value  []byte
}

// RemoveResource asks the receiver to delete the resource at Key.
type RemoveResource struct {
	Key ring.Id
}

// RemovedResource answers RemoveResource.
type RemovedResource struct {
	Found bool
}

func (ConnectNode) isPayload()         {}
func (ConnectedNode) isPayload()       {}
func (AlreadyConnected) isPayload()    {}
func (FindSuccessor) isPayload()       {}
func (FoundSuccessor) isPayload()      {}
func (NotifyPredecessor) isPayload()   {}
func (NotifiedPredecessor) isPayload() {}
func (Ping) isPayload()                {}
func (Pong) isPayload()                {}
func (QuerySuccessorList) isPayload()  {}
func (SuccessorListReply) isPayload()  {}
func (StoreResource) isPayload()       {}
func (StoredResource) isPayload()      {}
func (RetrieveResource) isPayload()    {}
func (RetrievedResource) isPayload()   {}
func (RemoveResource) isPayload()      {}
func (RemovedResource) isPayload()     {}
