// Package chordstate holds the per-node Chord ring state and the pure
// decision functions that operate on it: join, stabilize, notify,
// fix_fingers, check_predecessor, closest_preceding_node, find_successor.
//
// Every operation here is pure with respect to I/O: it mutates only the
// in-memory State and returns an Action describing what the caller (the
// message state machine) must do next. Nothing in this package sends a
// message or touches a clock.
package chordstate

import "chordmesh/internal/ring"

// ActionKind discriminates the cases of Action.
type ActionKind int

const (
	// None means no follow-up is required.
	None ActionKind = iota
	// Resolved means the answer is locally known; ResolvedID holds it.
	Resolved
	// Remote means the caller must ask Target to perform Remote.Kind.
	Remote
)

// RemoteKind discriminates the cases of RemoteAction.
type RemoteKind int

const (
	// FindSuccessor asks Target for the successor of QueryID.
	FindSuccessor RemoteKind = iota
	// Notify informs Target that FromID believes it may be its predecessor.
	Notify
	// FindSuccessorForFix is FindSuccessor tagged with the finger slot
	// that originated it, so the reply can be attributed correctly even
	// if FixIndex has advanced by the time the reply arrives.
	FindSuccessorForFix
	// CheckPredecessor pings Target, which is the id itself.
	CheckPredecessor
)

// RemoteAction is the payload of an Action with Kind == Remote.
type RemoteAction struct {
	Kind     RemoteKind
	QueryID  ring.Id // FindSuccessor, FindSuccessorForFix
	FixIndex int     // FindSuccessorForFix
	FromID   ring.Id // Notify
}

// Action is the tagged-union result of every C2 decision function.
type Action struct {
	Kind       ActionKind
	ResolvedID ring.Id
	Target     ring.Id
	Remote     RemoteAction
}

func actionNone() Action { return Action{Kind: None} }

func actionResolved(id ring.Id) Action {
	return Action{Kind: Resolved, ResolvedID: id}
}

func actionRemoteFindSuccessor(target, query ring.Id) Action {
	return Action{Kind: Remote, Target: target, Remote: RemoteAction{Kind: FindSuccessor, QueryID: query}}
}

func actionRemoteNotify(target, from ring.Id) Action {
	return Action{Kind: Remote, Target: target, Remote: RemoteAction{Kind: Notify, FromID: from}}
}

func actionRemoteFindSuccessorForFix(target ring.Id, fixIndex int, query ring.Id) Action {
	return Action{Kind: Remote, Target: target, Remote: RemoteAction{Kind: FindSuccessorForFix, FixIndex: fixIndex, QueryID: query}}
}

func actionRemoteCheckPredecessor(target ring.Id) Action {
	return Action{Kind: Remote, Target: target, Remote: RemoteAction{Kind: CheckPredecessor}}
}
