package chordstate

import (
	"errors"

	"chordmesh/internal/ring"
)

// ErrRoutingExhausted is returned by ClosestPrecedingNode and
// FindSuccessor when the finger table has no usable entry toward the
// query. The caller (periodic loop or message handler) logs and skips;
// it never propagates over the wire.
var ErrRoutingExhausted = errors.New("chordstate: routing exhausted")

// State is the Chord ring state owned by a single node. It carries no
// lock of its own; the message state machine (C5) is responsible for
// serializing access to it and for releasing any lock before performing
// I/O implied by a returned Action.
type State struct {
	SelfID         ring.Id
	Successor      ring.Id
	Predecessor    *ring.Id    // nil means unknown
	Finger         [ring.Bits]*ring.Id // finger[k], nil means unknown
	FixFingerIndex int
}

// New returns a freshly bootstrapped single-node State: successor is
// self, predecessor and every finger slot are unknown.
func New(self ring.Id) *State {
	return &State{
		SelfID:    self,
		Successor: self,
	}
}

// Join merges a newly discovered id into the finger table and, if it is
// closer than the current successor, adopts it as successor. It always
// returns Remote(successor, FindSuccessor(self_id)) except when id is
// self, in which case there is nothing to do.
func (s *State) Join(id ring.Id) Action {
	if id.Equal(s.SelfID) {
		return actionNone()
	}
	for k := 0; k < ring.Bits; k++ {
		pos := ring.Add(s.SelfID, ring.Pow2(k))
		if pos.Cmp(id) <= 0 || pos.Cmp(ring.Neg(id)) >= 0 {
			cur := s.Finger[k]
			if cur == nil {
				idCopy := id
				s.Finger[k] = &idCopy
				continue
			}
			if id.Cmp(*cur) < 0 || id.Cmp(ring.Neg(*cur)) > 0 {
				idCopy := id
				s.Finger[k] = &idCopy
			}
		}
	}
	if s.SelfID.Equal(s.Successor) || ring.Distance(s.SelfID, id).Cmp(ring.Distance(s.SelfID, s.Successor)) < 0 {
		s.Successor = id
	}
	return actionRemoteFindSuccessor(s.Successor, s.SelfID)
}

// Stabilize checks whether the known predecessor lies strictly between
// self and the current successor; if so it adopts that predecessor as
// the new successor and asks it to notify back. Converges ring topology
// on newly inserted nodes between self and the old successor.
func (s *State) Stabilize() Action {
	if s.Predecessor == nil {
		return actionNone()
	}
	x := *s.Predecessor
	if ring.InOpenArc(s.SelfID, x, s.Successor) {
		s.Successor = x
		return actionRemoteNotify(x, s.SelfID)
	}
	return actionNone()
}

// Notify records candidate as predecessor if it is unknown, or if it
// lies in the open arc between the current predecessor and self.
func (s *State) Notify(candidate ring.Id) {
	if s.Predecessor == nil {
		c := candidate
		s.Predecessor = &c
		return
	}
	if ring.InOpenArc(*s.Predecessor, candidate, s.SelfID) {
		c := candidate
		s.Predecessor = &c
	}
}

// FixFingers advances the round-robin cursor by one slot and resolves
// the successor of self+2^index, either locally (updating the slot
// directly) or by delegating to a remote node tagged with the slot
// index so a late reply still lands in the right place.
func (s *State) FixFingers() (Action, error) {
	s.FixFingerIndex = (s.FixFingerIndex + 1) % ring.Bits
	q := ring.Add(s.SelfID, ring.Pow2(s.FixFingerIndex))
	act, err := s.FindSuccessor(q)
	if err != nil {
		return Action{}, err
	}
	switch act.Kind {
	case Resolved:
		id := act.ResolvedID
		s.Finger[s.FixFingerIndex] = &id
		return actionNone(), nil
	case Remote:
		return actionRemoteFindSuccessorForFix(act.Target, s.FixFingerIndex, q), nil
	default:
		return actionNone(), nil
	}
}

// CheckPredecessor returns a request to ping the known predecessor, or
// None if no predecessor is known. The caller treats a failed ping as
// "clear predecessor".
func (s *State) CheckPredecessor() Action {
	if s.Predecessor == nil {
		return actionNone()
	}
	return actionRemoteCheckPredecessor(*s.Predecessor)
}

// ClosestPrecedingNode scans the finger table from the highest index
// down to zero and returns the first entry that lies strictly between
// self and q. Returns ErrRoutingExhausted if no such entry exists.
func (s *State) ClosestPrecedingNode(q ring.Id) (ring.Id, error) {
	for k := ring.Bits - 1; k >= 0; k-- {
		f := s.Finger[k]
		if f == nil {
			continue
		}
		if ring.InOpenArc(s.SelfID, *f, q) {
			return *f, nil
		}
	}
	return ring.Id{}, ErrRoutingExhausted
}

// FindSuccessor answers locally when q falls in (self, successor] —
// successor is responsible for q — and otherwise delegates to the
// closest preceding node known.
func (s *State) FindSuccessor(q ring.Id) (Action, error) {
	// Degenerate single-node ring: (self_id, self_id] is the whole ring,
	// so the lone node is responsible for every key.
	if s.Successor.Equal(s.SelfID) {
		return actionResolved(s.Successor), nil
	}
	if ring.InArcInclusiveRight(s.SelfID, q, s.Successor) {
		return actionResolved(s.Successor), nil
	}
	target, err := s.ClosestPrecedingNode(q)
	if err != nil {
		return Action{}, err
	}
	return actionRemoteFindSuccessor(target, q), nil
}
