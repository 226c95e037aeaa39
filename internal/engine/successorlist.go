package engine

import "chordmesh/internal/ring"

// successorList is a thin fault-tolerance supplement over the single
// chordstate successor pointer (SPEC_FULL.md "successor-list fault
// tolerance"), grounded on the teacher's fixSuccessorList: a bounded
// slice of the next few successors beyond the primary one, refreshed
// periodically via QuerySuccessorList/SuccessorListReply. It is not a
// second ring; chordstate.State.Successor remains the single source of
// truth for routing. The list only supplies a fallback candidate when
// the primary successor stops responding.
type successorList struct {
	max   int
	succs []ring.Id
}

func newSuccessorList(max int) *successorList {
	if max <= 0 {
		max = 1
	}
	return &successorList{max: max}
}

// replace overwrites the list with fresh, a reply received from the
// primary successor.
func (l *successorList) replace(fresh []ring.Id) {
	if len(fresh) > l.max {
		fresh = fresh[:l.max]
	}
	l.succs = append(l.succs[:0], fresh...)
}

// next returns the first entry that is not self and not the dead
// successor, removing every entry up to and including it. Returns
// false if the list is exhausted.
func (l *successorList) next(self, dead ring.Id) (ring.Id, bool) {
	for len(l.succs) > 0 {
		cand := l.succs[0]
		l.succs = l.succs[1:]
		if cand.Equal(self) || cand.Equal(dead) {
			continue
		}
		return cand, true
	}
	return ring.Id{}, false
}

// snapshot returns the list prefixed with self, the shape a
// SuccessorListReply answers with (teacher convention: a node's
// successor list as seen by its predecessor always starts with the
// node itself as entry zero).
func (l *successorList) snapshot(self ring.Id) []ring.Id {
	out := make([]ring.Id, 0, len(l.succs)+1)
	out = append(out, self)
	out = append(out, l.succs...)
	if len(out) > l.max {
		out = out[:l.max]
	}
	return out
}
