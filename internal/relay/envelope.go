// Package relay implements the signed, TTL-bounded relay envelope (C4):
// forward-path/return-path deques and the path manipulation primitives
// that turn Chord's one-step decisions into a multi-hop protocol.
package relay

import (
	"errors"
	"time"

	"github.com/gammazero/deque"

	"chordmesh/internal/ring"
)

// Method discriminates the two directions a relay travels.
type Method int

const (
	// SEND carries a request forward along to_path.
	SEND Method = iota
	// REPORT carries a reply back along to_path (now the return route).
	REPORT
)

// ErrBadEnvelope is returned when an envelope fails validation: bad
// signature, expired TTL, or a path-tail mismatch.
var ErrBadEnvelope = errors.New("relay: bad envelope")

// Envelope is a relay message in flight (spec.md §3, §4.4).
type Envelope struct {
	TxID          string
	MessageID     string
	Method        Method
	ToPath        deque.Deque[ring.Id] // remaining forward route (SEND) or return route (REPORT)
	FromPath      deque.Deque[ring.Id] // ids already traversed
	Payload       Payload
	OriginAddress ring.Id
	Signature     []byte
	TTLDeadline   time.Time
}

func tailOf(d *deque.Deque[ring.Id]) (ring.Id, bool) {
	if d.Len() == 0 {
		return ring.Id{}, false
	}
	return d.Back(), true
}

// FindPrev returns the id of the node from which this relay most
// recently arrived: the tail of from_path under SEND, the tail of
// to_path under REPORT (spec.md §4.4 primitive table).
func (e *Envelope) FindPrev() (ring.Id, bool) {
	if e.Method == SEND {
		return tailOf(&e.FromPath)
	}
	return tailOf(&e.ToPath)
}

// PushPrev records that this relay was most recently handled by prev
// while currently situated at current. Under SEND it simply appends
// prev to from_path. Under REPORT it first asserts that to_path's tail
// is current (the active-path invariant) and pops it before appending
// prev to from_path.
func (e *Envelope) PushPrev(current, prev ring.Id) error {
	switch e.Method {
	case SEND:
		e.FromPath.PushBack(prev)
		return nil
	case REPORT:
		tail, ok := tailOf(&e.ToPath)
		if !ok || !tail.Equal(current) {
			return ErrBadEnvelope
		}
		e.ToPath.PopBack()
		e.FromPath.PushBack(prev)
		return nil
	}
	return ErrBadEnvelope
}

// NextHop extends the envelope one hop forward: push next onto to_path,
// push current onto from_path. Only defined for SEND.
func (e *Envelope) NextHop(current, next ring.Id) error {
	if e.Method != SEND {
		return ErrBadEnvelope
	}
	e.ToPath.PushBack(next)
	e.FromPath.PushBack(current)
	return nil
}

// RemoveToPath pops the tail of to_path.
func (e *Envelope) RemoveToPath() (ring.Id, bool) {
	if e.ToPath.Len() == 0 {
		return ring.Id{}, false
	}
	v := e.ToPath.Back()
	e.ToPath.PopBack()
	return v, true
}

// RemoveFromPath pops the tail of from_path.
func (e *Envelope) RemoveFromPath() (ring.Id, bool) {
	if e.FromPath.Len() == 0 {
		return ring.Id{}, false
	}
	v := e.FromPath.Back()
	e.FromPath.PopBack()
	return v, true
}

// ActiveTail returns the tail of to_path, which must equal the
// receiving node's id under both SEND and REPORT (the active-path
// invariant checked on receipt).
func (e *Envelope) ActiveTail() (ring.Id, bool) {
	return tailOf(&e.ToPath)
}

// ToReport converts a SEND envelope in place into a REPORT carrying
// payload, preserving tx_id/message_id so the originator can correlate
// the reply. to_path becomes the old from_path (the route home, walked
// tail-first back toward the originator); from_path becomes the old
// to_path (the route already traversed forward).
func (e *Envelope) ToReport(payload Payload) {
	var newTo, newFrom deque.Deque[ring.Id]
	for i := 0; i < e.FromPath.Len(); i++ {
		newTo.PushBack(e.FromPath.At(i))
	}
	for i := 0; i < e.ToPath.Len(); i++ {
		newFrom.PushBack(e.ToPath.At(i))
	}
	e.Method = REPORT
	e.ToPath = newTo
	e.FromPath = newFrom
	e.Payload = payload
}

// Validate checks the receiver-side rules of spec.md §4.4: signature
// (delegated to verify, which covers every field but Signature itself),
// TTL, and that the active path's tail equals receiverID.
func (e *Envelope) Validate(receiverID ring.Id, now time.Time, verify func(*Envelope) bool) error {
	if now.After(e.TTLDeadline) {
		return ErrBadEnvelope
	}
	tail, ok := e.ActiveTail()
	if !ok || !tail.Equal(receiverID) {
		return ErrBadEnvelope
	}
	if verify != nil && !verify(e) {
		return ErrBadEnvelope
	}
	return nil
}
