package engine

import (
	"context"
	"errors"
	"time"

	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
)

// ErrNoReply is returned by requestReply when the peer does not answer
// within the given timeout (a canceled ctx yields ctx.Err() instead).
var ErrNoReply = errors.New("engine: no reply received")

// requestReply sends a freshly built SEND envelope to target and blocks
// until the correlated REPORT arrives, ctx is canceled, or deadline
// passes. Used by the handful of exchanges the engine treats as
// synchronous round trips: client lookups, liveness checks, resource
// operations and successor-list refresh. The ring maintenance traffic
// (join and fix_fingers FindSuccessor, stabilize NotifyPredecessor)
// does NOT go through here — spec.md §4.5 handles those terminal
// REPORTs asynchronously as they arrive, independent of whichever tick
// sent the request. The bootstrap handshake registers its own waiter
// in Bootstrap.
func (n *Node) requestReply(ctx context.Context, target ring.Id, payload relay.Payload, timeout time.Duration) (*relay.Envelope, error) {
	env, err := n.newEnvelope(target, payload)
	if err != nil {
		return nil, err
	}
	ch := make(chan *relay.Envelope, 1)
	n.pendingMu.Lock()
	n.pending[env.TxID] = ch
	n.pendingMu.Unlock()
	defer func() {
		n.pendingMu.Lock()
		delete(n.pending, env.TxID)
		n.pendingMu.Unlock()
	}()

	n.send(ctx, target, env)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return nil, ErrNoReply
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliverPending hands env to a waiting requestReply call, if one is
// registered for its tx_id. Returns true if it was claimed.
func (n *Node) deliverPending(env *relay.Envelope) bool {
	n.pendingMu.Lock()
	ch, ok := n.pending[env.TxID]
	if ok {
		delete(n.pending, env.TxID)
	}
	n.pendingMu.Unlock()
	if !ok {
		return false
	}
	ch <- env
	return true
}
