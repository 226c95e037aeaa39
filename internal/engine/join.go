package engine

import (
	"context"
	"fmt"
	"time"

	"chordmesh/internal/chordstate"
	"chordmesh/internal/logger"
	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
)

// handshakeTimeout bounds the bootstrap ConnectNode round trip.
const handshakeTimeout = 5 * time.Second

// Bootstrap dials addr (a transport session descriptor whose ring id is
// not known yet), performs the ConnectNode handshake to learn the
// remote's id, and folds it into the Chord ring via chordstate.Join.
// This is the one place a peer is addressed by network location instead
// of ring id: every later hop is addressed by id through the peer book
// populated here.
func (n *Node) Bootstrap(ctx context.Context, addr string) (ring.Id, error) {
	env, err := n.newPathlessEnvelope(relayConnectNodeFor(n))
	if err != nil {
		return ring.Id{}, err
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

	if err := n.tr.Send(ctx, transportPeer(ring.Id{}, addr), env); err != nil {
		return ring.Id{}, fmt.Errorf("engine: bootstrap dial %s: %w", addr, err)
	}

	timer := time.NewTimer(handshakeTimeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		cn, ok := reply.Payload.(relay.ConnectedNode)
		if !ok {
			return ring.Id{}, fmt.Errorf("engine: bootstrap %s: unexpected reply payload", addr)
		}
		remoteID := reply.OriginAddress
		n.peers.set(remoteID, transportPeer(remoteID, cn.HandshakeInfo))
		n.mu.Lock()
		n.rt.UpdateContact(kbucketContact(remoteID, cn.HandshakeInfo))
		n.mu.Unlock()
		n.performJoin(ctx, remoteID)
		return remoteID, nil
	case <-timer.C:
		return ring.Id{}, fmt.Errorf("engine: bootstrap %s: %w", addr, ErrNoReply)
	case <-ctx.Done():
		return ring.Id{}, ctx.Err()
	}
}

func relayConnectNodeFor(n *Node) relay.ConnectNode {
	return relay.ConnectNode{ID: n.id.ID(), HandshakeInfo: n.rt.Owner.SessionDescriptor}
}

// performJoin runs chordstate.Join against remoteID and, per spec.md
// §4.2, always follows up with a FindSuccessor(self_id) request to the
// resulting successor (join's only side effect beyond finger-table
// bookkeeping).
func (n *Node) performJoin(ctx context.Context, remoteID ring.Id) {
	n.mu.Lock()
	act := n.chord.Join(remoteID)
	n.mu.Unlock()
	if act.Kind != chordstate.Remote {
		return
	}
	env, err := n.newEnvelope(act.Target, relay.FindSuccessor{ID: act.Remote.QueryID})
	if err != nil {
		n.lgr.Warn("join: build find_successor failed", logger.F("err", err.Error()))
		return
	}
	n.send(ctx, act.Target, env)
}
