package engine

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"chordmesh/internal/identity"
	"chordmesh/internal/logger"
	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
)

// signableFields is the gob-encoded subset of an envelope the signature
// covers: every field except the signature itself (spec.md §4.4/§6).
type signableFields struct {
	TxID          string
	MessageID     string
	Method        relay.Method
	ToPath        []ring.Id
	FromPath      []ring.Id
	Payload       relay.Payload
	OriginAddress ring.Id
	TTLDeadline   time.Time
}

func deqSlice(d func(int) ring.Id, n int) []ring.Id {
	out := make([]ring.Id, n)
	for i := 0; i < n; i++ {
		out[i] = d(i)
	}
	return out
}

func signableBody(e *relay.Envelope) ([]byte, error) {
	sf := signableFields{
		TxID:          e.TxID,
		MessageID:     e.MessageID,
		Method:        e.Method,
		ToPath:        deqSlice(e.ToPath.At, e.ToPath.Len()),
		FromPath:      deqSlice(e.FromPath.At, e.FromPath.Len()),
		Payload:       e.Payload,
		OriginAddress: e.OriginAddress,
		TTLDeadline:   e.TTLDeadline,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&sf); err != nil {
		return nil, fmt.Errorf("engine: encode signable body: %w", err)
	}
	return buf.Bytes(), nil
}

// newEnvelope builds a fresh SEND envelope addressed at target. The
// originator performs its own next_hop step (push target onto to_path,
// push self onto from_path) so the receiver's from_path already carries
// the originator's id, matching spec.md §4.4's worked example.
func (n *Node) newEnvelope(target ring.Id, payload relay.Payload) (*relay.Envelope, error) {
	env := &relay.Envelope{
		TxID:          n.nextTxID(),
		MessageID:     n.nextTxID(),
		Method:        relay.SEND,
		Payload:       payload,
		OriginAddress: n.id.ID(),
		TTLDeadline:   time.Now().Add(defaultTTL),
	}
	if err := env.NextHop(n.id.ID(), target); err != nil {
		return nil, err
	}
	return n.sign(env)
}

// newPathlessEnvelope builds a SEND envelope with empty to_path/
// from_path, used only for the bootstrap ConnectNode/ConnectedNode
// handshake where the peer's id is not yet known to address a normal
// routed hop.
func (n *Node) newPathlessEnvelope(payload relay.Payload) (*relay.Envelope, error) {
	env := &relay.Envelope{
		TxID:          n.nextTxID(),
		MessageID:     n.nextTxID(),
		Method:        relay.SEND,
		Payload:       payload,
		OriginAddress: n.id.ID(),
		TTLDeadline:   time.Now().Add(defaultTTL),
	}
	return n.sign(env)
}

func (n *Node) sign(env *relay.Envelope) (*relay.Envelope, error) {
	body, err := signableBody(env)
	if err != nil {
		return nil, err
	}
	sig, err := n.id.Sign(body)
	if err != nil {
		return nil, fmt.Errorf("engine: sign envelope: %w", err)
	}
	env.Signature = sig
	return env, nil
}

// verify checks an inbound envelope's signature against its claimed
// origin_address, deriving the signer's public key from the recovered
// signature (secp256k1 recoverable ECDSA, see internal/identity).
func (n *Node) verify(env *relay.Envelope) bool {
	body, err := signableBody(env)
	if err != nil {
		return false
	}
	return identity.Verify(nil, body, env.Signature, env.OriginAddress) == nil
}

// send delivers env to target, resolving target's address via the peer
// book/k-bucket table. A failure to resolve or to reach the peer is
// logged and swallowed: the caller is always a periodic loop or an
// inbound dispatch, neither of which propagates transport errors over
// the wire (spec.md §7 TransportSend).
func (n *Node) send(ctx context.Context, target ring.Id, env *relay.Envelope) {
	peer, ok := n.ensurePeer(target)
	if !ok {
		n.lgr.Warn("no known address for relay target, dropping", logger.FNode("target", target))
		return
	}
	if err := n.tr.Send(ctx, peer, env); err != nil {
		n.lgr.Warn("transport send failed", logger.FNode("target", target), logger.F("err", err.Error()))
	}
}
