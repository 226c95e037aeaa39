// Package transport defines the abstract peer-transport boundary (C6)
// consumed by the message state machine: send an envelope to a peer,
// receive a single-consumer sequence of decoded inbound envelopes
// (signature checks are left to the consumer), and
// expose the signing capability used to build outgoing envelopes.
package transport

import (
	"context"
	"errors"

	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
)

// ErrSend wraps any failure to reach a peer (TransportSend, spec.md §7):
// the caller logs it and lets the next periodic tick retry.
var ErrSend = errors.New("transport: send failed")

// Signer is the signing capability passed into C5, owned by the
// transport layer and never held globally.
type Signer interface {
	Sign(body []byte) ([]byte, error)
	SelfID() ring.Id
}

// Peer identifies a remote node: its ring id plus the opaque session
// descriptor (handshake blob / dial address) the k-bucket table stores.
type Peer struct {
	ID                ring.Id
	SessionDescriptor string
}

// Transport is the abstract capability consumed by C5 and provided by a
// concrete adapter (see ws.go for the production one, fake.go for
// tests).
type Transport interface {
	// Send delivers env to peer. Errors are always ErrSend-wrapped.
	Send(ctx context.Context, peer Peer, env *relay.Envelope) error
	// Messages returns the single-consumer channel of verified inbound
	// envelopes. It is closed on shutdown.
	Messages() <-chan *relay.Envelope
	// SelfKey returns the signing capability used when building
	// envelopes.
	SelfKey() Signer
	// Close releases transport resources.
	Close() error
}
