package transport

import (
	"context"
	"fmt"
	"sync"

	"chordmesh/internal/relay"
)

// FakeNetwork is an in-process stand-in for the WebSocket transport,
// used by internal/engine's convergence tests and cmd/bench's
// multi-node harness. Every envelope still round-trips through the real
// gob codec (Encode/Decode), so a bug in the wire format shows up here
// too, not just against a live WebSocketTransport.
type FakeNetwork struct {
	mu    sync.Mutex
	nodes map[string]*FakeTransport
}

func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{nodes: make(map[string]*FakeTransport)}
}

// NewTransport registers a transport at sessionDescriptor on this
// network and returns it.
func (fn *FakeNetwork) NewTransport(sessionDescriptor string, signer Signer) *FakeTransport {
	t := &FakeTransport{
		net:     fn,
		self:    sessionDescriptor,
		signer:  signer,
		inbound: make(chan *relay.Envelope, 256),
		closed:  make(chan struct{}),
	}
	fn.mu.Lock()
	fn.nodes[sessionDescriptor] = t
	fn.mu.Unlock()
	return t
}

func (fn *FakeNetwork) lookup(sessionDescriptor string) (*FakeTransport, bool) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	t, ok := fn.nodes[sessionDescriptor]
	return t, ok
}

func (fn *FakeNetwork) remove(sessionDescriptor string) {
	fn.mu.Lock()
	delete(fn.nodes, sessionDescriptor)
	fn.mu.Unlock()
}

// FakeTransport implements Transport against a FakeNetwork.
type FakeTransport struct {
	net    *FakeNetwork
	self   string
	signer Signer

	inbound chan *relay.Envelope
	closed  chan struct{}
}

func (t *FakeTransport) Send(ctx context.Context, peer Peer, env *relay.Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrSend, err)
	}
	dest, ok := t.net.lookup(peer.SessionDescriptor)
	if !ok {
		return fmt.Errorf("%w: no peer at %s", ErrSend, peer.SessionDescriptor)
	}
	decoded, err := Decode(data)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSend, err)
	}
	select {
	case dest.inbound <- decoded:
		return nil
	case <-dest.closed:
		return fmt.Errorf("%w: peer %s closed", ErrSend, peer.SessionDescriptor)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *FakeTransport) Messages() <-chan *relay.Envelope { return t.inbound }

func (t *FakeTransport) SelfKey() Signer { return t.signer }

func (t *FakeTransport) Close() error {
	t.net.remove(t.self)
	close(t.closed)
	return nil
}
