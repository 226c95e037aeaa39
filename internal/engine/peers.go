package engine

import (
	"sync"

	"chordmesh/internal/kbucket"
	"chordmesh/internal/ring"
	"chordmesh/internal/transport"
)

func transportPeer(id ring.Id, sessionDescriptor string) transport.Peer {
	return transport.Peer{ID: id, SessionDescriptor: sessionDescriptor}
}

func kbucketContact(id ring.Id, sessionDescriptor string) kbucket.Contact {
	return kbucket.Contact{ID: id, SessionDescriptor: sessionDescriptor}
}

// peerBook tracks the session descriptor known for each ring id this
// node has directly handshaken with. spec.md treats session descriptor
// distribution as an external-collaborator concern (§6); this is the
// engine's bookkeeping of what it has actually learned so far, kept
// separate from kbucket.KTable because not every peer we learn an id
// for belongs in the routing table (e.g. a client-originated lookup).
type peerBook struct {
	mu    sync.RWMutex
	addrs map[ring.Id]transport.Peer
}

func newPeerBook() *peerBook {
	return &peerBook{addrs: make(map[ring.Id]transport.Peer)}
}

func (b *peerBook) set(id ring.Id, p transport.Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addrs[id] = p
}

func (b *peerBook) get(id ring.Id) (transport.Peer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.addrs[id]
	return p, ok
}

// ensurePeer resolves id to a dialable Peer, consulting the peer book
// first and falling back to the k-bucket table (which also carries
// session descriptors for routing-table members). It does not attempt
// any network discovery: if neither source has an address, the caller
// treats id as currently unreachable and skips this hop, matching
// spec.md §7's "log and let the next periodic tick retry" handling of
// TransportSend failures.
func (n *Node) ensurePeer(id ring.Id) (transport.Peer, bool) {
	if p, ok := n.peers.get(id); ok {
		return p, true
	}
	n.mu.Lock()
	closest := n.rt.Closest(id, 1)
	n.mu.Unlock()
	if len(closest) == 1 && closest[0].ID.Equal(id) && closest[0].SessionDescriptor != "" {
		p := transport.Peer{ID: id, SessionDescriptor: closest[0].SessionDescriptor}
		n.peers.set(id, p)
		return p, true
	}
	return transport.Peer{}, false
}
