// Package engine is the message state machine (C5): it owns a node's
// Chord state, k-bucket table and resource store behind a single mutex,
// dispatches inbound relay envelopes to the pure C2 decision functions,
// and turns the Action each one returns into outbound sends over the
// transport boundary. The lock is always released before any I/O the
// returned Action implies (spec.md §5).
package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"chordmesh/internal/chordstate"
	"chordmesh/internal/config"
	"chordmesh/internal/identity"
	"chordmesh/internal/kbucket"
	"chordmesh/internal/logger"
	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
	"chordmesh/internal/store"
	"chordmesh/internal/transport"
)

// Node ties the ring state machine to a transport and a resource store.
// All exported methods are safe for concurrent use.
type Node struct {
	id       *identity.Identity
	cfg      *config.Config
	lgr      logger.Logger
	tr       transport.Transport
	resource store.Store

	mu      sync.Mutex
	chord   *chordstate.State
	rt      *kbucket.KTable
	succs   *successorList
	stopped bool

	peers *peerBook

	pendingMu sync.Mutex
	pending   map[string]chan *relay.Envelope

	txCounter uint64
}

// New builds a Node that is its own single-member ring; callers join it
// to an existing ring with Bootstrap. The node's own session descriptor is
// not yet known at construction time (the listener may not be bound
// yet); set it with SetSelfDescriptor before advertising this node to
// any peer.
func New(id *identity.Identity, cfg *config.Config, lgr logger.Logger, tr transport.Transport, resource store.Store) *Node {
	self := id.ID()
	n := &Node{
		id:       id,
		cfg:      cfg,
		lgr:      lgr.Named("engine"),
		tr:       tr,
		resource: resource,
		chord:    chordstate.New(self),
		rt:       kbucket.New(kbucket.Contact{ID: self}),
		succs:    newSuccessorList(cfg.Ring.SuccessorListSize),
		peers:    newPeerBook(),
		pending:  make(map[string]chan *relay.Envelope),
	}
	return n
}

// SetSelfDescriptor overrides the session descriptor advertised for this
// node's own k-bucket entry once the listen address is known (the
// constructor runs before the listener is bound).
func (n *Node) SetSelfDescriptor(descriptor string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rt.Owner.SessionDescriptor = descriptor
	n.peers.set(n.id.ID(), transport.Peer{ID: n.id.ID(), SessionDescriptor: descriptor})
}

// ID returns this node's ring identifier.
func (n *Node) ID() ring.Id { return n.id.ID() }

// Run drains the transport's inbound envelope channel and dispatches
// each one until ctx is canceled or the transport closes the channel.
func (n *Node) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-n.tr.Messages():
			if !ok {
				return
			}
			n.handleEnvelope(ctx, env)
		}
	}
}

// Close stops accepting new work and releases the transport.
func (n *Node) Close() error {
	n.mu.Lock()
	n.stopped = true
	n.mu.Unlock()
	return n.tr.Close()
}

func (n *Node) nextTxID() string {
	n.pendingMu.Lock()
	n.txCounter++
	id := n.txCounter
	n.pendingMu.Unlock()
	return n.id.ID().Hex() + "-" + strconv.FormatUint(id, 10)
}

// defaultTTL bounds how long a relay envelope may live in flight.
const defaultTTL = 10 * time.Second
