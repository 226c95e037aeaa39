package bootstrap

import (
	"context"

	"chordmesh/internal/ring"
)

// Bootstrap discovers candidate peer addresses to join the ring through,
// and optionally publishes/retracts this node's own address in an
// external directory (only Route53 mode needs Register/Deregister;
// static and dns modes treat them as no-ops).
type Bootstrap interface {
	// Discover returns a list of known peer "host:port" addresses.
	Discover(ctx context.Context) ([]string, error)
	// Register advertises this node under id at addr (only if needed, e.g. Route53).
	Register(ctx context.Context, id ring.Id, addr string) error
	// Deregister removes the advertisement for id (only if needed, e.g. Route53).
	Deregister(ctx context.Context, id ring.Id, addr string) error
}
