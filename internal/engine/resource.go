package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chordmesh/internal/chordstate"
	"chordmesh/internal/logger"
	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
	"chordmesh/internal/store"
	"chordmesh/internal/telemetry"
)

// lookupTimeout bounds a single synchronous FindSuccessor round trip
// issued on behalf of a client operation (Lookup/Put/Get/Delete).
const lookupTimeout = 5 * time.Second

// Lookup resolves the node currently responsible for key, synchronously.
// Unlike the fix_fingers/join FindSuccessor traffic (handled
// asynchronously as REPORTs arrive, per spec.md §4.5), client-facing
// operations need the answer inline, so this registers a pending
// waiter and blocks on it.
func (n *Node) Lookup(ctx context.Context, key ring.Id) (ring.Id, error) {
	ctx, span := tracer.Start(ctx, "engine.Lookup", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.IDAttributes("chord.lookup.key", key)...)

	n.mu.Lock()
	act, err := n.chord.FindSuccessor(key)
	n.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		return ring.Id{}, fmt.Errorf("engine: lookup %s: %w", key, err)
	}
	if act.Kind == chordstate.Resolved {
		span.SetAttributes(telemetry.IDAttributes("chord.lookup.owner", act.ResolvedID)...)
		return act.ResolvedID, nil
	}

	reply, err := n.requestReply(ctx, act.Target, relay.FindSuccessor{ID: key}, lookupTimeout)
	if err != nil {
		span.RecordError(err)
		return ring.Id{}, fmt.Errorf("engine: lookup %s via %s: %w", key, act.Target, err)
	}
	fs, ok := reply.Payload.(relay.FoundSuccessor)
	if !ok {
		err := fmt.Errorf("engine: lookup %s: unexpected reply payload", key)
		span.RecordError(err)
		return ring.Id{}, err
	}
	span.SetAttributes(telemetry.IDAttributes("chord.lookup.owner", fs.Successor)...)
	return fs.Successor, nil
}

// Put stores value under key, forwarding to whichever node the ring
// currently says is responsible (grounded on the teacher's Put:
// resolve successor, store locally if it's us, else forward).
func (n *Node) Put(ctx context.Context, key ring.Id, rawKey string, value []byte) error {
	owner, err := n.Lookup(ctx, key)
	if err != nil {
		return fmt.Errorf("engine: put %s: %w", rawKey, err)
	}
	res := store.Resource{Key: key, RawKey: rawKey, Value: value, StoredAt: time.Now()}
	if owner.Equal(n.id.ID()) {
		return n.resource.Put(res)
	}
	reply, err := n.requestReply(ctx, owner, relay.StoreResource{Key: key, RawKey: rawKey, Value: value}, lookupTimeout)
	if err != nil {
		return fmt.Errorf("engine: put %s at %s: %w", rawKey, owner, err)
	}
	if sr, ok := reply.Payload.(relay.StoredResource); !ok || !sr.Accepted {
		return fmt.Errorf("engine: put %s at %s: not accepted", rawKey, owner)
	}
	return nil
}

// Get retrieves the value stored under key.
func (n *Node) Get(ctx context.Context, key ring.Id) (store.Resource, error) {
	owner, err := n.Lookup(ctx, key)
	if err != nil {
		return store.Resource{}, fmt.Errorf("engine: get: %w", err)
	}
	if owner.Equal(n.id.ID()) {
		return n.resource.Get(key)
	}
	reply, err := n.requestReply(ctx, owner, relay.RetrieveResource{Key: key}, lookupTimeout)
	if err != nil {
		return store.Resource{}, fmt.Errorf("engine: get at %s: %w", owner, err)
	}
	rr, ok := reply.Payload.(relay.RetrievedResource)
	if !ok || !rr.Found {
		return store.Resource{}, store.ErrNotFound
	}
	return store.Resource{Key: key, RawKey: rr.RawKey, Value: rr.Value}, nil
}

// Delete removes the value stored under key.
func (n *Node) Delete(ctx context.Context, key ring.Id) error {
	owner, err := n.Lookup(ctx, key)
	if err != nil {
		return fmt.Errorf("engine: delete: %w", err)
	}
	if owner.Equal(n.id.ID()) {
		return n.resource.Remove(key)
	}
	reply, err := n.requestReply(ctx, owner, relay.RemoveResource{Key: key}, lookupTimeout)
	if err != nil {
		return fmt.Errorf("engine: delete at %s: %w", owner, err)
	}
	if rr, ok := reply.Payload.(relay.RemovedResource); !ok || !rr.Found {
		return store.ErrNotFound
	}
	return nil
}

func (n *Node) handleStoreResource(ctx context.Context, env *relay.Envelope, p relay.StoreResource) {
	err := n.resource.Put(store.Resource{Key: p.Key, RawKey: p.RawKey, Value: p.Value, StoredAt: time.Now()})
	env.ToReport(relay.StoredResource{Accepted: err == nil})
	if err != nil {
		n.lgr.Warn("store_resource: local put failed", logger.FNode("key", p.Key), logger.F("err", err.Error()))
	}
	target, ok := env.ActiveTail()
	if !ok {
		return
	}
	n.send(ctx, target, env)
}

func (n *Node) handleRetrieveResource(ctx context.Context, env *relay.Envelope, p relay.RetrieveResource) {
	res, err := n.resource.Get(p.Key)
	reply := relay.RetrievedResource{Found: err == nil, RawKey: res.RawKey, Value: res.Value}
	env.ToReport(reply)
	target, ok := env.ActiveTail()
	if !ok {
		return
	}
	n.send(ctx, target, env)
}

func (n *Node) handleRemoveResource(ctx context.Context, env *relay.Envelope, p relay.RemoveResource) {
	err := n.resource.Remove(p.Key)
	env.ToReport(relay.RemovedResource{Found: err == nil})
	target, ok := env.ActiveTail()
	if !ok {
		return
	}
	n.send(ctx, target, env)
}

// resourceRepair checks every locally stored resource against the
// current predecessor interval and transfers away anything this node
// no longer owns (grounded on the teacher's resourceRepair/
// transferResourcesAsync: fast predecessor-interval check, resource
// removed locally only after the transfer is accepted).
func (n *Node) resourceRepair(ctx context.Context) {
	n.mu.Lock()
	self := n.id.ID()
	pred := n.chord.Predecessor
	n.mu.Unlock()
	if pred == nil {
		return
	}

	resources, err := n.resource.Between(*pred, self)
	if err != nil {
		n.lgr.Warn("resource_repair: scan failed", logger.F("err", err.Error()))
		return
	}
	owned := make(map[ring.Id]struct{}, len(resources))
	for _, r := range resources {
		owned[r.Key] = struct{}{}
	}
	all, err := n.resource.GetAll()
	if err != nil {
		n.lgr.Warn("resource_repair: get_all failed", logger.F("err", err.Error()))
		return
	}
	for _, r := range all {
		if _, ok := owned[r.Key]; ok {
			continue
		}
		owner, err := n.Lookup(ctx, r.Key)
		if err != nil {
			n.lgr.Warn("resource_repair: lookup failed", logger.FNode("key", r.Key), logger.F("err", err.Error()))
			continue
		}
		if owner.Equal(self) {
			continue
		}
		reply, err := n.requestReply(ctx, owner, relay.StoreResource{Key: r.Key, RawKey: r.RawKey, Value: r.Value}, lookupTimeout)
		if err != nil {
			n.lgr.Warn("resource_repair: transfer failed", logger.FNode("key", r.Key), logger.FNode("to", owner), logger.F("err", err.Error()))
			continue
		}
		if sr, ok := reply.Payload.(relay.StoredResource); ok && sr.Accepted {
			if err := n.resource.Remove(r.Key); err != nil {
				n.lgr.Warn("resource_repair: local remove after transfer failed", logger.FNode("key", r.Key), logger.F("err", err.Error()))
			} else {
				n.lgr.Info("resource_repair: transferred resource", logger.FNode("key", r.Key), logger.FNode("to", owner))
			}
		}
	}
}
