package engine

import (
	"context"
	"time"

	"chordmesh/internal/chordstate"
	"chordmesh/internal/logger"
	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
)

// StartMaintenance launches the periodic maintenance loops (stabilize,
// fix_fingers, check_predecessor, successor-list refresh, resource
// repair), one ticker goroutine per concern, grounded on the teacher's
// StartStabilizers. Every loop stops when ctx is canceled; overlapping
// ticks within a single loop are not permitted (spec.md §5) since each
// iteration runs to completion before the ticker can fire again inside
// the same goroutine.
func (n *Node) StartMaintenance(ctx context.Context) {
	go n.loop(ctx, n.cfg.Ring.StabilizeInterval, n.stabilizeTick)
	go n.loop(ctx, n.cfg.Ring.FixFingersInterval, n.fixFingersTick)
	go n.loop(ctx, n.cfg.Ring.CheckPredecessorInterval, n.checkPredecessorTick)
	go n.loop(ctx, n.cfg.Ring.StabilizeInterval, n.successorListTick)
	go n.loop(ctx, n.cfg.Storage.PruneInterval, n.pruneTick)
}

func (n *Node) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// stabilizeTick implements spec.md §4.5's periodic stabilize step via
// the C2 decision function: chordstate.Stabilize already encodes the
// predecessor-in-arc check, so this only needs to act on its Action.
func (n *Node) stabilizeTick(ctx context.Context) {
	n.mu.Lock()
	act := n.chord.Stabilize()
	n.mu.Unlock()
	if act.Kind != chordstate.Remote {
		return
	}
	env, err := n.newEnvelope(act.Target, relay.NotifyPredecessor{Predecessor: act.Remote.FromID})
	if err != nil {
		n.lgr.Warn("stabilize: build notify failed", logger.F("err", err.Error()))
		return
	}
	n.send(ctx, act.Target, env)
}

func (n *Node) fixFingersTick(ctx context.Context) {
	n.mu.Lock()
	act, err := n.chord.FixFingers()
	n.mu.Unlock()
	if err != nil {
		n.lgr.Warn("fix_fingers: routing exhausted")
		return
	}
	if act.Kind != chordstate.Remote {
		return
	}
	payload := relay.FindSuccessor{ID: act.Remote.QueryID, ForFix: true, FixIndex: act.Remote.FixIndex}
	env, err := n.newEnvelope(act.Target, payload)
	if err != nil {
		n.lgr.Warn("fix_fingers: build find_successor failed", logger.F("err", err.Error()))
		return
	}
	n.send(ctx, act.Target, env)
}

func (n *Node) checkPredecessorTick(ctx context.Context) {
	n.mu.Lock()
	act := n.chord.CheckPredecessor()
	n.mu.Unlock()
	if act.Kind != chordstate.Remote {
		return
	}
	target := act.Target
	_, err := n.requestReply(ctx, target, relay.Ping{}, lookupTimeout)
	if err == nil {
		return
	}
	n.lgr.Warn("check_predecessor: peer unreachable, clearing predecessor", logger.FNode("predecessor", target))
	n.mu.Lock()
	if n.chord.Predecessor != nil && n.chord.Predecessor.Equal(target) {
		n.chord.Predecessor = nil
	}
	n.mu.Unlock()
}

// successorListTick refreshes the successor-list fault-tolerance
// supplement by asking the primary successor for its own list, and
// fails over to the next live entry if the primary no longer answers.
func (n *Node) successorListTick(ctx context.Context) {
	n.mu.Lock()
	self := n.id.ID()
	succ := n.chord.Successor
	n.mu.Unlock()
	if succ.Equal(self) {
		return
	}

	reply, err := n.requestReply(ctx, succ, relay.QuerySuccessorList{}, lookupTimeout)
	if err != nil {
		n.failoverSuccessor(succ)
		return
	}
	sl, ok := reply.Payload.(relay.SuccessorListReply)
	if !ok {
		return
	}
	var rest []ring.Id
	for _, id := range sl.Successors {
		if !id.Equal(succ) {
			rest = append(rest, id)
		}
	}
	n.mu.Lock()
	n.succs.replace(rest)
	n.mu.Unlock()
}

// failoverSuccessor promotes the next live entry of the successor list
// to primary successor when the current one stops answering
// (SPEC_FULL.md successor-list supplement; the chordstate invariant
// that successor must be "a known live node" is otherwise only
// reasserted by the next stabilize/notify round trip, which can take
// several ticks after a failure).
func (n *Node) failoverSuccessor(dead ring.Id) {
	n.mu.Lock()
	defer n.mu.Unlock()
	self := n.id.ID()
	next, ok := n.succs.next(self, dead)
	if !ok {
		n.lgr.Warn("successor_list: no fallback available", logger.FNode("dead", dead))
		n.chord.Successor = self
		return
	}
	n.lgr.Warn("successor_list: failing over", logger.FNode("dead", dead), logger.FNode("next", next))
	n.chord.Successor = next
}

func (n *Node) pruneTick(ctx context.Context) {
	n.resourceRepair(ctx)
	removed, err := n.resource.Prune(keyExpiration)
	if err != nil {
		n.lgr.Warn("prune: failed", logger.F("err", err.Error()))
		return
	}
	if removed > 0 {
		n.lgr.Info("prune: removed expired resources", logger.F("count", removed))
	}
}

// keyExpiration is spec.md §6's KEY_EXPIRATION constant.
const keyExpiration = 3600 * time.Second
