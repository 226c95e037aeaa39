package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chordmesh/internal/chordstate"
	"chordmesh/internal/logger"
	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
	"chordmesh/internal/telemetry"
)

// handleEnvelope validates an inbound relay and dispatches it by
// payload variant (spec.md §4.5). Malformed, unverifiable or expired
// envelopes are dropped with a log line; handler errors never crash
// the listener (spec.md §7).
func (n *Node) handleEnvelope(ctx context.Context, env *relay.Envelope) {
	if err := env.Validate(n.id.ID(), time.Now(), n.verify); err != nil {
		n.lgr.Warn("dropping bad envelope", logger.F("tx_id", env.TxID), logger.F("err", err.Error()))
		return
	}

	switch p := env.Payload.(type) {
	case relay.ConnectNode:
		n.handleConnectNode(ctx, env, p)
	case relay.ConnectedNode:
		n.handleTerminalOrForward(ctx, env, nil)
	case relay.AlreadyConnected:
		n.handleTerminalOrForward(ctx, env, nil)
	case relay.FindSuccessor:
		n.handleFindSuccessor(ctx, env, p)
	case relay.FoundSuccessor:
		n.handleFoundSuccessor(ctx, env, p)
	case relay.NotifyPredecessor:
		n.handleNotifyPredecessor(ctx, env, p)
	case relay.NotifiedPredecessor:
		n.handleNotifiedPredecessor(ctx, env, p)
	case relay.Ping:
		n.handlePing(ctx, env)
	case relay.Pong:
		n.handleTerminalOrForward(ctx, env, nil)
	case relay.QuerySuccessorList:
		n.handleQuerySuccessorList(ctx, env)
	case relay.SuccessorListReply:
		n.handleTerminalOrForward(ctx, env, nil)
	case relay.StoreResource:
		n.handleStoreResource(ctx, env, p)
	case relay.StoredResource:
		n.handleTerminalOrForward(ctx, env, nil)
	case relay.RetrieveResource:
		n.handleRetrieveResource(ctx, env, p)
	case relay.RetrievedResource:
		n.handleTerminalOrForward(ctx, env, nil)
	case relay.RemoveResource:
		n.handleRemoveResource(ctx, env, p)
	case relay.RemovedResource:
		n.handleTerminalOrForward(ctx, env, nil)
	default:
		n.lgr.Warn("unknown relay payload type", logger.F("tx_id", env.TxID))
	}
}

// handleTerminalOrForward implements the shared REPORT-side shape used
// by every variant that is either consumed by a registered waiter (via
// requestReply) or, for a non-final hop, forwarded onward unchanged.
// onTerminal runs only when this node is the originator and no waiter
// claimed the reply; it may be nil for purely inert acknowledgements.
func (n *Node) handleTerminalOrForward(ctx context.Context, env *relay.Envelope, onTerminal func()) {
	if env.Method != relay.REPORT {
		n.lgr.Warn("unexpected SEND for report-only payload", logger.F("tx_id", env.TxID))
		return
	}
	if _, ok := env.RemoveToPath(); !ok {
		n.lgr.Warn("report with empty to_path", logger.F("tx_id", env.TxID))
		return
	}
	env.RemoveFromPath()

	if env.ToPath.Len() > 0 {
		next, _ := env.ActiveTail()
		n.send(ctx, next, env)
		return
	}

	if n.deliverPending(env) {
		return
	}
	if onTerminal != nil {
		onTerminal()
	}
}

// handleFindSuccessor answers locally or forwards, per spec.md §4.5.
func (n *Node) handleFindSuccessor(ctx context.Context, env *relay.Envelope, p relay.FindSuccessor) {
	ctx, span := tracer.Start(ctx, "engine.handleFindSuccessor", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(telemetry.IDAttributes("chord.query.id", p.ID)...)
	span.SetAttributes(attribute.Bool("chord.for_fix", p.ForFix))

	n.mu.Lock()
	act, err := n.chord.FindSuccessor(p.ID)
	n.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		n.lgr.Warn("find_successor: routing exhausted", logger.FNode("query", p.ID))
		return
	}

	switch act.Kind {
	case chordstate.Resolved:
		reply := relay.FoundSuccessor{Successor: act.ResolvedID, ForFix: p.ForFix, FixIndex: p.FixIndex}
		env.ToReport(reply)
		target, ok := env.ActiveTail()
		if !ok {
			n.lgr.Warn("find_successor: empty return path for resolved reply", logger.F("tx_id", env.TxID))
			return
		}
		n.send(ctx, target, env)
	case chordstate.Remote:
		next := act.Target
		if err := env.NextHop(n.id.ID(), next); err != nil {
			n.lgr.Warn("find_successor: bad forward hop", logger.F("err", err.Error()))
			return
		}
		n.send(ctx, next, env)
	default:
		n.lgr.Warn("find_successor: unexpected action kind", logger.F("tx_id", env.TxID))
	}
}

// handleFoundSuccessor implements spec.md §4.5's REPORT-side steps: pop
// our own hop, forward onward if the return path isn't exhausted, or
// apply the result locally as the originator.
func (n *Node) handleFoundSuccessor(ctx context.Context, env *relay.Envelope, p relay.FoundSuccessor) {
	n.handleTerminalOrForward(ctx, env, func() {
		n.mu.Lock()
		if p.ForFix {
			s := p.Successor
			n.chord.Finger[p.FixIndex] = &s
		} else {
			n.chord.Successor = p.Successor
		}
		n.mu.Unlock()
		n.lgr.Debug("find_successor resolved",
			logger.FNode("successor", p.Successor), logger.F("for_fix", p.ForFix), logger.F("fix_index", p.FixIndex))
	})
}

// handleNotifyPredecessor runs chord.Notify and replies with the
// resulting predecessor.
func (n *Node) handleNotifyPredecessor(ctx context.Context, env *relay.Envelope, p relay.NotifyPredecessor) {
	n.mu.Lock()
	n.chord.Notify(p.Predecessor)
	pred := n.chord.Predecessor
	n.mu.Unlock()

	result := p.Predecessor
	if pred != nil {
		result = *pred
	}
	env.ToReport(relay.NotifiedPredecessor{Predecessor: result})
	target, ok := env.ActiveTail()
	if !ok {
		n.lgr.Warn("notify_predecessor: empty return path", logger.F("tx_id", env.TxID))
		return
	}
	n.send(ctx, target, env)
}

// handleNotifiedPredecessor, as the originator, adopts the reported
// predecessor as successor (spec.md §4.5, literal).
func (n *Node) handleNotifiedPredecessor(ctx context.Context, env *relay.Envelope, p relay.NotifiedPredecessor) {
	n.handleTerminalOrForward(ctx, env, func() {
		n.mu.Lock()
		n.chord.Successor = p.Predecessor
		n.mu.Unlock()
	})
}

// handleConnectNode answers a direct (possibly path-less, bootstrap)
// handshake request and registers the requester's address.
func (n *Node) handleConnectNode(ctx context.Context, env *relay.Envelope, p relay.ConnectNode) {
	n.peers.set(p.ID, transportPeer(p.ID, p.HandshakeInfo))
	n.mu.Lock()
	n.rt.UpdateContact(kbucketContact(p.ID, p.HandshakeInfo))
	n.mu.Unlock()

	reply := relay.ConnectedNode{HandshakeInfo: n.rt.Owner.SessionDescriptor}
	if env.ToPath.Len() == 0 {
		n.replyBootstrap(ctx, p.ID, p.HandshakeInfo, reply)
		return
	}
	env.ToReport(reply)
	target, ok := env.ActiveTail()
	if !ok {
		return
	}
	n.send(ctx, target, env)
}

// handlePing answers a liveness check.
func (n *Node) handlePing(ctx context.Context, env *relay.Envelope) {
	env.ToReport(relay.Pong{})
	target, ok := env.ActiveTail()
	if !ok {
		return
	}
	n.send(ctx, target, env)
}

// handleQuerySuccessorList answers with this node's own successor-list
// snapshot (SPEC_FULL.md successor-list supplement).
func (n *Node) handleQuerySuccessorList(ctx context.Context, env *relay.Envelope) {
	n.mu.Lock()
	snap := n.succs.snapshot(n.id.ID())
	n.mu.Unlock()
	env.ToReport(relay.SuccessorListReply{Successors: snap})
	target, ok := env.ActiveTail()
	if !ok {
		return
	}
	n.send(ctx, target, env)
}

func (n *Node) replyBootstrap(ctx context.Context, remoteID ring.Id, remoteAddr string, reply relay.ConnectedNode) {
	env, err := n.newPathlessEnvelope(reply)
	if err != nil {
		n.lgr.Warn("bootstrap reply: sign failed", logger.F("err", err.Error()))
		return
	}
	if err := n.tr.Send(ctx, transportPeer(remoteID, remoteAddr), env); err != nil {
		n.lgr.Warn("bootstrap reply: send failed", logger.FNode("target", remoteID), logger.F("err", err.Error()))
	}
}
