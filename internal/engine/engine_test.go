package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"chordmesh/internal/config"
	"chordmesh/internal/identity"
	"chordmesh/internal/logger"
	"chordmesh/internal/ring"
	"chordmesh/internal/store"
	"chordmesh/internal/transport"
)

// These tests use no literal id fixtures: every node's id is derived
// from a freshly generated identity, so its ring position is not
// controlled. Instead each test builds a small ring and asserts that
// Lookup/Put/Get agree across every member.

func testConfig() *config.Config {
	return &config.Config{
		Ring: config.RingConfig{
			SuccessorListSize:        4,
			StabilizeInterval:        20 * time.Millisecond,
			FixFingersInterval:       25 * time.Millisecond,
			CheckPredecessorInterval: 50 * time.Millisecond,
		},
		KBucket: config.KBucketConfig{
			RefreshInterval: time.Hour,
		},
		Storage: config.StorageConfig{
			MaxSizeBytes: 0,
			// Short enough that resourceRepair (run at the front of every
			// prune tick) gets several chances to transfer ownership
			// within a test's settle() window.
			PruneInterval: 50 * time.Millisecond,
		},
	}
}

// testRing builds n nodes over a shared FakeNetwork, has each one after
// the first bootstrap off node 0, and returns them (plus the network,
// so a test can add further late-joining nodes) once bootstrapping has
// been attempted for every member.
func testRing(t *testing.T, n int) ([]*Node, *transport.FakeNetwork) {
	t.Helper()
	net := transport.NewFakeNetwork()
	nodes := joinNodes(t, net, n, 0)
	return nodes, net
}

// joinNodes adds n more nodes to net, named starting at startIndex,
// bootstrapping every node after the very first one ever added off
// that first node, node-0.
func joinNodes(t *testing.T, net *transport.FakeNetwork, n, startIndex int) []*Node {
	t.Helper()
	nodes := make([]*Node, 0, n)
	var first string

	for i := 0; i < n; i++ {
		id, err := identity.Generate()
		if err != nil {
			t.Fatalf("identity.Generate: %v", err)
		}
		descriptor := fmt.Sprintf("node-%d", startIndex+i)
		tr := net.NewTransport(descriptor, id)
		node := New(id, testConfig(), &logger.NopLogger{}, tr, store.NewMem(0))
		node.SetSelfDescriptor(descriptor)

		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go node.Run(ctx)
		node.StartMaintenance(ctx)

		if i == 0 && startIndex == 0 {
			first = descriptor
		} else {
			if first == "" {
				first = "node-0"
			}
			joinCtx, joinCancel := context.WithTimeout(ctx, 2*time.Second)
			if _, err := node.Bootstrap(joinCtx, first); err != nil {
				joinCancel()
				t.Fatalf("node %d bootstrap: %v", startIndex+i, err)
			}
			joinCancel()
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// settle gives the maintenance loops enough ticks to converge the ring.
func settle() { time.Sleep(400 * time.Millisecond) }

func TestSingleNodeIsItsOwnSuccessor(t *testing.T) {
	nodes, _ := testRing(t, 1)
	n := nodes[0]
	owner, err := n.Lookup(context.Background(), ring.FromString("anything"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !owner.Equal(n.ID()) {
		t.Errorf("single-node lookup owner = %s, want self %s", owner, n.ID())
	}
}

func TestTwoNodeRingConvergesOnLookup(t *testing.T) {
	nodes, _ := testRing(t, 2)
	settle()

	key := ring.FromString("shared-key")
	owners := make(map[ring.Id]int)
	for _, n := range nodes {
		owner, err := n.Lookup(context.Background(), key)
		if err != nil {
			t.Fatalf("Lookup from %s: %v", n.ID(), err)
		}
		owners[owner]++
	}
	if len(owners) != 1 {
		t.Errorf("ring disagrees on owner of %s: %v", key, owners)
	}
}

func TestPutGetAcrossRing(t *testing.T) {
	nodes, _ := testRing(t, 3)
	settle()

	key := ring.FromString("stored-value")
	writer := nodes[0]
	if err := writer.Put(context.Background(), key, "stored-value", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	for _, n := range nodes {
		res, err := n.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("Get from %s: %v", n.ID(), err)
		}
		if string(res.Value) != "payload" {
			t.Errorf("Get from %s = %q, want payload", n.ID(), res.Value)
		}
	}
}

func TestDeleteRemovesAcrossRing(t *testing.T) {
	nodes, _ := testRing(t, 3)
	settle()

	key := ring.FromString("deletable")
	if err := nodes[0].Put(context.Background(), key, "deletable", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := nodes[1].Delete(context.Background(), key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, n := range nodes {
		if _, err := n.Get(context.Background(), key); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get after Delete from %s = %v, want ErrNotFound", n.ID(), err)
		}
	}
}

func TestRingConvergesAfterNodeJoinsLate(t *testing.T) {
	nodes, net := testRing(t, 2)
	settle()

	key := ring.FromString("pre-existing")
	if err := nodes[0].Put(context.Background(), key, "pre-existing", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	late := joinNodes(t, net, 1, len(nodes))[0]
	settle()

	res, err := late.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get from late joiner: %v", err)
	}
	if string(res.Value) != "v1" {
		t.Errorf("Get from late joiner = %q, want v1", res.Value)
	}
}
