package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chordmesh/internal/config"
	"chordmesh/internal/engine"
	"chordmesh/internal/identity"
	"chordmesh/internal/logger"
	"chordmesh/internal/store"
	"chordmesh/internal/transport"
)

// testNode builds a single-member ring node (its own successor), which
// is enough to exercise the HTTP handlers without standing up a
// multi-node convergence scenario.
func testNode(t *testing.T) *engine.Node {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	net := transport.NewFakeNetwork()
	tr := net.NewTransport("node-under-test", id)
	cfg := &config.Config{
		Ring: config.RingConfig{
			SuccessorListSize:        4,
			StabilizeInterval:        time.Hour,
			FixFingersInterval:       time.Hour,
			CheckPredecessorInterval: time.Hour,
		},
		KBucket: config.KBucketConfig{RefreshInterval: time.Hour},
		Storage: config.StorageConfig{MaxSizeBytes: 0, PruneInterval: time.Hour},
	}
	n := engine.New(id, cfg, &logger.NopLogger{}, tr, store.NewMem(0))
	n.SetSelfDescriptor("node-under-test")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go n.Run(ctx)
	return n
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New("127.0.0.1:0", testNode(t), &logger.NopLogger{})
	ts := httptest.NewServer(s.http.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHandlePeers(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/peers")
	if err != nil {
		t.Fatalf("GET /v1/peers: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body peersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Self.ID == "" {
		t.Errorf("expected a non-empty self id")
	}
}

func TestPutGetDeleteResource(t *testing.T) {
	ts := newTestServer(t)
	client := NewClient(ts.URL)
	ctx := context.Background()

	if err := client.Put(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := client.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "hello" {
		t.Errorf("Get = %q, want hello", got)
	}

	if err := client.Delete(ctx, "greeting"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := client.Get(ctx, "greeting"); err == nil {
		t.Errorf("expected error fetching a deleted key")
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	ts := newTestServer(t)
	client := NewClient(ts.URL)
	_, err := client.Get(context.Background(), "never-stored")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestLookupReturnsSelfOnSingleNodeRing(t *testing.T) {
	ts := newTestServer(t)
	client := NewClient(ts.URL)
	owner, err := client.Lookup(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if owner == "" {
		t.Errorf("expected a non-empty owner id")
	}
}
