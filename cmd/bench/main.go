// Command bench runs an in-process multi-node ring over an in-memory
// transport and drives a synthetic put/get/delete workload against it,
// replacing the teacher's docker-based cmd/tester load harness (no
// SPEC_FULL.md component needs container orchestration; see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"chordmesh/internal/config"
	"chordmesh/internal/engine"
	"chordmesh/internal/identity"
	"chordmesh/internal/logger"
	"chordmesh/internal/ring"
	"chordmesh/internal/store"
	"chordmesh/internal/transport"
)

func main() {
	numNodes := flag.Int("nodes", 10, "number of ring nodes to simulate")
	numOps := flag.Int("ops", 200, "number of put/get/delete operations to run")
	settle := flag.Duration("settle", 3*time.Second, "time to let the ring stabilize before load")
	flag.Parse()

	log.SetFlags(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net := transport.NewFakeNetwork()
	nodes := make([]*engine.Node, 0, *numNodes)
	var first string

	for i := 0; i < *numNodes; i++ {
		id, err := identity.Generate()
		if err != nil {
			log.Fatalf("bench: generate identity: %v", err)
		}
		descriptor := fmt.Sprintf("bench-node-%d", i)
		tr := net.NewTransport(descriptor, id)
		cfg := benchConfig()
		n := engine.New(id, cfg, &logger.NopLogger{}, tr, store.NewMem(0))
		n.SetSelfDescriptor(descriptor)

		go n.Run(ctx)
		n.StartMaintenance(ctx)

		if i == 0 {
			first = descriptor
		} else {
			joinCtx, joinCancel := context.WithTimeout(ctx, 2*time.Second)
			if _, err := n.Bootstrap(joinCtx, first); err != nil {
				log.Printf("bench: node %d failed to join: %v", i, err)
			}
			joinCancel()
		}
		nodes = append(nodes, n)
	}

	log.Printf("ring of %d nodes started, settling for %s", *numNodes, *settle)
	time.Sleep(*settle)

	runWorkload(ctx, nodes, *numOps)
}

func benchConfig() *config.Config {
	return &config.Config{
		Ring: config.RingConfig{
			SuccessorListSize:        4,
			StabilizeInterval:        150 * time.Millisecond,
			FixFingersInterval:       200 * time.Millisecond,
			CheckPredecessorInterval: 400 * time.Millisecond,
		},
		KBucket: config.KBucketConfig{
			RefreshInterval: time.Hour,
		},
		Storage: config.StorageConfig{
			MaxSizeBytes:  0,
			PruneInterval: time.Hour,
		},
	}
}

type opResult struct {
	kind    string
	latency time.Duration
	err     error
}

// runWorkload issues numOps put/get/delete calls from random nodes
// against random keys and reports latency + error-rate summaries per
// operation kind.
func runWorkload(ctx context.Context, nodes []*engine.Node, numOps int) {
	results := make(chan opResult, numOps)
	var wg sync.WaitGroup

	keys := make([]ring.Id, numOps)
	for i := range keys {
		keys[i] = ring.FromString(fmt.Sprintf("bench-key-%d", i))
	}

	for i := 0; i < numOps; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := nodes[rand.Intn(len(nodes))]
			key := keys[i]
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			start := time.Now()
			err := n.Put(opCtx, key, fmt.Sprintf("bench-key-%d", i), []byte("value"))
			results <- opResult{kind: "put", latency: time.Since(start), err: err}

			start = time.Now()
			_, err = n.Get(opCtx, key)
			results <- opResult{kind: "get", latency: time.Since(start), err: err}

			start = time.Now()
			err = n.Delete(opCtx, key)
			results <- opResult{kind: "delete", latency: time.Since(start), err: err}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := map[string]*struct {
		count, errs int
		total       time.Duration
	}{}
	for r := range results {
		s, ok := summary[r.kind]
		if !ok {
			s = &struct {
				count, errs int
				total       time.Duration
			}{}
			summary[r.kind] = s
		}
		s.count++
		s.total += r.latency
		if r.err != nil {
			s.errs++
		}
	}

	for kind, s := range summary {
		avg := time.Duration(0)
		if s.count > 0 {
			avg = s.total / time.Duration(s.count)
		}
		log.Printf("%s: count=%d errors=%d avg_latency=%s", kind, s.count, s.errs, avg)
	}
}
