package store

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"chordmesh/internal/ring"
)

// Both backends must satisfy the exact same Store contract, so every
// test here runs against each constructor in turn.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "resources.db"), 0)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]Store{
		"mem":  NewMem(0),
		"bolt": bolt,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := ring.FromString("key-a")
			res := Resource{Key: key, RawKey: "key-a", Value: []byte("hello")}
			if err := s.Put(res); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := s.Get(key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got.Value) != "hello" || got.RawKey != "key-a" {
				t.Errorf("Get = %+v, want value=hello rawKey=key-a", got)
			}
			if got.StoredAt.IsZero() {
				t.Errorf("Put must stamp StoredAt when left zero")
			}
		})
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ring.FromString("absent"))
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(absent) = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := ring.FromString("removable")
			if err := s.Put(Resource{Key: key, RawKey: "removable", Value: []byte("v")}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Remove(key); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after Remove = %v, want ErrNotFound", err)
			}
			if err := s.Remove(key); !errors.Is(err, ErrNotFound) {
				t.Errorf("Remove twice = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestGetAllAndCount(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			keys := []string{"one", "two", "three"}
			for _, k := range keys {
				if err := s.Put(Resource{Key: ring.FromString(k), RawKey: k, Value: []byte(k)}); err != nil {
					t.Fatalf("Put(%s): %v", k, err)
				}
			}
			count, err := s.Count()
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if count != len(keys) {
				t.Errorf("Count = %d, want %d", count, len(keys))
			}
			all, err := s.GetAll()
			if err != nil {
				t.Fatalf("GetAll: %v", err)
			}
			if len(all) != len(keys) {
				t.Errorf("GetAll returned %d resources, want %d", len(all), len(keys))
			}
		})
	}
}

func TestBetweenRespectsOpenArcInclusiveRight(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := []ring.Id{ring.FromString("alpha"), ring.FromString("beta"), ring.FromString("gamma")}
			sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
			lo, mid, hi := ids[0], ids[1], ids[2]

			for i, id := range []ring.Id{lo, mid, hi} {
				raw := []string{"lo", "mid", "hi"}[i]
				if err := s.Put(Resource{Key: id, RawKey: raw, Value: []byte(raw)}); err != nil {
					t.Fatalf("Put: %v", err)
				}
			}

			got, err := s.Between(lo, hi)
			if err != nil {
				t.Fatalf("Between: %v", err)
			}
			foundMid, foundHi, foundLo := false, false, false
			for _, r := range got {
				switch r.Key {
				case mid:
					foundMid = true
				case hi:
					foundHi = true
				case lo:
					foundLo = true
				}
			}
			if !foundMid {
				t.Errorf("Between(lo,hi) must include mid (open arc)")
			}
			if !foundHi {
				t.Errorf("Between(lo,hi) must include hi (inclusive right bound)")
			}
			if foundLo {
				t.Errorf("Between(lo,hi) must not include lo (open left bound)")
			}
		})
	}
}

func TestClear(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(Resource{Key: ring.FromString("x"), RawKey: "x", Value: []byte("y")}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Clear(); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			count, err := s.Count()
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if count != 0 {
				t.Errorf("Count after Clear = %d, want 0", count)
			}
		})
	}
}

func TestTotalSizeReflectsValues(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			before, err := s.TotalSize()
			if err != nil {
				t.Fatalf("TotalSize: %v", err)
			}
			if err := s.Put(Resource{Key: ring.FromString("sized"), RawKey: "sized", Value: make([]byte, 64)}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			after, err := s.TotalSize()
			if err != nil {
				t.Fatalf("TotalSize: %v", err)
			}
			if after < before {
				t.Errorf("TotalSize decreased after Put: before=%d after=%d", before, after)
			}
		})
	}
}

func TestPruneRemovesOnlyStaleEntries(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			stale := Resource{Key: ring.FromString("stale"), RawKey: "stale", Value: []byte("v"), StoredAt: time.Now().Add(-time.Hour)}
			fresh := Resource{Key: ring.FromString("fresh"), RawKey: "fresh", Value: []byte("v"), StoredAt: time.Now()}
			if err := s.Put(stale); err != nil {
				t.Fatalf("Put(stale): %v", err)
			}
			if err := s.Put(fresh); err != nil {
				t.Fatalf("Put(fresh): %v", err)
			}

			removed, err := s.Prune(time.Minute)
			if err != nil {
				t.Fatalf("Prune: %v", err)
			}
			if removed != 1 {
				t.Errorf("Prune removed %d, want 1", removed)
			}
			if _, err := s.Get(stale.Key); !errors.Is(err, ErrNotFound) {
				t.Errorf("stale resource must be gone after Prune")
			}
			if _, err := s.Get(fresh.Key); err != nil {
				t.Errorf("fresh resource must survive Prune: %v", err)
			}
		})
	}
}

func TestMaxSize(t *testing.T) {
	s := NewMem(4096)
	if s.MaxSize() != 4096 {
		t.Errorf("MaxSize() = %d, want 4096", s.MaxSize())
	}
}
