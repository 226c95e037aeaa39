// Package store implements the persistent key/value resource store
// consumed (not specified) by spec.md §6: async get/put/remove/get_all/
// count/clear/max_size/total_size/prune over an embedded B-tree engine.
// The ring itself stays memory-resident (chordstate, kbucket); this
// package only checkpoints the resources a node owns (SPEC_FULL.md
// "Resource storage with ownership transfer").
package store

import (
	"errors"
	"time"

	"chordmesh/internal/ring"
)

// ErrNotFound is returned by Get/Remove when the key is absent.
var ErrNotFound = errors.New("store: resource not found")

// Resource is a key/value pair owned by whichever node is currently
// responsible for Key on the ring.
type Resource struct {
	Key      ring.Id
	RawKey   string
	Value    []byte
	StoredAt time.Time
}

// Store is the persistence boundary the engine package checkpoints
// owned resources through. Implementations: BoltStore (production,
// go.etcd.io/bbolt) and MemStore (tests).
type Store interface {
	Get(key ring.Id) (Resource, error)
	Put(res Resource) error
	Remove(key ring.Id) error
	GetAll() ([]Resource, error)
	// Between returns every resource whose key lies in the open ring arc
	// (from, to] — the ownership-transfer and repair queries need this,
	// not just point lookups.
	Between(from, to ring.Id) ([]Resource, error)
	Count() (int, error)
	Clear() error
	MaxSize() int64
	TotalSize() (int64, error)
	// Prune removes resources older than maxAge (spec.md §6
	// KEY_EXPIRATION) and returns how many were removed.
	Prune(maxAge time.Duration) (int, error)
	Close() error
}
