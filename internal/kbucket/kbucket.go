// Package kbucket implements the Kademlia-style k-bucket routing table
// used for candidate/contact bookkeeping: XOR metric, bucket splitting,
// least-recently-seen eviction, and staleness tracking.
package kbucket

import (
	"time"

	"chordmesh/internal/ring"
)

// K is the maximum number of contacts held in a single bucket.
const K = 20

// TableMax is the maximum number of buckets a table may grow to.
const TableMax = 20

// RefreshInterval is the staleness threshold: a bucket whose UpdatedAt
// is older than this is reported by StaleIndexes.
const RefreshInterval = 3600 * time.Second

// Contact is a (id, session descriptor) pair. Equality is by id.
type Contact struct {
	ID                ring.Id
	SessionDescriptor string
}

// bucket is an ordered list of up to K contacts; the tail is the
// most-recently-seen entry.
type bucket struct {
	contacts  []Contact
	updatedAt time.Time
}

func newBucket() *bucket {
	return &bucket{updatedAt: time.Now()}
}

func (b *bucket) indexOf(id ring.Id) int {
	for i, c := range b.contacts {
		if c.ID.Equal(id) {
			return i
		}
	}
	return -1
}

func (b *bucket) touch() { b.updatedAt = time.Now() }
