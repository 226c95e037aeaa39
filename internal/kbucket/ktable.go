package kbucket

import (
	"errors"
	"sort"
	"time"

	"chordmesh/internal/ring"
)

// ErrBucketFull is returned by UpdateContact when the target bucket is
// full, is not splittable (not the last bucket, or the table is already
// at TableMax), and the new contact is therefore refused: the oldest
// entry remains (Kademlia's LRU-favoring policy).
var ErrBucketFull = errors.New("kbucket: bucket full, contact refused")

// KTable is a growable vector of buckets (at most TableMax) owned by a
// single Contact. Bucket i holds contacts whose leading_zeros(owner XOR
// contact.id) equals i, except the last bucket, which may span >= i.
type KTable struct {
	Owner   Contact
	buckets []*bucket
}

// New returns a table with a single, empty bucket.
func New(owner Contact) *KTable {
	return &KTable{Owner: owner, buckets: []*bucket{newBucket()}}
}

func (t *KTable) classOf(id ring.Id) int {
	return ring.LeadingZeros(ring.Xor(t.Owner.ID, id))
}

func (t *KTable) bucketIndexFor(id ring.Id) int {
	i := t.classOf(id)
	if i > len(t.buckets)-1 {
		i = len(t.buckets) - 1
	}
	return i
}

// NumBuckets reports how many buckets the table currently holds.
func (t *KTable) NumBuckets() int { return len(t.buckets) }

// UpdateContact inserts or refreshes c. An existing contact is moved to
// the tail (most-recently-seen) and its bucket's updatedAt is refreshed.
// A new contact is appended; if that overflows the bucket, a split is
// attempted (only legal on the last bucket, while under TableMax). If
// the bucket cannot be split and is full, the contact is refused and
// ErrBucketFull is returned; the caller may treat this as a no-op.
func (t *KTable) UpdateContact(c Contact) error {
	i := t.bucketIndexFor(c.ID)
	b := t.buckets[i]

	if idx := b.indexOf(c.ID); idx >= 0 {
		b.contacts = append(b.contacts[:idx], b.contacts[idx+1:]...)
		b.contacts = append(b.contacts, c)
		b.touch()
		return nil
	}

	if len(b.contacts) < K {
		b.contacts = append(b.contacts, c)
		b.touch()
		return nil
	}

	if i == len(t.buckets)-1 && len(t.buckets) < TableMax {
		t.split(i)
		i2 := t.bucketIndexFor(c.ID)
		b2 := t.buckets[i2]
		if len(b2.contacts) < K {
			b2.contacts = append(b2.contacts, c)
			b2.touch()
			return nil
		}
	}
	return ErrBucketFull
}

// split partitions the last bucket i into itself (entries whose class is
// exactly i) and a newly appended bucket i+1 (entries whose class is
// greater than i).
func (t *KTable) split(i int) {
	old := t.buckets[i]
	kept := old.contacts[:0:0]
	moved := make([]Contact, 0)
	for _, c := range old.contacts {
		if t.classOf(c.ID) == i {
			kept = append(kept, c)
		} else {
			moved = append(moved, c)
		}
	}
	old.contacts = kept
	old.touch()

	next := newBucket()
	next.contacts = moved
	t.buckets = append(t.buckets, next)
}

// Closest collects candidate contacts starting from key's own bucket,
// widening outward (higher indices first, then lower), sorts the
// collected set ascending by XOR distance to key, and truncates to
// count.
func (t *KTable) Closest(key ring.Id, count int) []Contact {
	i := t.bucketIndexFor(key)
	order := make([]int, 0, len(t.buckets))
	order = append(order, i)
	for hi := i + 1; hi < len(t.buckets); hi++ {
		order = append(order, hi)
	}
	for lo := i - 1; lo >= 0; lo-- {
		order = append(order, lo)
	}

	var collected []Contact
	for _, idx := range order {
		collected = append(collected, t.buckets[idx].contacts...)
		if len(collected) >= count {
			break
		}
	}

	sort.SliceStable(collected, func(a, b int) bool {
		da := ring.Xor(key, collected[a].ID)
		db := ring.Xor(key, collected[b].ID)
		return da.Cmp(db) < 0
	})
	if len(collected) > count {
		collected = collected[:count]
	}
	return collected
}

// RemoveLRS drops the head (least-recently-seen) contact of key's bucket
// and returns it, or reports false if that bucket is empty.
func (t *KTable) RemoveLRS(key ring.Id) (Contact, bool) {
	b := t.buckets[t.bucketIndexFor(key)]
	if len(b.contacts) == 0 {
		return Contact{}, false
	}
	head := b.contacts[0]
	b.contacts = b.contacts[1:]
	b.touch()
	return head, true
}

// RemoveContact drops c by id equality from whichever bucket holds it.
func (t *KTable) RemoveContact(c Contact) {
	b := t.buckets[t.bucketIndexFor(c.ID)]
	idx := b.indexOf(c.ID)
	if idx < 0 {
		return
	}
	b.contacts = append(b.contacts[:idx], b.contacts[idx+1:]...)
	b.touch()
}

// StaleIndexes returns the indexes of buckets whose updatedAt is older
// than RefreshInterval.
func (t *KTable) StaleIndexes() []int {
	var stale []int
	now := time.Now()
	for i, b := range t.buckets {
		if now.Sub(b.updatedAt) > RefreshInterval {
			stale = append(stale, i)
		}
	}
	return stale
}
