package kbucket

import (
	"testing"

	"chordmesh/internal/ring"
)

func idFromUint(x uint64) ring.Id { return ring.FromUint64(x) }

func contact(x uint64) Contact {
	return Contact{ID: idFromUint(x), SessionDescriptor: "desc"}
}

func owner() Contact {
	return Contact{ID: idFromUint(0), SessionDescriptor: "owner"}
}

func TestUpdateContactInsertsAndMovesToTail(t *testing.T) {
	tbl := New(owner())
	a, b := contact(1), contact(2)

	if err := tbl.UpdateContact(a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := tbl.UpdateContact(b); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	// Re-touch a: it should move to the tail.
	if err := tbl.UpdateContact(a); err != nil {
		t.Fatalf("retouch a: %v", err)
	}
	contacts := tbl.buckets[0].contacts
	if tail := contacts[len(contacts)-1]; !tail.ID.Equal(a.ID) {
		t.Fatalf("tail after retouch = %v, want a", tail)
	}
	got := tbl.Closest(idFromUint(0), 2)
	if len(got) != 2 {
		t.Fatalf("closest returned %d contacts, want 2", len(got))
	}
}

func TestBucketClassInvariant(t *testing.T) {
	o := owner()
	tbl := New(o)
	for i := uint64(1); i <= 5; i++ {
		if err := tbl.UpdateContact(contact(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	last := len(tbl.buckets) - 1
	for i, b := range tbl.buckets {
		for _, c := range b.contacts {
			class := ring.LeadingZeros(ring.Xor(o.ID, c.ID))
			if i != last && class != i {
				t.Fatalf("contact %v in bucket %d has class %d, want equal", c, i, class)
			}
			if i == last && class < i {
				t.Fatalf("contact %v in last bucket %d has class %d, want >= %d", c, i, class, i)
			}
		}
	}
}

func TestSplitOnlyLastBucketAndRespectsTableMax(t *testing.T) {
	o := owner()
	tbl := New(o)

	// Fill the single bucket beyond K: against owner 0, ids 1..K+1 all
	// have a leading-zero class of at least 155, so the overflow splits
	// the (only, hence last) bucket, moving every contact into bucket 1.
	for i := uint64(1); i <= K+1; i++ {
		_ = tbl.UpdateContact(contact(i))
	}
	if tbl.NumBuckets() < 1 {
		t.Fatalf("expected at least one bucket")
	}
	if tbl.NumBuckets() > TableMax {
		t.Fatalf("table grew past TableMax: %d", tbl.NumBuckets())
	}
}

func TestRemoveLRSDropsHead(t *testing.T) {
	tbl := New(owner())
	a, b := contact(1), contact(2)
	_ = tbl.UpdateContact(a)
	_ = tbl.UpdateContact(b)

	got, ok := tbl.RemoveLRS(idFromUint(1))
	if !ok {
		t.Fatalf("expected a contact to be removed")
	}
	if !got.ID.Equal(a.ID) {
		t.Fatalf("removed %v, want the head (a)", got)
	}
}

func TestRemoveContactByEquality(t *testing.T) {
	tbl := New(owner())
	a, b := contact(1), contact(2)
	_ = tbl.UpdateContact(a)
	_ = tbl.UpdateContact(b)

	tbl.RemoveContact(a)
	got := tbl.Closest(idFromUint(1), 10)
	for _, c := range got {
		if c.ID.Equal(a.ID) {
			t.Fatalf("a still present after RemoveContact")
		}
	}
}

func TestStaleIndexesEmptyForFreshTable(t *testing.T) {
	tbl := New(owner())
	_ = tbl.UpdateContact(contact(1))
	if stale := tbl.StaleIndexes(); len(stale) != 0 {
		t.Fatalf("stale = %v, want none for a freshly touched table", stale)
	}
}

func TestClosestTruncatesToCount(t *testing.T) {
	tbl := New(owner())
	for i := uint64(1); i <= 10; i++ {
		_ = tbl.UpdateContact(contact(i))
	}
	got := tbl.Closest(idFromUint(1), 3)
	if len(got) != 3 {
		t.Fatalf("closest returned %d, want 3", len(got))
	}
}
