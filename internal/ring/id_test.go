package ring

import (
	"math/big"
	"testing"
)

// Literal fixtures from spec.md §8 (a < b < c < d).
const (
	hexA = "0x00E807fcc88dD319270493fB2e822e388Fe36ab0"
	hexB = "0x119999cf1046e68e36E1aA2E0E07105eDDD1f08E"
	hexC = "0xccffee254729296a45a3885639AC7E10F9d54979"
	hexD = "0xffffee254729296a45a3885639AC7E10F9d54979"
)

func mustHex(t *testing.T, s string) Id {
	t.Helper()
	id, err := FromHex(s)
	if err != nil {
		t.Fatalf("FromHex(%q): %v", s, err)
	}
	return id
}

func TestFromHexRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		hex  string
	}{
		{"a", hexA},
		{"b", hexB},
		{"c", hexC},
		{"d", hexD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := mustHex(t, tt.hex)
			if got := id.Hex(); got != tt.hex {
				t.Errorf("Hex() = %s, want %s", got, tt.hex)
			}
		})
	}
}

func TestOrdering(t *testing.T) {
	a, b, c, d := mustHex(t, hexA), mustHex(t, hexB), mustHex(t, hexC), mustHex(t, hexD)
	if a.Cmp(b) >= 0 || b.Cmp(c) >= 0 || c.Cmp(d) >= 0 {
		t.Fatalf("fixtures must satisfy a < b < c < d")
	}
}

// Invariant 1: ring arithmetic.
func TestRingArithmeticInvariants(t *testing.T) {
	ids := []Id{mustHex(t, hexA), mustHex(t, hexB), mustHex(t, hexC), mustHex(t, hexD), Zero}
	for _, x := range ids {
		for _, y := range ids {
			if got := Add(Sub(x, y), Sub(y, x)); got != Zero {
				t.Errorf("(x-y)+(y-x) = %s, want 0", got)
			}
		}
		if got := Neg(Neg(x)); got != x {
			t.Errorf("-(-x) = %s, want %s", got, x)
		}
		if got := Add(x, Neg(x)); got != Zero {
			t.Errorf("x+(-x) = %s, want 0", got)
		}
	}
}

// Invariant 2: sort_by_ring leaves distances from origin non-decreasing.
func TestSortByRing(t *testing.T) {
	a, b, c, d := mustHex(t, hexA), mustHex(t, hexB), mustHex(t, hexC), mustHex(t, hexD)
	origin := b
	ids := []Id{d, a, c, b}
	SortByRing(ids, origin)
	for i := 1; i < len(ids); i++ {
		prev := Distance(origin, ids[i-1])
		cur := Distance(origin, ids[i])
		if prev.Cmp(cur) > 0 {
			t.Errorf("sort_by_ring not monotonic at %d: %s then %s", i, prev, cur)
		}
	}
}

func TestAddWrapsModulo(t *testing.T) {
	max := FromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), Bits), big.NewInt(1)))
	got := Add(max, FromUint64(1))
	if got != Zero {
		t.Errorf("max+1 = %s, want 0 (wraparound)", got)
	}
}

func TestInOpenArcAndInclusiveRight(t *testing.T) {
	a, b, c := mustHex(t, hexA), mustHex(t, hexB), mustHex(t, hexC)

	if !InOpenArc(a, b, c) {
		t.Errorf("expected b in open arc (a,c)")
	}
	if InOpenArc(a, a, c) {
		t.Errorf("a must not be in open arc (a,c)")
	}
	if InOpenArc(a, c, c) {
		t.Errorf("c must not be in open arc (a,c)")
	}
	if !InArcInclusiveRight(a, c, c) {
		t.Errorf("c must be in (a,c]")
	}

	// Wrap-around: arc from d back around to a passes through zero.
	d := mustHex(t, hexD)
	if !InOpenArc(d, Zero, a) {
		t.Errorf("expected 0 to lie on the wrapping arc (d,a)")
	}
}

func TestLeadingZeros(t *testing.T) {
	tests := []struct {
		name string
		x    Id
		want int
	}{
		{"zero", Zero, Bits},
		{"all-ones first bit", func() Id { var id Id; id[0] = 0x80; return id }(), 0},
		{"one bit set at byte 1", func() Id { var id Id; id[1] = 0x01; return id }(), 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LeadingZeros(tt.x); got != tt.want {
				t.Errorf("LeadingZeros = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromStringIsDeterministicAndDistributes(t *testing.T) {
	a := FromString("resource-key-one")
	b := FromString("resource-key-one")
	if a != b {
		t.Errorf("FromString must be deterministic: %s != %s", a, b)
	}
	c := FromString("resource-key-two")
	if a == c {
		t.Errorf("distinct strings hashed to the same id: %s", a)
	}
}

func TestXorSelfIsZero(t *testing.T) {
	a := mustHex(t, hexA)
	if got := Xor(a, a); got != Zero {
		t.Errorf("Xor(a,a) = %s, want 0", got)
	}
}

func TestBiasedIdCompareRebias(t *testing.T) {
	a, b, c := mustHex(t, hexA), mustHex(t, hexB), mustHex(t, hexC)

	// Same bias: ordinary comparison.
	x := NewBiasedId(a, Sub(b, a))
	y := NewBiasedId(a, Sub(c, a))
	if x.Compare(y) >= 0 {
		t.Errorf("expected (b-a) < (c-a) under bias a")
	}

	// Different biases referring to the same absolute positions must
	// compare consistently after rebias.
	xb := NewBiasedId(b, Sub(b, b)) // absolute position b, biased at b
	yb := NewBiasedId(a, Sub(b, a)) // absolute position b, biased at a
	if xb.Compare(yb) != 0 {
		t.Errorf("expected equal absolute positions to compare equal across biases")
	}
}
