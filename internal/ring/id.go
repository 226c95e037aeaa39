// Package ring implements identifier arithmetic on the finite ring Z/2^160.
//
// Every node and every key lives in this ring. All routing decisions in
// the chordstate and kbucket packages reduce to the handful of primitives
// defined here: addition, negation, ordering, and arc containment.
package ring

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
)

// Bits is the width of the identifier ring, fixed at 160 bits (the width
// of a SHA-1 digest and of an Ethereum-style address).
const Bits = 160

// ByteLen is the number of bytes needed to hold an Id.
const ByteLen = Bits / 8

// Id is an element of Z/2^160, stored big-endian. The zero value is the
// ring origin.
type Id [ByteLen]byte

// Zero is the additive identity of the ring.
var Zero Id

// FromBytes builds an Id from a 20-byte big-endian address. It errors if
// the slice is not exactly ByteLen bytes long.
func FromBytes(b []byte) (Id, error) {
	var id Id
	if len(b) != ByteLen {
		return id, fmt.Errorf("ring: invalid address length %d (want %d)", len(b), ByteLen)
	}
	copy(id[:], b)
	return id, nil
}

// FromString derives an Id from an arbitrary key or address string by
// SHA-1 digest, the same 160-bit hash the ring's identifier space is
// already sized around (used to map raw resource keys, and bootstrap
// addresses lacking an explicit id, onto the ring).
func FromString(s string) Id {
	sum := sha1.Sum([]byte(s))
	var id Id
	copy(id[:], sum[:])
	return id
}

// FromBigInt reduces an arbitrary big integer modulo 2^160 and returns the
// corresponding Id. Negative inputs are reduced into [0, 2^160) as well.
func FromBigInt(v *big.Int) Id {
	mod := new(big.Int).Lsh(big.NewInt(1), Bits)
	r := new(big.Int).Mod(v, mod)
	var id Id
	b := r.Bytes()
	copy(id[ByteLen-len(b):], b)
	return id
}

// FromUint64 embeds a small integer into the ring.
func FromUint64(x uint64) Id {
	var id Id
	for i := ByteLen - 1; i >= 0 && x > 0; i-- {
		id[i] = byte(x & 0xFF)
		x >>= 8
	}
	return id
}

// Bytes returns the big-endian byte representation of the id.
func (x Id) Bytes() []byte {
	out := make([]byte, ByteLen)
	copy(out, x[:])
	return out
}

// ToBigInt interprets the id as a non-negative integer.
func (x Id) ToBigInt() *big.Int {
	return new(big.Int).SetBytes(x[:])
}

// String renders the id as a lowercase hex string, e.g. for logging.
func (x Id) String() string {
	return hex.EncodeToString(x[:])
}

// Hex renders the id with a leading "0x".
func (x Id) Hex() string {
	return "0x" + x.String()
}

// FromHex parses a "0x"-prefixed or bare hex string into an Id. The value
// must fit within the 160-bit space; shorter strings are left-padded.
func FromHex(s string) (Id, error) {
	var id Id
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if s == "" {
		return id, fmt.Errorf("ring: empty hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("ring: invalid hex string %q: %w", s, err)
	}
	if len(b) > ByteLen {
		leading := b[:len(b)-ByteLen]
		for _, c := range leading {
			if c != 0 {
				return id, fmt.Errorf("ring: value exceeds %d-bit space", Bits)
			}
		}
		b = b[len(b)-ByteLen:]
	}
	copy(id[ByteLen-len(b):], b)
	return id, nil
}

// Cmp compares two ids as unsigned 160-bit magnitudes.
//
//	-1 if x < y, 0 if x == y, +1 if x > y
func (x Id) Cmp(y Id) int {
	return bytes.Compare(x[:], y[:])
}

// Equal reports whether x and y denote the same ring element.
func (x Id) Equal(y Id) bool {
	return x == y
}

// Add computes (x + y) mod 2^160 with per-byte carry propagation,
// least-significant byte first.
func Add(x, y Id) Id {
	var out Id
	carry := 0
	for i := ByteLen - 1; i >= 0; i-- {
		sum := int(x[i]) + int(y[i]) + carry
		out[i] = byte(sum & 0xFF)
		carry = sum >> 8
	}
	return out
}

// Neg computes -x mod 2^160, i.e. (2^160 - x) mod 2^160.
func Neg(x Id) Id {
	if x == Zero {
		return Zero
	}
	// Two's complement: invert every byte, add 1.
	var inv Id
	for i := range x {
		inv[i] = ^x[i]
	}
	return Add(inv, FromUint64(1))
}

// Sub computes (x - y) mod 2^160 as x + (-y).
func Sub(x, y Id) Id {
	return Add(x, Neg(y))
}

// Distance returns the forward arc length from a to b, i.e. b-a. This is
// the ring distance used throughout routing: "how far around the ring,
// walking forward, from a until you reach b".
func Distance(a, b Id) Id {
	return Sub(b, a)
}

// InOpenArc reports whether x lies in the open interval (a, b) walking
// forward around the ring from a to b. Handles wrap-around by comparing
// ring distances rather than raw magnitudes:
//
//	(x-a) > 0  AND  (b-a) > (x-a)
func InOpenArc(a, x, b Id) bool {
	xa := Sub(x, a)
	if xa == Zero {
		return false
	}
	ba := Sub(b, a)
	return ba.Cmp(xa) > 0
}

// InArcInclusiveRight reports whether x lies in (a, b], the half-open
// interval used by find_successor: a node owns the arc up to and
// including its successor's id.
func InArcInclusiveRight(a, x, b Id) bool {
	return x.Equal(b) || InOpenArc(a, x, b)
}

// SortByRing stably sorts ids by their ring distance from origin,
// ascending: after sorting, Distance(origin, out[i]) is non-decreasing.
func SortByRing(ids []Id, origin Id) {
	sort.SliceStable(ids, func(i, j int) bool {
		return Distance(origin, ids[i]).Cmp(Distance(origin, ids[j])) < 0
	})
}

// Xor returns the bitwise XOR of two ids, used by the k-bucket table's
// distance metric.
func Xor(a, b Id) Id {
	var out Id
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Pow2 returns 2^k mod 2^160 for k in [0,Bits). Used to compute finger
// table positions (self_id + 2^k).
func Pow2(k int) Id {
	var id Id
	if k < 0 || k >= Bits {
		return id
	}
	byteIdx := ByteLen - 1 - k/8
	id[byteIdx] = 1 << uint(k%8)
	return id
}

// LeadingZeros returns the number of leading zero bits in the id, i.e.
// the Kademlia bucket index an XOR distance of this value falls into.
// An id of all zero bits returns Bits.
func LeadingZeros(x Id) int {
	count := 0
	for _, b := range x {
		if b == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}
