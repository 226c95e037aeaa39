// Package identity derives a node's 160-bit ring identifier from a
// secp256k1 keypair the way an Ethereum-style account address is
// derived (spec.md/SPEC_FULL.md §0): id = Keccak256(pubkey)[12:].
// It also signs and verifies relay envelope bodies with that key.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"chordmesh/internal/ring"
)

// ErrInvalidSignature is returned by Verify when the signature does not
// match the claimed public key.
var ErrInvalidSignature = errors.New("identity: invalid signature")

// Identity is a node's secp256k1 keypair plus the ring id derived from
// its public key's Keccak256 address.
type Identity struct {
	priv *secp256k1.PrivateKey
	id   ring.Id
}

// uncompressedPubkey renders pub as the 65-byte uncompressed
// 0x04||X||Y encoding; the address is derived from X||Y only, matching
// the Ethereum account-address convention.
func uncompressedPubkey(pub *secp256k1.PublicKey) []byte {
	return pub.SerializeUncompressed()
}

func deriveID(pub *secp256k1.PublicKey) ring.Id {
	b := uncompressedPubkey(pub)[1:] // drop the 0x04 prefix, keep X||Y
	hash := sha3.NewLegacyKeccak256()
	hash.Write(b)
	sum := hash.Sum(nil)
	id, _ := ring.FromBytes(sum[len(sum)-ring.ByteLen:])
	return id
}

// Generate creates a fresh random identity.
func Generate() (*Identity, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return &Identity{priv: priv, id: deriveID(priv.PubKey())}, nil
}

// Load reads a hex-encoded 32-byte secp256k1 private key from path.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}
	return FromHex(string(data))
}

// FromHex parses a hex-encoded 32-byte private key.
func FromHex(s string) (*Identity, error) {
	s = trimNewline(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid key hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("identity: key must be 32 bytes, got %d", len(b))
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	return &Identity{priv: priv, id: deriveID(priv.PubKey())}, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}

// Save writes the hex-encoded private key to path, creating it with
// owner-only permissions.
func (id *Identity) Save(path string) error {
	data := hex.EncodeToString(id.priv.Serialize())
	return os.WriteFile(path, []byte(data), 0600)
}

// ID returns the ring identifier derived from this identity's public key.
func (id *Identity) ID() ring.Id { return id.id }

// SelfID satisfies transport.Signer.
func (id *Identity) SelfID() ring.Id { return id.id }

// PublicKeyBytes returns the uncompressed public key, used as the
// origin_address companion needed to verify a signature against an id.
func (id *Identity) PublicKeyBytes() []byte {
	return uncompressedPubkey(id.priv.PubKey())
}

// Sign produces a deterministic ECDSA signature over the SHA3-256
// digest of body (spec.md §4.4/§6: "signature covers all fields except
// itself").
func (id *Identity) Sign(body []byte) ([]byte, error) {
	digest := sha3.Sum256(body)
	sig := ecdsa.SignCompact(id.priv, digest[:], false)
	return sig, nil
}

// Verify checks that sig is a valid signature over body's SHA3-256
// digest whose recovered key derives exactly claimedID. When
// pubkeyBytes is a 65-byte uncompressed key, the recovered key must
// also equal it; otherwise pubkeyBytes is ignored.
func Verify(pubkeyBytes []byte, body, sig []byte, claimedID ring.Id) error {
	digest := sha3.Sum256(body)
	pub, _, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if deriveID(pub) != claimedID {
		return ErrInvalidSignature
	}
	want := secp256k1.PubKeyBytesLenUncompressed
	if len(pubkeyBytes) == want {
		gotPub, err := secp256k1.ParsePubKey(pubkeyBytes)
		if err != nil || !gotPub.IsEqual(pub) {
			return ErrInvalidSignature
		}
	}
	return nil
}
