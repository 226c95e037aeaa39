package identity

import (
	"os"
	"path/filepath"
	"testing"

	"chordmesh/internal/ring"
)

func TestGenerateDerivesStableID(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if id.ID() == ring.Zero {
		t.Fatalf("derived id must not be zero")
	}
	if id.ID() != id.SelfID() {
		t.Errorf("ID() and SelfID() must agree")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "node.key")
	if err := id.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID() != id.ID() {
		t.Errorf("loaded id = %s, want %s", loaded.ID(), id.ID())
	}
}

func TestSaveWritesOwnerOnlyPermissions(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "node.key")
	if err := id.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key file perm = %o, want 0600", perm)
	}
}

func TestFromHexRejectsWrongLength(t *testing.T) {
	if _, err := FromHex("abcd"); err == nil {
		t.Errorf("expected error for short key")
	}
}

func TestFromHexTrimsTrailingNewline(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	hexKey := id.priv.Serialize()
	reloaded, err := FromHex(string(hexEncode(hexKey)) + "\n")
	if err != nil {
		t.Fatalf("FromHex with trailing newline: %v", err)
	}
	if reloaded.ID() != id.ID() {
		t.Errorf("trailing newline must not change derived id")
	}
}

func TestSignAndVerify(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	body := []byte("relay envelope body bytes")

	sig, err := id.Sign(body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(id.PublicKeyBytes(), body, sig, id.ID()); err != nil {
		t.Errorf("Verify failed on valid signature: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sig, err := id.Sign([]byte("original"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(id.PublicKeyBytes(), []byte("tampered"), sig, id.ID()); err == nil {
		t.Errorf("expected Verify to reject a tampered body")
	}
}

func TestVerifyRejectsWrongClaimedID(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	other, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	body := []byte("payload")
	sig, err := id.Sign(body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(id.PublicKeyBytes(), body, sig, other.ID()); err == nil {
		t.Errorf("expected Verify to reject mismatched claimed id")
	}
}

func hexEncode(b []byte) []byte {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return out
}
