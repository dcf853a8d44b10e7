package security

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher()

	hash, err := h.Hash("Secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Secret1" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !strings.HasPrefix(hash, "$2a$10$") {
		t.Fatalf("expected bcrypt cost 10 hash, got %q", hash)
	}
	if !h.Verify("Secret1", hash) {
		t.Fatalf("expected password to verify")
	}
	if h.Verify("Secret2", hash) {
		t.Fatalf("expected different password to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher()

	a, err := h.Hash("Secret1")
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := h.Hash("Secret1")
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct hashes for identical input")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher()

	if h.Verify("Secret1", "not-a-hash") {
		t.Fatalf("malformed hash must not verify")
	}
	if h.Verify("", "") {
		t.Fatalf("empty hash must not verify")
	}
}

func TestHashTooLong(t *testing.T) {
	h := NewHasher()

	_, err := h.Hash(strings.Repeat("A1", 40))
	if err == nil || !IsTooLong(err) {
		t.Fatalf("expected too-long error, got %v", err)
	}
}
