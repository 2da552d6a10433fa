// Copyright 2025 Archon 72 Project
//
// Unit tests for the Ed25519 witness

package witness

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestAttestDeterministic(t *testing.T) {
	wit, err := NewEd25519Witness("witness-1", nil)
	if err != nil {
		t.Fatalf("NewEd25519Witness failed: %v", err)
	}

	hash := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	a1, err := wit.Attest(hash)
	if err != nil {
		t.Fatalf("Attest failed: %v", err)
	}
	a2, err := wit.Attest(hash)
	if err != nil {
		t.Fatalf("Attest failed: %v", err)
	}

	if a1.Signature != a2.Signature {
		t.Error("attestation not deterministic over equal input")
	}
	if a1.WitnessID != "witness-1" {
		t.Errorf("witness ID = %q, want witness-1", a1.WitnessID)
	}
}

func TestAttestVerifies(t *testing.T) {
	wit, _ := NewEd25519Witness("witness-1", nil)
	hash := []byte("somehash")

	a, err := wit.Attest(hash)
	if err != nil {
		t.Fatalf("Attest failed: %v", err)
	}

	ok, err := Verify(wit.PublicKey(), hash, a.Signature)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Error("signature does not verify")
	}

	ok, err = Verify(wit.PublicKey(), []byte("otherhash"), a.Signature)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Error("signature verified over different hash")
	}
}

func TestAttestRejectsEmptyHash(t *testing.T) {
	wit, _ := NewEd25519Witness("witness-1", nil)
	if _, err := wit.Attest(nil); err == nil {
		t.Error("expected error for empty content hash")
	}
}

func TestNewWitnessValidation(t *testing.T) {
	if _, err := NewEd25519Witness("", nil); err == nil {
		t.Error("expected error for empty witness ID")
	}
	if _, err := NewEd25519Witness("witness-1", make(ed25519.PrivateKey, 3)); err == nil {
		t.Error("expected error for truncated key")
	}
}

func TestLoadWitnessFromKeyFile(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "witness.key")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wit, err := LoadEd25519Witness("witness-1", path)
	if err != nil {
		t.Fatalf("LoadEd25519Witness failed: %v", err)
	}

	// The loaded key signs identically to the original.
	direct, _ := NewEd25519Witness("witness-1", key)
	hash := []byte("hash")
	a1, _ := wit.Attest(hash)
	a2, _ := direct.Attest(hash)
	if a1.Signature != a2.Signature {
		t.Error("loaded key signs differently from original")
	}
}

func TestLoadWitnessMissingFile(t *testing.T) {
	if _, err := LoadEd25519Witness("witness-1", "/nonexistent/witness.key"); err == nil {
		t.Error("expected error for missing key file")
	}
}
