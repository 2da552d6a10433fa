// Copyright 2025 Archon 72 Project
//
// Witness - deterministic attestation over event content hashes (CT-12)
//
// A witness produces a signature over an event's content hash under a key the
// operator controls. The signature is deterministic: the same content hash
// always yields the same signature, so attestation can be reproduced and
// checked out-of-band.

package witness

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// DomainEventWitness is the signing domain for event attestations. Domain
// separation keeps event signatures from being replayed in another context.
const DomainEventWitness = "ARCHON72_EVENT_WITNESS_V1"

// Attestation is the witness's identity and signature over a content hash.
type Attestation struct {
	WitnessID string `json:"witness_id"`
	Signature string `json:"signature"`
}

// Witness attests content hashes. Implementations must be deterministic over
// their input.
type Witness interface {
	Attest(contentHash []byte) (Attestation, error)
}

// Ed25519Witness signs content hashes with an Ed25519 key. Ed25519 signatures
// are deterministic by construction.
type Ed25519Witness struct {
	witnessID  string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewEd25519Witness creates a witness from an existing private key. If key is
// nil a fresh key pair is generated.
func NewEd25519Witness(witnessID string, key ed25519.PrivateKey) (*Ed25519Witness, error) {
	if witnessID == "" {
		return nil, fmt.Errorf("witness ID cannot be empty")
	}
	if key == nil {
		_, generated, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate witness key: %w", err)
		}
		key = generated
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid Ed25519 private key size: %d", len(key))
	}
	return &Ed25519Witness{
		witnessID:  witnessID,
		privateKey: key,
		publicKey:  key.Public().(ed25519.PublicKey),
	}, nil
}

// LoadEd25519Witness reads a hex-encoded Ed25519 private key from keyPath.
// Key material lives on disk, never in configuration values.
func LoadEd25519Witness(witnessID, keyPath string) (*Ed25519Witness, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read witness key file: %w", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode witness key file: %w", err)
	}
	return NewEd25519Witness(witnessID, ed25519.PrivateKey(decoded))
}

// WitnessID returns the witness identity attached to every attestation.
func (w *Ed25519Witness) WitnessID() string { return w.witnessID }

// PublicKey returns the verification key.
func (w *Ed25519Witness) PublicKey() ed25519.PublicKey { return w.publicKey }

// Attest implements Witness. The signed message is the signing domain
// concatenated with the content hash.
func (w *Ed25519Witness) Attest(contentHash []byte) (Attestation, error) {
	if len(contentHash) == 0 {
		return Attestation{}, fmt.Errorf("content hash cannot be empty")
	}
	msg := append([]byte(DomainEventWitness), contentHash...)
	sig := ed25519.Sign(w.privateKey, msg)
	return Attestation{
		WitnessID: w.witnessID,
		Signature: hex.EncodeToString(sig),
	}, nil
}

// Verify checks a signature produced by Attest against a public key.
func Verify(publicKey ed25519.PublicKey, contentHash []byte, signature string) (bool, error) {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}
	msg := append([]byte(DomainEventWitness), contentHash...)
	return ed25519.Verify(publicKey, msg, sig), nil
}
