// Package crypto holds the validator keypair types used to witness events.
//
// Keys are ed25519. The concrete types never expose their underlying key
// material directly; Bytes() and Seed() return copies so callers cannot
// mutate a key after construction.
package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
	SeedSize       = ed25519.SeedSize
)

// PublicKey is the verifying half of a validator keypair.
type PublicKey interface {
	Bytes() []byte
	Verify(data, sig []byte) bool
	Equal(other PublicKey) bool
	String() string
}

// PrivateKey is the signing half of a validator keypair.
type PrivateKey interface {
	Sign(data []byte) []byte
	PublicKey() PublicKey
	Bytes() []byte
	Seed() []byte
}

type publicKey struct {
	key ed25519.PublicKey
}

type privateKey struct {
	key ed25519.PrivateKey
}

var (
	_ PublicKey  = (*publicKey)(nil)
	_ PrivateKey = (*privateKey)(nil)
)

// GeneratePrivateKey creates a fresh random keypair.
func GeneratePrivateKey() (PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %v", err)
	}
	return &privateKey{key: priv}, nil
}

// PrivateKeyFromSeed derives a keypair deterministically from a 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("invalid seed size: got %d, want %d", len(seed), SeedSize)
	}
	return &privateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

func PrivateKeyFromBytes(data []byte) (PrivateKey, error) {
	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: got %d, want %d", len(data), PrivateKeySize)
	}
	key := make(ed25519.PrivateKey, PrivateKeySize)
	copy(key, data)
	return &privateKey{key: key}, nil
}

func PublicKeyFromBytes(data []byte) (PublicKey, error) {
	if len(data) != PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: got %d, want %d", len(data), PublicKeySize)
	}
	key := make(ed25519.PublicKey, PublicKeySize)
	copy(key, data)
	return &publicKey{key: key}, nil
}

// PublicKeyFromHex parses the hex form used in configuration files.
func PublicKeyFromHex(s string) (PublicKey, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %v", err)
	}
	return PublicKeyFromBytes(data)
}

func (p *privateKey) Sign(data []byte) []byte {
	return ed25519.Sign(p.key, data)
}

func (p *privateKey) PublicKey() PublicKey {
	pub := make(ed25519.PublicKey, PublicKeySize)
	copy(pub, p.key.Public().(ed25519.PublicKey))
	return &publicKey{key: pub}
}

func (p *privateKey) Bytes() []byte {
	out := make([]byte, len(p.key))
	copy(out, p.key)
	return out
}

func (p *privateKey) Seed() []byte {
	out := make([]byte, SeedSize)
	copy(out, p.key.Seed())
	return out
}

func (p *publicKey) Bytes() []byte {
	out := make([]byte, len(p.key))
	copy(out, p.key)
	return out
}

func (p *publicKey) Verify(data, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(p.key, data, sig)
}

func (p *publicKey) Equal(other PublicKey) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(p.key, other.Bytes())
}

func (p *publicKey) String() string {
	return hex.EncodeToString(p.key)
}
