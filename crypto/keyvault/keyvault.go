// Package keyvault manages the validator signing key kept in the node's
// keystore directory. A node whose keystore holds no key is an observer and
// does not witness events.
package keyvault

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/w3f-grants-archive/validated-streams/crypto"
)

var log = logging.Logger("keyvault")

const keyFile = "validator.key"

// ErrNoKeys reports that the keystore holds no validator signing key.
var ErrNoKeys = errors.New("no validator key in keystore")

// KeyVault holds the validator signing key for the process lifetime.
type KeyVault struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// Open loads the validator key from dir. A missing keystore or key file
// yields ErrNoKeys; a present but unreadable key is a distinct error so
// operator mistakes stay loud.
func Open(dir string) (*KeyVault, error) {
	raw, err := os.ReadFile(filepath.Join(dir, keyFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoKeys
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %v", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("malformed validator key file: %v", err)
	}
	priv, err := crypto.PrivateKeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("malformed validator key file: %v", err)
	}
	pub := priv.PublicKey()
	log.Infof("loaded validator key %s", pub)
	return &KeyVault{priv: priv, pub: pub}, nil
}

// Generate creates a fresh validator key under dir and persists its seed.
// It refuses to overwrite an existing key.
func Generate(dir string) (*KeyVault, error) {
	path := filepath.Join(dir, keyFile)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("keystore already holds a key at %s", path)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keystore dir: %v", err)
	}
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	encoded := hex.EncodeToString(priv.Seed())
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write validator key: %v", err)
	}
	return &KeyVault{priv: priv, pub: priv.PublicKey()}, nil
}

// Sign signs data with the validator key.
func (v *KeyVault) Sign(data []byte) []byte {
	return v.priv.Sign(data)
}

// Seed returns the signing key seed. The node derives its transport
// identity from it so the libp2p peer id is stable across restarts.
func (v *KeyVault) Seed() []byte {
	return v.priv.Seed()
}

// PublicKey returns the validator public key.
func (v *KeyVault) PublicKey() crypto.PublicKey {
	return v.pub
}
