package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/w3f-grants-archive/validated-streams/crypto"
)

type Config struct {
	// Node configuration
	Node NodeConfig `json:"node"`

	// Gossip network configuration
	Network NetworkConfig `json:"network"`

	// Known validator set, hex-encoded ed25519 public keys
	Validators []string `json:"validators"`

	// Inclusion chain configuration
	Chain ChainConfig `json:"chain"`

	// API configuration
	API APIConfig `json:"api"`
}

type NodeConfig struct {
	DataDir     string        `json:"data_dir"`
	KeystoreDir string        `json:"keystore_dir"`
	LogLevel    string        `json:"log_level"`
	GracePeriod time.Duration `json:"grace_period"`
}

type NetworkConfig struct {
	ListenAddr    string   `json:"listen_addr"`
	Peers         []string `json:"peers"`
	QueueCapacity int      `json:"queue_capacity"`
	PublishRate   float64  `json:"publish_rate"`
	PublishBurst  int      `json:"publish_burst"`
}

type ChainConfig struct {
	BlockTime     time.Duration `json:"block_time"`
	MaxTxPerBlock int           `json:"max_tx_per_block"`
	PoolCapacity  int           `json:"pool_capacity"`
}

type APIConfig struct {
	StatusPort int `json:"status_port"`
}

// DefaultConfig returns the configuration a fresh node runs with.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			DataDir:     "./data",
			KeystoreDir: "./keystore",
			LogLevel:    "info",
			GracePeriod: 3 * time.Second,
		},
		Network: NetworkConfig{
			ListenAddr:    "/ip4/0.0.0.0/tcp/9000",
			Peers:         []string{},
			QueueCapacity: 256,
			PublishRate:   100,
			PublishBurst:  200,
		},
		Validators: []string{},
		Chain: ChainConfig{
			BlockTime:     3 * time.Second,
			MaxTxPerBlock: 1000,
			PoolCapacity:  1000,
		},
		API: APIConfig{
			StatusPort: 8080,
		},
	}
}

// Load reads a JSON config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the node cannot start with. Peer
// addresses are checked for multiaddr syntax only; a peer that turns out
// to be unreachable or incomplete is handled at dial time.
func (c *Config) Validate() error {
	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir must not be empty")
	}
	if c.Node.KeystoreDir == "" {
		return fmt.Errorf("node.keystore_dir must not be empty")
	}
	if _, err := ma.NewMultiaddr(c.Network.ListenAddr); err != nil {
		return fmt.Errorf("invalid network.listen_addr %q: %v", c.Network.ListenAddr, err)
	}
	for _, p := range c.Network.Peers {
		if _, err := ma.NewMultiaddr(p); err != nil {
			return fmt.Errorf("invalid peer address %q: %v", p, err)
		}
	}
	for _, v := range c.Validators {
		if _, err := crypto.PublicKeyFromHex(v); err != nil {
			return fmt.Errorf("invalid validator key %q: %v", v, err)
		}
	}
	if c.Network.QueueCapacity <= 0 {
		return fmt.Errorf("network.queue_capacity must be positive")
	}
	if c.Network.PublishRate <= 0 {
		return fmt.Errorf("network.publish_rate must be positive")
	}
	if c.Network.PublishBurst <= 0 {
		return fmt.Errorf("network.publish_burst must be positive")
	}
	if c.Chain.BlockTime <= 0 {
		return fmt.Errorf("chain.block_time must be positive")
	}
	if c.Chain.MaxTxPerBlock <= 0 {
		return fmt.Errorf("chain.max_tx_per_block must be positive")
	}
	if c.Chain.PoolCapacity <= 0 {
		return fmt.Errorf("chain.pool_capacity must be positive")
	}
	if c.API.StatusPort <= 0 || c.API.StatusPort > 65535 {
		return fmt.Errorf("api.status_port must be a valid port number")
	}
	return nil
}

// ValidatorKeys parses the configured validator set.
func (c *Config) ValidatorKeys() ([]crypto.PublicKey, error) {
	keys := make([]crypto.PublicKey, 0, len(c.Validators))
	for _, v := range c.Validators {
		pub, err := crypto.PublicKeyFromHex(v)
		if err != nil {
			return nil, fmt.Errorf("invalid validator key %q: %v", v, err)
		}
		keys = append(keys, pub)
	}
	return keys, nil
}
