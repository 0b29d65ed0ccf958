package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/w3f-grants-archive/validated-streams/crypto"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "/ip4/0.0.0.0/tcp/9000", cfg.Network.ListenAddr)
	require.Equal(t, 3*time.Second, cfg.Node.GracePeriod)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	keyHex := priv.PublicKey().String()

	path := writeConfig(t, `{
		"network": {
			"listen_addr": "/ip4/127.0.0.1/tcp/7100",
			"queue_capacity": 64
		},
		"validators": ["`+keyHex+`"],
		"chain": {"block_time": 1000000000}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/ip4/127.0.0.1/tcp/7100", cfg.Network.ListenAddr)
	require.Equal(t, 64, cfg.Network.QueueCapacity)
	require.Equal(t, []string{keyHex}, cfg.Validators)
	require.Equal(t, time.Second, cfg.Chain.BlockTime)

	// Untouched sections keep their defaults.
	require.Equal(t, "./data", cfg.Node.DataDir)
	require.Equal(t, float64(100), cfg.Network.PublishRate)
	require.Equal(t, 8080, cfg.API.StatusPort)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := map[string]string{
		"garbage body":      `{not json`,
		"bad listen addr":   `{"network": {"listen_addr": "localhost:9000"}}`,
		"bad peer addr":     `{"network": {"peers": ["not-a-multiaddr"]}}`,
		"bad validator key": `{"validators": ["zz"]}`,
		"short key":         `{"validators": ["abcd"]}`,
		"zero pool":         `{"chain": {"pool_capacity": 0}}`,
		"bad port":          `{"api": {"status_port": 70000}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestValidatorKeys(t *testing.T) {
	var want []string
	cfg := DefaultConfig()
	for i := 0; i < 3; i++ {
		priv, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		cfg.Validators = append(cfg.Validators, priv.PublicKey().String())
		want = append(want, priv.PublicKey().String())
	}

	keys, err := cfg.ValidatorKeys()
	require.NoError(t, err)
	require.Len(t, keys, 3)
	for i, k := range keys {
		require.Equal(t, want[i], k.String())
	}
}
