package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/w3f-grants-archive/validated-streams/config"
)

func TestNewNodeIsNotRunning(t *testing.T) {
	n := New(config.DefaultConfig())
	require.False(t, n.IsRunning())
	require.Nil(t, n.Snapshot())
}

func TestStopBeforeStart(t *testing.T) {
	n := New(config.DefaultConfig())
	require.Error(t, n.Stop())
}

func TestObserverModeStartsNothing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Node.GracePeriod = 1 // effectively no wait
	cfg.Node.DataDir = t.TempDir()
	cfg.Node.KeystoreDir = t.TempDir() // empty keystore, no validator key

	n := New(cfg)
	require.NoError(t, n.Start(), "an empty keystore is observer mode, not an error")
	require.False(t, n.IsRunning())
	require.Nil(t, n.Snapshot())
}
