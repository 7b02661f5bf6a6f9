package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, 10_000*time.Microsecond, cfg.FlowControlDelay())
	require.False(t, cfg.WSPersistency)
	require.Equal(t, 2, cfg.MaxWorkers)
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galera.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ws_persistency: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.WSPersistency)
	require.Equal(t, Default().DataDir, cfg.DataDir)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestGaleraConfigOverridesFlowControlAndWorkers(t *testing.T) {
	cfg := Default()
	cfg.FlowControlDelayMicros = 5000
	cfg.MaxWorkers = 7
	cfg.LocalCacheSize = 1 << 10

	gc := cfg.GaleraConfig()
	require.Equal(t, 5*time.Millisecond, gc.FlowControlDelay)
	require.Equal(t, 7, gc.MaxWorkers)
	require.Equal(t, int64(1<<10), gc.LocalCacheSize)
}
