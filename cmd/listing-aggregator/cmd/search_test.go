package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/listing-aggregator/internal/config"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

//nolint:paralleltest // sets environment and runs the shared root command
func TestSearch_MissingCredentialsSkipsStore(t *testing.T) {
	t.Setenv(config.EnvClientID, "")
	t.Setenv(config.EnvClientSecret, "")
	t.Setenv(config.EnvTokenProxyURL, "")

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "listings.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "sources: [ebay]\n" +
		"database:\n" +
		"  driver: sqlite\n" +
		"  path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))

	var stderr bytes.Buffer
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{
		"search", "wireless mouse",
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--log-level", "error",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "client secret are required")

	_, statErr := os.Stat(dbPath)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
