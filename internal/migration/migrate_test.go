package migration

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-checkout/internal/logger"
)

func TestParseFlags(t *testing.T) {
	opts, err := ParseFlags([]string{"-env", "test", "-seed"})

	require.NoError(t, err)
	assert.Equal(t, "test", opts.Env)
	assert.True(t, opts.Seed)
	assert.False(t, opts.DryRun)

	_, err = ParseFlags([]string{"-unknown"})
	assert.Error(t, err)
}

func TestLoadEnvPrefersExplicitFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "migrate.env")
	require.NoError(t, os.WriteFile(file, []byte("MIGRATE_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MIGRATE_TEST_VALUE") })

	loaded := LoadEnv("nowhere", file)

	assert.Equal(t, file, loaded)
	assert.Equal(t, "from-file", os.Getenv("MIGRATE_TEST_VALUE"))
}

func TestDryRunPrintsSchema(t *testing.T) {
	var out bytes.Buffer

	err := Run(context.Background(), &Options{DryRun: true}, &out, logger.New(io.Discard, false))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "CREATE TABLE IF NOT EXISTS")
	assert.Contains(t, out.String(), "checkout_sessions")
}
