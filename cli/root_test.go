package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-plane/core/persistence"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plane.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateAndSeed(t *testing.T) {
	db := filepath.Join(t.TempDir(), "plane.db")
	cfg := writeConfig(t, "[database]\npath = \""+filepath.ToSlash(db)+"\"\n\n[log]\nlevel = \"error\"\n")

	out, err := run(t, "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied issues 1.0.0")

	out, err = run(t, "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "Database is up to date.\n", out)

	out, err = run(t, "--config", cfg, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "workspace: plane-demo")
	assert.Contains(t, out, "token:")

	_, err = run(t, "--config", cfg, "seed")
	assert.ErrorIs(t, err, persistence.ErrConflict)

	out, err = run(t, "--config", cfg, "migrate", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "applied users 1.0.0")

	_, err = run(t, "--config", cfg, "seed")
	assert.NoError(t, err, "reset removes the demo workspace")
}

func TestDatabaseFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, "[database]\npath = \""+filepath.ToSlash(filepath.Join(dir, "ignored.db"))+"\"\n\n[log]\nlevel = \"error\"\n")
	db := filepath.Join(dir, "chosen.db")

	_, err := run(t, "--config", cfg, "--database", db, "migrate")
	require.NoError(t, err)
	assert.FileExists(t, db)
	assert.NoFileExists(t, filepath.Join(dir, "ignored.db"))
}

func TestBadConfig(t *testing.T) {
	cfg := writeConfig(t, "[server]\nmode = \"loud\"\n")
	_, err := run(t, "--config", cfg, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestCommandsRejectArguments(t *testing.T) {
	_, err := run(t, "migrate", "extra")
	assert.Error(t, err)
}
