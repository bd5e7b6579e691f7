package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateGen(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "--driver", "sqlite", "-o", dir, "-f", "init.sql", "--stream", "orders-1", "--catalog-table", "streams")
	require.NoError(t, err)

	path := filepath.Join(dir, "init.sql")
	assert.Equal(t, "Generated sqlite migration: "+path+"\n", out)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS streams")
	assert.Contains(t, string(content), "'orders-1'")
}

func TestMigrateGen_DefaultFilename(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "--output", dir)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*_init_event_store.sql"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestMigrateGen_Errors(t *testing.T) {
	_, err := execute(t, "--driver", "oracle", "-o", t.TempDir())
	assert.ErrorContains(t, err, `unsupported driver "oracle"`)

	_, err = execute(t, "-o", t.TempDir(), "--stream", "a", "--stream", "a")
	assert.ErrorContains(t, err, "listed twice")

	_, err = execute(t, "extra")
	assert.Error(t, err)
}
