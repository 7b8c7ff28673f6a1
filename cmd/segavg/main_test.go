package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/segavg/internal/fixture"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	d := fixture.Random(11, fixture.Sizes{Customers: 150, MaxOrders: 3, MaxLines: 4})
	require.NoError(t, d.Write(dir))
	return dir
}

func TestQueryCommand(t *testing.T) {
	dir := writeDataset(t)

	out, err := run(t, "query", "--data-dir", dir, "--workers", "3", "--log-level", "error", "AUTOMOBILE", "MACHINERY")
	require.NoError(t, err)
	assert.Contains(t, out, "built engine")
	assert.Contains(t, out, "workers=3")
	assert.Contains(t, out, "MACHINERY")
	assert.Contains(t, out, "no data (unknown_segment)")
}

func TestVerifyCommand(t *testing.T) {
	dir := writeDataset(t)

	out, err := run(t, "verify", "--data-dir", dir, "--log-level", "error", "--all")
	require.NoError(t, err)
	assert.NotContains(t, out, "MISMATCH")
	assert.True(t, strings.Count(out, "ok") >= 1)
}

func TestPackCommand(t *testing.T) {
	dir := writeDataset(t)
	remote := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "segavg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"storage:\n  type: local\n  path: "+remote+"\n  prefix: tpch\n"), 0644))

	out, err := run(t, "pack", "--config", cfgPath, "--data-dir", dir, "--log-level", "error", "--publish")
	require.NoError(t, err)
	assert.Contains(t, out, "packed lineitem.tbl.sz")
	assert.Contains(t, out, "published tpch/customer.tbl.sz")

	_, err = os.Stat(filepath.Join(remote, "tpch", "orders.tbl.sz"))
	assert.NoError(t, err)

	staged := t.TempDir()
	out, err = run(t, "stage", "--config", cfgPath, "--data-dir", staged, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "3 downloaded")

	out, err = run(t, "verify", "--data-dir", staged, "--log-level", "error")
	require.NoError(t, err)
	assert.NotContains(t, out, "MISMATCH")
}

func TestStageCommand_NoStorage(t *testing.T) {
	_, err := run(t, "stage", "--data-dir", t.TempDir(), "--log-level", "error")
	assert.Error(t, err)
}

func TestQueryCommand_MissingTables(t *testing.T) {
	_, err := run(t, "query", "--data-dir", t.TempDir(), "--log-level", "error")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "query", "--data-dir", t.TempDir(), "--log-level", "loud")
	assert.Error(t, err)
}
