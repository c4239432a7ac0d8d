package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{"-once", "-f", "custom.yaml"}, &stderr)
	require.NoError(t, err)
	assert.True(t, opts.once)
	assert.False(t, opts.schedule)
	assert.Equal(t, "custom.yaml", opts.configFile)

	opts, err = parseFlags([]string{"-schedule"}, &stderr)
	require.NoError(t, err)
	assert.True(t, opts.schedule)
	assert.Equal(t, "etc/etl.yaml", opts.configFile)
}

func TestRun_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-once", "-schedule"},
		{"-bogus"},
		{"-once", "extra"},
	} {
		var stderr bytes.Buffer
		assert.Equal(t, exitUsage, run(args, &stderr), "%v", args)
		assert.NotEmpty(t, stderr.String())
	}
}

func TestRun_ConfigErrorExitsOne(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	var stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	assert.Equal(t, exitFailure, run([]string{"-once", "-f", missing}, &stderr))
	assert.Contains(t, stderr.String(), "load config")
}

func TestRun_InvalidConfigExitsOne(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	path := filepath.Join(t.TempDir(), "etl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Env: dev\nPipeline:\n  Limit: 999\nPostgres:\n  DSN: postgres://x@y/z\n"), 0o644))

	var stderr bytes.Buffer
	assert.Equal(t, exitFailure, run([]string{"-schedule", "-f", path}, &stderr))
	assert.Contains(t, stderr.String(), "pipeline.limit")
}
