package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func parseTestFlags(t *testing.T, args ...string) *StructuredConfig {
	t.Helper()
	fs := flag.NewFlagSet("treesync-test", flag.ContinueOnError)
	return parseFlags(fs, args)
}

// TestParseFlags_AllFields verifies that every flag maps to the expected
// config field.
func TestParseFlags_AllFields(t *testing.T) {
	cfg := parseTestFlags(t,
		"-remote-url", "https://storage.example.com/data",
		"-token", "secret-token",
		"-request-timeout", "45s",
		"-backend", "file",
		"-store-path", "/tmp/nodes.json",
		"-sync-interval", "20s",
		"-background-sync-interval", "2m",
		"-num-threads", "7",
		"-metrics-address", "localhost:9091",
		"-c", "/etc/treesync.json",
	)

	assert.Equal(t, "https://storage.example.com/data", cfg.Remote.BaseURL)
	assert.Equal(t, "secret-token", cfg.Remote.Token)
	assert.Equal(t, 45*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/nodes.json", cfg.Storage.Path)
	assert.Equal(t, 20*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Sync.BackgroundInterval)
	assert.Equal(t, 7, cfg.Sync.NumThreads)
	assert.Equal(t, "localhost:9091", cfg.App.MetricsAddress)
	assert.Equal(t, "/etc/treesync.json", cfg.JSONFilePath)
}

// TestParseFlags_NoArgs verifies that parsing without arguments yields a
// zero-valued config so that merging never clobbers other sources.
func TestParseFlags_NoArgs(t *testing.T) {
	cfg := parseTestFlags(t)

	assert.Empty(t, cfg.Remote.BaseURL)
	assert.Zero(t, cfg.Sync.Interval)
	assert.Zero(t, cfg.Sync.NumThreads)
	assert.Empty(t, cfg.Storage.Backend)
}

// TestParseFlags_ConfigAlias verifies that -config works as an alias for -c.
func TestParseFlags_ConfigAlias(t *testing.T) {
	cfg := parseTestFlags(t, "-config", "/etc/alias.json")
	assert.Equal(t, "/etc/alias.json", cfg.JSONFilePath)
}
