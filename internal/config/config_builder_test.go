package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempJSONConfig(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

// ── newConfigBuilder ──────────────────────────────────────────────────────────

// TestNewConfigBuilder_InitialState verifies that a freshly created builder
// has no error and an empty configs slice.
func TestNewConfigBuilder_InitialState(t *testing.T) {
	b := newConfigBuilder()
	require.NotNil(t, b)
	assert.NoError(t, b.err)
	assert.Empty(t, b.configs)
}

// ── build ─────────────────────────────────────────────────────────────────────

// TestBuild_EmptyBuilder verifies that building with no configs returns a
// config populated with documented defaults.
func TestBuild_EmptyBuilder(t *testing.T) {
	cfg, err := newConfigBuilder().build()
	require.NoError(t, err)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.Equal(t, DefaultBackgroundSyncInterval, cfg.Sync.BackgroundInterval)
	assert.Equal(t, DefaultNumThreads, cfg.Sync.NumThreads)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

// TestBuild_PropagatesBuilderError verifies that a pre-set b.err is wrapped
// and returned, with nil config.
func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

// TestBuild_MergesMultipleConfigs verifies that fields from multiple configs
// are merged into a single result.
func TestBuild_MergesMultipleConfigs(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{Remote: Remote{BaseURL: "https://a.example.com"}},
		&StructuredConfig{Sync: Sync{NumThreads: 3}},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 3, cfg.Sync.NumThreads)
}

// TestBuild_FirstNonZeroValueWins verifies mergo's merge semantics: a field
// already set by an earlier source is not overwritten by a later one.
func TestBuild_FirstNonZeroValueWins(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{Sync: Sync{Interval: 5 * time.Second}},
		&StructuredConfig{Sync: Sync{Interval: 30 * time.Second}},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Sync.Interval)
}

// TestBuild_RejectsUnknownBackend verifies that validation fails for an
// unsupported storage backend.
func TestBuild_RejectsUnknownBackend(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{Storage: Storage{Backend: "etcd"}},
	)

	_, err := b.build()
	require.ErrorIs(t, err, ErrInvalidStorageConfigs)
}

// TestBuild_RejectsDiskBackendWithoutPath verifies that the file and sqlite
// backends require an on-disk path.
func TestBuild_RejectsDiskBackendWithoutPath(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite} {
		b := newConfigBuilder()
		b.configs = append(b.configs,
			&StructuredConfig{Storage: Storage{Backend: backend}},
		)

		_, err := b.build()
		require.ErrorIs(t, err, ErrInvalidStorageConfigs, "backend %s", backend)
	}
}

// TestBuild_RejectsMalformedRemoteURL verifies remote URL validation.
func TestBuild_RejectsMalformedRemoteURL(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{Remote: Remote{BaseURL: "not a url"}},
	)

	_, err := b.build()
	require.ErrorIs(t, err, ErrInvalidRemoteConfigs)
}

// ── withJSON ──────────────────────────────────────────────────────────────────

// TestWithJSON_MergesFileValues verifies that a JSON file referenced by an
// earlier source is parsed and merged.
func TestWithJSON_MergesFileValues(t *testing.T) {
	path := writeTempJSONConfig(t, map[string]any{
		"remote": map[string]any{"base_url": "https://json.example.com"},
		"sync":   map[string]any{"interval": "15s"},
	})

	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{JSONFilePath: path})
	cfg, err := b.withJSON().build()

	require.NoError(t, err)
	assert.Equal(t, "https://json.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Sync.Interval)
}

// TestWithJSON_MissingFile verifies that a dangling config path surfaces as
// a build error.
func TestWithJSON_MissingFile(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{JSONFilePath: "/does/not/exist.json"})

	_, err := b.withJSON().build()
	require.Error(t, err)
}
