package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Edge case tests for scenarios that could cause silent failures or
// unexpected behavior around config discovery and merging.

// =============================================================================
// FindVaultRoot edge cases
// =============================================================================

func TestFindVaultRoot_NonExistentDir_ReturnsAbsPath(t *testing.T) {
	nonExistent := filepath.Join(os.TempDir(), "roux-does-not-exist-xyz")

	root, err := FindVaultRoot(nonExistent)
	require.NoError(t, err)
	assert.Equal(t, nonExistent, filepath.Clean(root))
}

func TestFindVaultRoot_StopsAtFirstGitDir_NotOutermost(t *testing.T) {
	outer := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(outer, ".git"), 0o755))

	inner := filepath.Join(outer, "nested")
	require.NoError(t, os.Mkdir(inner, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(inner, ".git"), 0o755))

	leaf := filepath.Join(inner, "deeper")
	require.NoError(t, os.Mkdir(leaf, 0o755))

	found, err := FindVaultRoot(leaf)
	require.NoError(t, err)
	assert.Equal(t, inner, found)
}

func TestFindVaultRoot_RelativePathResolved(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	found, err := FindVaultRoot(".")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(found))
}

// =============================================================================
// loadFromFile / mergeWith edge cases
// =============================================================================

func TestLoad_EmptyYAMLFile_KeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".roux.yaml"), []byte(""), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Watcher.DebounceMS)
}

func TestLoad_PrefersYAMLOverYML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".roux.yaml"), []byte("server:\n  log_level: warn\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".roux.yml"), []byte("server:\n  log_level: error\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_MissingDirUsesDefaults(t *testing.T) {
	_, err := Load(filepath.Join(os.TempDir(), "roux-nonexistent-load-dir"))
	// A missing directory has no config file to load, so Load still
	// succeeds with defaults rooted at that (nonexistent) path.
	require.NoError(t, err)
}

func TestMergeWith_ZeroValuesDoNotOverwrite(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.LogLevel = "debug"

	cfg.mergeWith(&Config{})
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestMergeWith_ExcludedDirsAccumulatesAcrossMultipleMerges(t *testing.T) {
	cfg := NewConfig()
	cfg.mergeWith(&Config{Vault: VaultConfig{ExcludedDirs: []string{"a"}}})
	cfg.mergeWith(&Config{Vault: VaultConfig{ExcludedDirs: []string{"b"}}})

	assert.Contains(t, cfg.Vault.ExcludedDirs, "a")
	assert.Contains(t, cfg.Vault.ExcludedDirs, "b")
	assert.Contains(t, cfg.Vault.ExcludedDirs, ".roux")
}

// =============================================================================
// applyEnvOverrides edge cases
// =============================================================================

func TestApplyEnvOverrides_InvalidDebounceIgnored(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("ROUX_WATCH_DEBOUNCE_MS", "not-a-number")

	cfg.applyEnvOverrides()
	assert.Equal(t, 1000, cfg.Watcher.DebounceMS)
}

func TestApplyEnvOverrides_ZeroDebounceIgnored(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("ROUX_WATCH_DEBOUNCE_MS", "0")

	cfg.applyEnvOverrides()
	assert.Equal(t, 1000, cfg.Watcher.DebounceMS)
}

func TestApplyEnvOverrides_AllVariablesRecognized(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("ROUX_VAULT_ROOT", "/elsewhere")
	t.Setenv("ROUX_CACHE_DIR", ".cache2")
	t.Setenv("ROUX_PENDING_UNLINK_TTL", "30s")
	t.Setenv("ROUX_VECTOR_BACKEND", "http")
	t.Setenv("ROUX_VECTOR_ENDPOINT", "http://vec:1234")
	t.Setenv("ROUX_VECTOR_MODEL", "text-embed-3")
	t.Setenv("ROUX_LOG_LEVEL", "warn")

	cfg.applyEnvOverrides()

	assert.Equal(t, "/elsewhere", cfg.Vault.Root)
	assert.Equal(t, ".cache2", cfg.Vault.CacheDir)
	assert.Equal(t, "30s", cfg.Vault.PendingUnlinkTTL)
	assert.Equal(t, "http", cfg.Vector.Backend)
	assert.Equal(t, "http://vec:1234", cfg.Vector.Endpoint)
	assert.Equal(t, "text-embed-3", cfg.Vector.Model)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

// =============================================================================
// Validate edge cases
// =============================================================================

func TestValidate_CaseInsensitiveBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Vector.Backend = "NONE"
	require.NoError(t, cfg.Validate())
}

func TestValidate_CaseInsensitiveLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.LogLevel = "DEBUG"
	require.NoError(t, cfg.Validate())
}

func TestValidate_ZeroDebounceIsValid(t *testing.T) {
	cfg := NewConfig()
	cfg.Watcher.DebounceMS = 0
	require.NoError(t, cfg.Validate())
}

// =============================================================================
// WriteYAML edge cases
// =============================================================================

func TestWriteYAML_NonExistentDirReturnsError(t *testing.T) {
	cfg := NewConfig()
	err := cfg.WriteYAML(filepath.Join(os.TempDir(), "roux-missing-dir-xyz", "config.yaml"))
	require.Error(t, err)
}

func TestWriteYAML_OverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".roux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale: true\n"), 0o644))

	cfg := NewConfig()
	cfg.Server.LogLevel = "error"
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", loaded.Server.LogLevel)
}
