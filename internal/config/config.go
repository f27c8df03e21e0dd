// Package config loads the Roux configuration: vault root, cache location,
// watcher tuning, and vector-provider backend selection. Precedence is
// defaults, then a project file, then environment variables, mirroring the
// teacher's layered config loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete Roux configuration.
type Config struct {
	Version int            `yaml:"version" json:"version"`
	Vault   VaultConfig    `yaml:"vault" json:"vault"`
	Watcher WatcherConfig  `yaml:"watcher" json:"watcher"`
	Vector  VectorConfig   `yaml:"vector" json:"vector"`
	Server  ServerConfig   `yaml:"server" json:"server"`
	Logging LoggingConfig  `yaml:"logging" json:"logging"`
}

// VaultConfig configures the indexed directory tree.
type VaultConfig struct {
	Root             string   `yaml:"root" json:"root"`
	CacheDir         string   `yaml:"cache_dir" json:"cache_dir"`
	Extensions       []string `yaml:"extensions" json:"extensions"`
	ExcludedDirs     []string `yaml:"excluded_dirs" json:"excluded_dirs"`
	PendingUnlinkTTL string   `yaml:"pending_unlink_ttl" json:"pending_unlink_ttl"`
}

// WatcherConfig configures the filesystem watcher's debounce behavior.
type WatcherConfig struct {
	DebounceMS int  `yaml:"debounce_ms" json:"debounce_ms"`
	Enabled    bool `yaml:"enabled" json:"enabled"`
}

// VectorConfig selects and configures the external vector/embedding
// provider. Backend "none" (the default) runs with vector.NoopProvider:
// search always reports PROVIDER_ERROR, writes are no-ops.
type VectorConfig struct {
	Backend      string `yaml:"backend" json:"backend"` // "none" or "http"
	Endpoint     string `yaml:"endpoint" json:"endpoint"`
	Model        string `yaml:"model" json:"model"`
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`
}

// ServerConfig configures `roux serve`, the long-running process that keeps
// the watcher and dispatcher alive.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// LoggingConfig configures the rotating file writer under the cache
// directory's logs subdirectory.
type LoggingConfig struct {
	MaxSizeMB int  `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int  `yaml:"max_files" json:"max_files"`
	ToStderr  bool `yaml:"to_stderr" json:"to_stderr"`
}

// defaultExcludedDirs is the fixed set spec §6 names; Config.Vault.ExcludedDirs
// starts here but can be extended (never replaced) by a project file.
var defaultExcludedDirs = []string{".roux", "node_modules", ".git", ".obsidian"}

// defaultExtensions is the default registry's supported file extensions.
var defaultExtensions = []string{".md", ".markdown"}

// NewConfig returns a Config populated with Roux's defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Vault: VaultConfig{
			Root:             ".",
			CacheDir:         ".roux",
			Extensions:       append([]string(nil), defaultExtensions...),
			ExcludedDirs:     append([]string(nil), defaultExcludedDirs...),
			PendingUnlinkTTL: "5s",
		},
		Watcher: WatcherConfig{
			DebounceMS: 1000,
			Enabled:    true,
		},
		Vector: VectorConfig{
			Backend:        "none",
			RequestTimeout: "10s",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
		Logging: LoggingConfig{
			MaxSizeMB: 10,
			MaxFiles:  5,
			ToStderr:  false,
		},
	}
}

// CacheDBPath returns the absolute path to the SQLite cache file under the
// vault's configured cache directory.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Vault.Root, c.Vault.CacheDir, "cache.db")
}

// LogDir returns the absolute path to the rotating log directory under the
// vault's cache directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.Vault.Root, c.Vault.CacheDir, "logs")
}

// PendingUnlinkTTLDuration parses Vault.PendingUnlinkTTL, falling back to
// docstore.DefaultPendingUnlinkTTL's 5s on a malformed value.
func (c *Config) PendingUnlinkTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Vault.PendingUnlinkTTL)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// Load builds the effective Config for dir: defaults, then dir/.roux.yaml
// (or .roux.yml) if present, then ROUX_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()
	cfg.Vault.Root = dir

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile merges dir/.roux.yaml, or dir/.roux.yml as a fallback, into c.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".roux.yaml", ".roux.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

// mergeWith merges other's explicitly-set (non-zero) fields into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Vault.Root != "" {
		c.Vault.Root = other.Vault.Root
	}
	if other.Vault.CacheDir != "" {
		c.Vault.CacheDir = other.Vault.CacheDir
	}
	if len(other.Vault.Extensions) > 0 {
		c.Vault.Extensions = other.Vault.Extensions
	}
	if len(other.Vault.ExcludedDirs) > 0 {
		// Project config extends the fixed set rather than replacing it.
		c.Vault.ExcludedDirs = append(c.Vault.ExcludedDirs, other.Vault.ExcludedDirs...)
	}
	if other.Vault.PendingUnlinkTTL != "" {
		c.Vault.PendingUnlinkTTL = other.Vault.PendingUnlinkTTL
	}

	if other.Watcher.DebounceMS != 0 {
		c.Watcher.DebounceMS = other.Watcher.DebounceMS
	}

	if other.Vector.Backend != "" {
		c.Vector.Backend = other.Vector.Backend
	}
	if other.Vector.Endpoint != "" {
		c.Vector.Endpoint = other.Vector.Endpoint
	}
	if other.Vector.Model != "" {
		c.Vector.Model = other.Vector.Model
	}
	if other.Vector.RequestTimeout != "" {
		c.Vector.RequestTimeout = other.Vector.RequestTimeout
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
	if other.Logging.ToStderr {
		c.Logging.ToStderr = true
	}
}

// applyEnvOverrides applies ROUX_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROUX_VAULT_ROOT"); v != "" {
		c.Vault.Root = v
	}
	if v := os.Getenv("ROUX_CACHE_DIR"); v != "" {
		c.Vault.CacheDir = v
	}
	if v := os.Getenv("ROUX_PENDING_UNLINK_TTL"); v != "" {
		c.Vault.PendingUnlinkTTL = v
	}
	if v := os.Getenv("ROUX_WATCH_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Watcher.DebounceMS = ms
		}
	}
	if v := os.Getenv("ROUX_VECTOR_BACKEND"); v != "" {
		c.Vector.Backend = v
	}
	if v := os.Getenv("ROUX_VECTOR_ENDPOINT"); v != "" {
		c.Vector.Endpoint = v
	}
	if v := os.Getenv("ROUX_VECTOR_MODEL"); v != "" {
		c.Vector.Model = v
	}
	if v := os.Getenv("ROUX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks the effective configuration for internally-inconsistent
// values.
func (c *Config) Validate() error {
	if c.Watcher.DebounceMS < 0 {
		return fmt.Errorf("watcher.debounce_ms must be non-negative, got %d", c.Watcher.DebounceMS)
	}
	if _, err := time.ParseDuration(c.Vault.PendingUnlinkTTL); err != nil {
		return fmt.Errorf("vault.pending_unlink_ttl must be a valid duration, got %q: %w", c.Vault.PendingUnlinkTTL, err)
	}

	validBackends := map[string]bool{"none": true, "http": true}
	if !validBackends[strings.ToLower(c.Vector.Backend)] {
		return fmt.Errorf("vector.backend must be 'none' or 'http', got %s", c.Vector.Backend)
	}
	if c.Vector.Backend == "http" && c.Vector.Endpoint == "" {
		return fmt.Errorf("vector.endpoint is required when vector.backend is 'http'")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file, for `roux config init`.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindVaultRoot walks up from startDir looking for a .git directory or a
// .roux.yaml/.roux.yml file, falling back to startDir itself.
func FindVaultRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".roux.yaml")) || fileExists(filepath.Join(currentDir, ".roux.yml")) {
			return currentDir, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
