// Package config loads the daemon settings from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/watcher"
	"gopkg.in/yaml.v3"
)

// Commit modes
const (
	ModePacman = "pacman"
	ModeLog    = "log"
)

// Config is the complete daemon configuration
type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Commit CommitConfig `yaml:"commit"`
}

// WatchConfig controls how the directory is observed
type WatchConfig struct {
	Dir      string          `yaml:"dir"`
	Backend  watcher.Backend `yaml:"backend"`
	Sentinel string          `yaml:"sentinel"`
	Workers  int             `yaml:"workers"`

	// Rescan is a pointer so that an explicit false survives defaulting
	Rescan *bool `yaml:"rescan"`
}

// CommitConfig controls what happens to ready packages
type CommitConfig struct {
	Mode string `yaml:"mode"`

	models.RepositoryConfig `yaml:",inline"`
}

// Load reads the configuration file at path. Environment variables in the
// file are expanded. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &models.Error{
				Type: models.ErrInvalidConfig,
				Err:  fmt.Errorf("failed to read config: %w", err),
			}
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, &models.Error{
				Type: models.ErrInvalidConfig,
				Err:  fmt.Errorf("failed to parse %s: %w", path, err),
			}
		}
	}
	return cfg, nil
}

// ApplyDefaults fills in unset values
func (c *Config) ApplyDefaults() {
	if c.Watch.Dir == "" {
		c.Watch.Dir = "."
	}
	if c.Watch.Backend == "" {
		c.Watch.Backend = DefaultBackend()
	}
	if c.Watch.Sentinel == "" {
		c.Watch.Sentinel = "DONE"
	}
	if c.Watch.Workers <= 0 {
		c.Watch.Workers = runtime.NumCPU()
	}
	if c.Watch.Rescan == nil {
		rescan := true
		c.Watch.Rescan = &rescan
	}

	if c.Commit.Mode == "" {
		c.Commit.Mode = ModePacman
	}
	if c.Commit.Compression == models.CompressionNone {
		c.Commit.Compression = models.CompressionZstd
	}
	if c.Commit.RepoName == "" {
		if abs, err := filepath.Abs(c.Watch.Dir); err == nil {
			c.Commit.RepoName = filepath.Base(abs)
		}
	}
	c.Commit.PoolDir = c.Watch.Dir
	if c.Commit.DBDir == "" {
		c.Commit.DBDir = c.Watch.Dir
	}
}

// Validate checks the configuration once defaults are applied
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return &models.Error{Type: models.ErrInvalidConfig, Err: fmt.Errorf(format, args...)}
	}

	info, err := os.Stat(c.Watch.Dir)
	if err != nil {
		return invalid("watch directory: %w", err)
	}
	if !info.IsDir() {
		return invalid("watch directory %s is not a directory", c.Watch.Dir)
	}

	switch c.Watch.Backend {
	case watcher.BackendInotify, watcher.BackendFsnotify:
	default:
		return invalid("unknown watch backend %q", c.Watch.Backend)
	}

	if c.Watch.Sentinel == "" || filepath.Base(c.Watch.Sentinel) != c.Watch.Sentinel {
		return invalid("sentinel %q must be a plain filename", c.Watch.Sentinel)
	}

	switch c.Commit.Mode {
	case ModePacman, ModeLog:
	default:
		return invalid("unknown commit mode %q", c.Commit.Mode)
	}

	switch c.Commit.Compression {
	case models.CompressionZstd, models.CompressionXz, models.CompressionGzip:
	default:
		return invalid("unsupported database compression %q", c.Commit.Compression)
	}

	if c.Commit.Mode == ModePacman && c.Commit.RepoName == "" {
		return invalid("repo_name is required")
	}

	return nil
}

// DefaultBackend returns inotify on Linux and fsnotify elsewhere
func DefaultBackend() watcher.Backend {
	if runtime.GOOS == "linux" {
		return watcher.BackendInotify
	}
	return watcher.BackendFsnotify
}
