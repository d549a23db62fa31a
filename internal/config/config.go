// Package config loads service configuration from an optional YAML file
// with LOPPER_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can spell it "90s" or "2m".
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds everything the CLI and the service surfaces need.
type Config struct {
	// ModuleRoot is the project-relative directory feature modules
	// live under.
	ModuleRoot string `yaml:"module_root"`
	// Extensions lists the source file extensions scanned for
	// references.
	Extensions []string `yaml:"extensions"`
	// ScanWorkers bounds the parallel reference scan.
	ScanWorkers int `yaml:"scan_workers"`
	// RequestTimeout bounds one excision request; zero disables it.
	RequestTimeout Duration `yaml:"request_timeout"`
	// CloneDir is where provisioned working copies are checked out.
	CloneDir string `yaml:"clone_dir"`
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// JournalPath is the SQLite operation journal location.
	JournalPath string `yaml:"journal_path"`
	// LogLevel configures the root logger (loggo level name).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ModuleRoot:     "src/app",
		Extensions:     []string{".ts"},
		ScanWorkers:    runtime.NumCPU(),
		RequestTimeout: Duration(2 * time.Minute),
		CloneDir:       "clones",
		Addr:           ":8080",
		JournalPath:    "lopper.db",
		LogLevel:       "warning",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (or $LOPPER_CONFIG when path is empty; no file at all is fine), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("LOPPER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = runtime.NumCPU()
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOPPER_MODULE_ROOT"); v != "" {
		c.ModuleRoot = v
	}
	if v := os.Getenv("LOPPER_CLONE_DIR"); v != "" {
		c.CloneDir = v
	}
	if v := os.Getenv("LOPPER_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("LOPPER_DB"); v != "" {
		c.JournalPath = v
	}
}
