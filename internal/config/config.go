// Package config loads the static process configuration: everything the
// server needs that is not a routing document.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/projectcontour/contour-sub001/internal/graph"
)

type rawConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Store struct {
		Directory string `yaml:"directory"`
	} `yaml:"store"`

	Graph struct {
		RouteSortMode    string `yaml:"route_sort_mode"`
		DefaultHTTPPort  int    `yaml:"default_http_port"`
		DefaultHTTPSPort int    `yaml:"default_https_port"`
		RebuildHoldoff   string `yaml:"rebuild_holdoff"`
	} `yaml:"graph"`

	Status struct {
		WritesPerSecond float64 `yaml:"writes_per_second"`
	} `yaml:"status"`

	Metrics struct {
		Address string `yaml:"address"`
	} `yaml:"metrics"`

	Debug struct {
		Address string `yaml:"address"`
	} `yaml:"debug"`
}

// Config is the validated static configuration.
type Config struct {
	LogLevel string
	LogJSON  bool

	// StoreDirectory holds the routing documents. The server checks it
	// at startup, after flag overrides land.
	StoreDirectory string

	RouteSortMode    graph.SortMode
	DefaultHTTPPort  int
	DefaultHTTPSPort int
	RebuildHoldoff   time.Duration

	// StatusWritesPerSecond caps status sink writes. Zero leaves the
	// rate uncapped.
	StatusWritesPerSecond float64

	// MetricsAddress and DebugAddress are listen addresses; empty
	// disables the server.
	MetricsAddress string
	DebugAddress   string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		DefaultHTTPPort:  80,
		DefaultHTTPSPort: 443,
		RebuildHoldoff:   100 * time.Millisecond,
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse builds a Config from YAML, applying defaults for everything the
// file leaves unset.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	cfg := Default()

	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	switch raw.LogFormat {
	case "", "standard":
	case "json":
		cfg.LogJSON = true
	default:
		return nil, fmt.Errorf("log_format: unknown format %q", raw.LogFormat)
	}

	cfg.StoreDirectory = raw.Store.Directory

	mode, err := graph.ParseSortMode(raw.Graph.RouteSortMode)
	if err != nil {
		return nil, fmt.Errorf("graph.route_sort_mode: %w", err)
	}
	cfg.RouteSortMode = mode

	if raw.Graph.DefaultHTTPPort != 0 {
		cfg.DefaultHTTPPort = raw.Graph.DefaultHTTPPort
	}
	if raw.Graph.DefaultHTTPSPort != 0 {
		cfg.DefaultHTTPSPort = raw.Graph.DefaultHTTPSPort
	}
	if raw.Graph.RebuildHoldoff != "" {
		holdoff, err := time.ParseDuration(raw.Graph.RebuildHoldoff)
		if err != nil {
			return nil, fmt.Errorf("graph.rebuild_holdoff: %v", err)
		}
		cfg.RebuildHoldoff = holdoff
	}

	cfg.StatusWritesPerSecond = raw.Status.WritesPerSecond
	cfg.MetricsAddress = raw.Metrics.Address
	cfg.DebugAddress = raw.Debug.Address

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration, not just the
// first one found.
func (c *Config) Validate() error {
	var result *multierror.Error
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.DefaultHTTPPort < 1 || c.DefaultHTTPPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("graph.default_http_port: %d out of range", c.DefaultHTTPPort))
	}
	if c.DefaultHTTPSPort < 1 || c.DefaultHTTPSPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("graph.default_https_port: %d out of range", c.DefaultHTTPSPort))
	}
	if c.DefaultHTTPPort == c.DefaultHTTPSPort {
		result = multierror.Append(result, fmt.Errorf("default ports must differ, both are %d", c.DefaultHTTPPort))
	}
	if c.RebuildHoldoff <= 0 {
		result = multierror.Append(result, fmt.Errorf("graph.rebuild_holdoff: must be positive, got %s", c.RebuildHoldoff))
	}
	if c.StatusWritesPerSecond < 0 {
		result = multierror.Append(result, fmt.Errorf("status.writes_per_second: must not be negative"))
	}
	return result.ErrorOrNil()
}
