// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads workgraph configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
)

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WORKGRAPH_"

var validate = validator.New()

// Config is the root configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and locates the relation store.
type StoreConfig struct {
	Driver     string `yaml:"driver" validate:"required,oneof=badger sqlite"`
	Path       string `yaml:"path" validate:"required_without=InMemory"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// ResolverConfig controls workability resolution.
type ResolverConfig struct {
	Strategy     string        `yaml:"strategy" validate:"oneof=staged pushdown"`
	Policy       string        `yaml:"policy" validate:"oneof=consolidated legacy"`
	LoadTimeout  time.Duration `yaml:"load_timeout" validate:"gt=0"`
	DefaultLimit int           `yaml:"default_limit" validate:"gte=0"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port      int     `yaml:"port" validate:"min=1,max=65535"`
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// DefaultConfig returns a configuration that works with no file present:
// a badger store under ~/.workgraph and the staged, consolidated resolver.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver:     "badger",
			Path:       filepath.Join(DefaultDir(), "data"),
			SyncWrites: true,
		},
		Resolver: ResolverConfig{
			Strategy:     string(resolver.StrategyStaged),
			Policy:       string(action.PolicyConsolidated),
			LoadTimeout:  resolver.DefaultLoadTimeout,
			DefaultLimit: 50,
		},
		Server: ServerConfig{
			Port:      8095,
			RateLimit: 20,
			Burst:     40,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "workgraph",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
	}
}

// DefaultDir is ~/.workgraph, or ./.workgraph when no home is available.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".workgraph"
	}
	return filepath.Join(home, ".workgraph")
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "workgraph.yaml")
}

// Load reads path over DefaultConfig, applies environment overrides and
// validates the result.
//
// Description:
//
//	A missing file is not an error; defaults apply. An empty path means
//	DefaultPath. Fields absent from the file keep their defaults.
//
// Outputs:
//
//	Config - The effective configuration.
//	error - Wraps ErrInvalidConfig on parse or validation failure.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes DefaultConfig to path, creating parent directories.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolverSettings converts the resolver section.
func (c Config) ResolverSettings() (resolver.Config, error) {
	strategy, err := resolver.ParseStrategy(c.Resolver.Strategy)
	if err != nil {
		return resolver.Config{}, err
	}
	policy, err := action.ParsePolicy(c.Resolver.Policy)
	if err != nil {
		return resolver.Config{}, fmt.Errorf("%w: %w", resolver.ErrUnknownPolicy, err)
	}
	return resolver.Config{
		Strategy:    strategy,
		Policy:      policy,
		LoadTimeout: c.Resolver.LoadTimeout,
	}, nil
}

// applyEnv overlays WORKGRAPH_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_PATH", &cfg.Store.Path)
	boolean("STORE_IN_MEMORY", &cfg.Store.InMemory)
	str("RESOLVER_STRATEGY", &cfg.Resolver.Strategy)
	str("RESOLVER_POLICY", &cfg.Resolver.Policy)
	if v, ok := lookup(EnvPrefix + "RESOLVER_LOAD_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRESOLVER_LOAD_TIMEOUT: %w", EnvPrefix, err))
		} else {
			cfg.Resolver.LoadTimeout = d
		}
	}
	integer("SERVER_PORT", &cfg.Server.Port)
	str("LOG_LEVEL", &cfg.Logging.Level)
	boolean("LOG_JSON", &cfg.Logging.JSON)
	str("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	str("TRACE_EXPORTER", &cfg.Telemetry.TraceExporter)

	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
