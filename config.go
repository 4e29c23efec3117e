// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
)

// Environment overrides applied by LoadConfig.
const (
	EnvPort      = "IPC_PORT"
	EnvTimeoutMs = "IPC_TIMEOUT_MS"
	EnvLogLevel  = "IPC_LOG_LEVEL"
)

// maxUDPPayload is the largest IPv4 UDP payload.
const maxUDPPayload = 65507

// Config describes one IPC process. Zero addresses disable the matching
// listener; a zero port means the process only sends.
type Config struct {
	Port             int    `toml:"port"`
	TimeoutMs        int    `toml:"timeout_ms"`
	RegistryCapacity int    `toml:"registry_capacity"`
	MaxDatagram      int    `toml:"max_datagram"`
	HandlerQueue     int    `toml:"handler_queue"`
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	BridgeAddr       string `toml:"bridge_addr"`
	HealthAddr       string `toml:"health_addr"`
	MetricsAddr      string `toml:"metrics_addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutMs:        int(DefaultTimeout / time.Millisecond),
		RegistryCapacity: DefaultRegistryCapacity,
		MaxDatagram:      MaxDatagramSize,
		LogLevel:         "info",
	}
}

// LoadConfig reads a TOML file over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadConfig is LoadConfig without validation, for callers that apply
// their own overrides first.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				keys := make([]string, 0, len(strict.Errors))
				for _, e := range strict.Errors {
					keys = append(keys, strings.Join(e.Key(), "."))
				}
				return cfg, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
			}
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeoutMs, err)
		}
		c.TimeoutMs = ms
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks ranges and the log level.
func (c Config) Validate() error {
	var errs []error
	if c.Port != 0 && !ValidPort(c.Port) {
		errs = append(errs, fmt.Errorf("port: %w: %d", ErrInvalidPort, c.Port))
	}
	if c.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("timeout_ms: must not be negative"))
	}
	if c.RegistryCapacity < 0 {
		errs = append(errs, fmt.Errorf("registry_capacity: must not be negative"))
	}
	if c.MaxDatagram < 0 || c.MaxDatagram > maxUDPPayload {
		errs = append(errs, fmt.Errorf("max_datagram: must be between 0 and %d", maxUDPPayload))
	}
	if c.HandlerQueue < 0 {
		errs = append(errs, fmt.Errorf("handler_queue: must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel, defaulting to info.
func (c Config) Level() (zapcore.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
}

// Timeout returns the request timeout, falling back to DefaultTimeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Options converts the config into endpoint and requester options.
func (c Config) Options() []Option {
	opts := []Option{
		WithDefaultTimeout(c.Timeout()),
		WithRegistryCapacity(c.RegistryCapacity),
		WithHandlerQueue(c.HandlerQueue),
	}
	if c.MaxDatagram > 0 {
		opts = append(opts, WithMaxDatagram(c.MaxDatagram))
	}
	return opts
}
