// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ipc.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("got %+v, want defaults %+v", cfg, DefaultConfig())
	}
	if cfg.Timeout() != DefaultTimeout {
		t.Errorf("timeout: got %s, want %s", cfg.Timeout(), DefaultTimeout)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
port = 7001
timeout_ms = 1500
registry_capacity = 8
handler_queue = 4
log_level = "debug"
health_addr = "127.0.0.1:7002"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 7001 || cfg.RegistryCapacity != 8 || cfg.HandlerQueue != 4 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Timeout() != 1500*time.Millisecond {
		t.Errorf("timeout: got %s, want 1.5s", cfg.Timeout())
	}
	if cfg.MaxDatagram != MaxDatagramSize {
		t.Errorf("max_datagram: got %d, want default %d", cfg.MaxDatagram, MaxDatagramSize)
	}
	if cfg.HealthAddr != "127.0.0.1:7002" {
		t.Errorf("got %q, want %q", cfg.HealthAddr, "127.0.0.1:7002")
	}
	if len(cfg.Options()) == 0 {
		t.Error("Options returned nothing")
	}
}

func TestLoadConfigUnknownField(t *testing.T) {
	path := writeConfig(t, "port = 7001\nportt = 7002\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "portt") {
		t.Fatalf("got %v, want an error naming the unknown key", err)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv(EnvPort, "9100")
	t.Setenv(EnvTimeoutMs, "250")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := LoadConfig(writeConfig(t, "port = 7001\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9100 || cfg.TimeoutMs != 250 || cfg.LogLevel != "warn" {
		t.Errorf("got %+v, want env overrides", cfg)
	}

	t.Setenv(EnvPort, "seventy")
	if _, err := LoadConfig(""); err == nil {
		t.Error("non-numeric port accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 65535
	cfg.TimeoutMs = -1
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidPort) {
		t.Errorf("got %v, want ErrInvalidPort", err)
	}
	for _, want := range []string{"timeout_ms", "log_level"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("error %v does not mention %s", err, want)
		}
	}
}

func TestReadConfigSkipsValidation(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")

	if _, err := LoadConfig(""); err == nil {
		t.Error("LoadConfig accepted an invalid log level")
	}
	cfg, err := ReadConfig("")
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.LogLevel != "loud" {
		t.Errorf("got %q, want the env value", cfg.LogLevel)
	}
}
