package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path string, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "invalid", input: "trace", wantErr: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := parseLogLevel(testCase.input)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr {
				return
			}
			if got != testCase.want {
				t.Fatalf("level = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestApplyConfigFile(t *testing.T) {
	t.Run("loads all supported fields", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "gateway.json")
		writeConfigFile(t, configPath, `{
			"log_level":"warn",
			"listen":"127.0.0.1:9000",
			"shutdown_timeout":"15s",
			"session":{
				"dir":"state/sessions",
				"auto_connect":false
			},
			"telegram":{
				"api_id":123456,
				"api_hash":"sample_hash",
				"phone":"+15550001111"
			},
			"feed":{
				"ping_interval":"45s",
				"send_buffer":128
			}
		}`)

		cfg := defaultAppConfig()
		if err := applyConfigFile(&cfg, configPath); err != nil {
			t.Fatalf("applyConfigFile() error: %v", err)
		}

		if cfg.logLevel != slog.LevelWarn {
			t.Fatalf("log level = %v, want warn", cfg.logLevel)
		}
		if cfg.listenAddr != "127.0.0.1:9000" {
			t.Fatalf("listen = %q", cfg.listenAddr)
		}
		if cfg.sessionDir != "state/sessions" {
			t.Fatalf("session dir = %q", cfg.sessionDir)
		}
		if cfg.autoConnect {
			t.Fatal("auto_connect not applied")
		}
		if cfg.apiID != 123456 || cfg.apiHash != "sample_hash" || cfg.phone != "+15550001111" {
			t.Fatalf("credentials = %d %q %q", cfg.apiID, cfg.apiHash, cfg.phone)
		}
		if cfg.shutdownTimeout != 15*time.Second {
			t.Fatalf("shutdown timeout = %v", cfg.shutdownTimeout)
		}
		if cfg.pingInterval != 45*time.Second || cfg.sendBuffer != 128 {
			t.Fatalf("feed settings = %v %d", cfg.pingInterval, cfg.sendBuffer)
		}
	})

	t.Run("keeps defaults for omitted fields", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "gateway.json")
		writeConfigFile(t, configPath, `{"telegram":{"api_id":1,"api_hash":"h","phone":"+1"}}`)

		cfg := defaultAppConfig()
		if err := applyConfigFile(&cfg, configPath); err != nil {
			t.Fatalf("applyConfigFile() error: %v", err)
		}

		if cfg.listenAddr != defaultListenAddr {
			t.Fatalf("listen = %q, want default", cfg.listenAddr)
		}
		if cfg.shutdownTimeout != defaultShutdownTimeout {
			t.Fatalf("shutdown timeout = %v, want default", cfg.shutdownTimeout)
		}
		if !cfg.autoConnect {
			t.Fatal("auto_connect default lost")
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "gateway.json")
		writeConfigFile(t, configPath, `{not json`)

		cfg := defaultAppConfig()
		err := applyConfigFile(&cfg, configPath)
		if err == nil || !strings.Contains(err.Error(), "parse config file") {
			t.Fatalf("error = %v, want parse failure", err)
		}
	})

	t.Run("rejects non-positive durations", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "gateway.json")
		writeConfigFile(t, configPath, `{"shutdown_timeout":"-1s"}`)

		cfg := defaultAppConfig()
		if err := applyConfigFile(&cfg, configPath); err == nil {
			t.Fatal("expected error for negative shutdown_timeout")
		}
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(envAPIID, "654321")
	t.Setenv(envAPIHash, "env_hash")
	t.Setenv(envPhone, "+15559999")

	cfg := defaultAppConfig()
	cfg.apiID = 1
	cfg.apiHash = "file_hash"
	cfg.phone = "+10000000"

	if err := applyEnvOverrides(&cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error: %v", err)
	}
	if cfg.apiID != 654321 || cfg.apiHash != "env_hash" || cfg.phone != "+15559999" {
		t.Fatalf("env overrides not applied: %d %q %q", cfg.apiID, cfg.apiHash, cfg.phone)
	}
}

func TestApplyEnvOverridesRejectsBadAPIID(t *testing.T) {
	t.Setenv(envAPIID, "not-a-number")

	cfg := defaultAppConfig()
	if err := applyEnvOverrides(&cfg); err == nil {
		t.Fatal("expected error for malformed api id")
	}
}
