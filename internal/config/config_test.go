package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.Redis.Addr = ""
	cfg.Quota.GuestDailyLimit = 0
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server: port", "redis: addr", "quota: guest_daily_limit", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateTelegramPairing(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "tok"

	if err := cfg.Validate(); err == nil {
		t.Error("token without chat id must fail validation")
	}

	cfg.Notify.TelegramChatID = "42"
	if err := cfg.Validate(); err != nil {
		t.Errorf("paired telegram credentials must validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PAPERTRADER_SERVER_PORT", "9999")
	t.Setenv("PAPERTRADER_POSTGRES_DSN", "postgres://env/dsn")
	t.Setenv("PAPERTRADER_POLLER_INTERVAL", "15s")
	t.Setenv("PAPERTRADER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PAPERTRADER_POLLER_ENABLED", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://env/dsn" {
		t.Errorf("dsn = %q", cfg.Postgres.DSN)
	}
	if cfg.Poller.Interval.Duration != 15*time.Second {
		t.Errorf("interval = %v, want 15s", cfg.Poller.Interval.Duration)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Poller.Enabled {
		t.Error("poller.enabled override not applied")
	}
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("PAPERTRADER_SERVER_PORT", "not-a-number")

	cfg := Defaults()
	applyEnvOverrides(&cfg)
	if cfg.Server.Port != Defaults().Server.Port {
		t.Errorf("garbage env value mutated port to %d", cfg.Server.Port)
	}
}
