package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != "8080" || cfg.Responder != "canned" || cfg.MessageRateLimit != 20 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SessionIdleTTL() != 0 {
		t.Fatalf("expected sweeper disabled by default")
	}
}

func TestLoadConfig_OriginPatterns(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("WS_ORIGIN_PATTERNS", "www.agency.test,*.agency.test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.WSOriginPatterns) != 2 || cfg.WSOriginPatterns[1] != "*.agency.test" {
		t.Fatalf("unexpected origin patterns %#v", cfg.WSOriginPatterns)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "postgres without url", cfg: Config{StoreDriver: DriverPostgres, Responder: "canned"}, wantErr: true},
		{name: "postgres with url", cfg: Config{StoreDriver: DriverPostgres, DatabaseURL: "postgres://x", Responder: "canned"}},
		{name: "sqlite", cfg: Config{StoreDriver: DriverSQLite, SQLitePath: "chat.db", Responder: "canned"}},
		{name: "unknown driver", cfg: Config{StoreDriver: "mysql", Responder: "canned"}, wantErr: true},
		{name: "llm without key", cfg: Config{StoreDriver: DriverMemory, Responder: "llm"}, wantErr: true},
		{name: "unknown responder", cfg: Config{StoreDriver: DriverMemory, Responder: "human"}, wantErr: true},
		{name: "negative rate", cfg: Config{StoreDriver: DriverMemory, Responder: "canned", MessageRateLimit: -1}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestSessionIdleTTL(t *testing.T) {
	cfg := Config{SessionIdleTTLMinutes: 30}
	if cfg.SessionIdleTTL() != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", cfg.SessionIdleTTL())
	}
}
