package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
app:
  name: stock_go
api:
  hantu:
    ws_url: "ws://localhost:9999/ws"
    symbols: ["005930"]
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Market.Timezone != "Asia/Seoul" {
		t.Errorf("expected default timezone Asia/Seoul, got %s", cfg.Market.Timezone)
	}
	if cfg.ScanInterval() != time.Second {
		t.Errorf("expected default scan interval 1s, got %v", cfg.ScanInterval())
	}
	if cfg.BatchTimeout() != 30*time.Second {
		t.Errorf("expected default batch timeout 30s, got %v", cfg.BatchTimeout())
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("expected default driver sqlite, got %s", cfg.DB.Driver)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STOCK_HANTU_APP_KEY", "env-key")
	t.Setenv("STOCK_HANTU_APP_SECRET", "env-secret")
	t.Setenv("STOCK_DB_DSN", "env-dsn")

	cfg, err := LoadConfig(writeConfigFile(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.Hantu.AppKey != "env-key" {
		t.Errorf("expected env app key, got %s", cfg.API.Hantu.AppKey)
	}
	if cfg.API.Hantu.AppSecret != "env-secret" {
		t.Errorf("expected env app secret, got %s", cfg.API.Hantu.AppSecret)
	}
	if cfg.DB.DSN != "env-dsn" {
		t.Errorf("expected env DSN, got %s", cfg.DB.DSN)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing ws url", `
api:
  hantu:
    symbols: ["005930"]
`},
		{"http scheme", `
api:
  hantu:
    ws_url: "http://localhost/ws"
    symbols: ["005930"]
`},
		{"no symbols", `
api:
  hantu:
    ws_url: "wss://localhost/ws"
`},
		{"bad timezone", `
api:
  hantu:
    ws_url: "wss://localhost/ws"
    symbols: ["005930"]
market:
  timezone: "Mars/Olympus"
`},
		{"bad driver", `
api:
  hantu:
    ws_url: "wss://localhost/ws"
    symbols: ["005930"]
db:
  driver: "oracle"
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfigFile(t, tc.content)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
