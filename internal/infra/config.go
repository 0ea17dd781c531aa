package infra

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Hantu struct {
			WSURL     string   `yaml:"ws_url"`
			RestURL   string   `yaml:"rest_url"`
			AppKey    string   `yaml:"app_key"`
			AppSecret string   `yaml:"app_secret"`
			Symbols   []string `yaml:"symbols"`
		} `yaml:"hantu"`
	} `yaml:"api"`

	Market struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"market"`

	Scheduler struct {
		ScanIntervalMS  int `yaml:"scan_interval_ms"`
		BatchTimeoutSec int `yaml:"batch_timeout_sec"`
	} `yaml:"scheduler"`

	DB struct {
		Driver string `yaml:"driver"` // "postgres" or "sqlite"
		DSN    string `yaml:"dsn"`
	} `yaml:"db"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.API.Hantu.WSURL == "" || (!hasPrefix(c.API.Hantu.WSURL, "ws://") && !hasPrefix(c.API.Hantu.WSURL, "wss://")) {
		return fmt.Errorf("invalid Hantu WS URL: %s", c.API.Hantu.WSURL)
	}
	if len(c.API.Hantu.Symbols) == 0 {
		return fmt.Errorf("at least one stock symbol is required")
	}

	if c.Market.Timezone == "" {
		c.Market.Timezone = "Asia/Seoul"
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("invalid market timezone %q: %w", c.Market.Timezone, err)
	}

	if c.Scheduler.ScanIntervalMS <= 0 {
		c.Scheduler.ScanIntervalMS = 1000
	}
	if c.Scheduler.BatchTimeoutSec <= 0 {
		c.Scheduler.BatchTimeoutSec = 30
	}

	switch c.DB.Driver {
	case "postgres", "sqlite":
	case "":
		c.DB.Driver = "sqlite"
	default:
		return fmt.Errorf("unsupported db driver: %s", c.DB.Driver)
	}

	return nil
}

// ScanInterval returns the limit order scan period.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scheduler.ScanIntervalMS) * time.Millisecond
}

// BatchTimeout returns how long one scan waits for its batch.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.Scheduler.BatchTimeoutSec) * time.Second
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("STOCK_HANTU_APP_KEY"); key != "" {
		cfg.API.Hantu.AppKey = key
	}
	if secret := os.Getenv("STOCK_HANTU_APP_SECRET"); secret != "" {
		cfg.API.Hantu.AppSecret = secret
	}
	if dsn := os.Getenv("STOCK_DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
	}
}
