package authflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Timeouts.Interactive != 15*time.Second || cfg.Timeouts.SessionRestore != 30*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Timeouts)
	}
	if cfg.Session.Key != "user_session_token" {
		t.Fatalf("unexpected session key %q", cfg.Session.Key)
	}
	if cfg.Gateway.MaxRetries != 3 || cfg.Gateway.RetryBaseDelay != 300*time.Millisecond {
		t.Fatalf("unexpected retry policy: %+v", cfg.Gateway)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "interactive timeout zero invalid",
			mutate: func(c *Config) {
				c.Timeouts.Interactive = 0
			},
			wantValid: false,
		},
		{
			name: "session restore negative invalid",
			mutate: func(c *Config) {
				c.Timeouts.SessionRestore = -time.Second
			},
			wantValid: false,
		},
		{
			name: "empty session key invalid",
			mutate: func(c *Config) {
				c.Session.Key = ""
			},
			wantValid: false,
		},
		{
			name: "redis backend valid",
			mutate: func(c *Config) {
				c.Session.Backend = StoreRedis
			},
			wantValid: true,
		},
		{
			name: "sqlite backend without path invalid",
			mutate: func(c *Config) {
				c.Session.Backend = StoreSQLite
				c.Session.SQLitePath = ""
			},
			wantValid: false,
		},
		{
			name: "unknown backend invalid",
			mutate: func(c *Config) {
				c.Session.Backend = "etcd"
			},
			wantValid: false,
		},
		{
			name: "https base url valid",
			mutate: func(c *Config) {
				c.Gateway.BaseURL = "https://api.example.com"
			},
			wantValid: true,
		},
		{
			name: "ftp base url invalid",
			mutate: func(c *Config) {
				c.Gateway.BaseURL = "ftp://api.example.com"
			},
			wantValid: false,
		},
		{
			name: "negative retries invalid",
			mutate: func(c *Config) {
				c.Gateway.MaxRetries = -1
			},
			wantValid: false,
		},
		{
			name: "zero retries valid",
			mutate: func(c *Config) {
				c.Gateway.MaxRetries = 0
			},
			wantValid: true,
		},
		{
			name: "negative refresh leeway invalid",
			mutate: func(c *Config) {
				c.Refresh.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "rate limit window zero invalid",
			mutate: func(c *Config) {
				c.RateLimit.Window = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit window ignored when disabled",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Window = 0
			},
			wantValid: true,
		},
		{
			name: "negative otp length invalid",
			mutate: func(c *Config) {
				c.Validation.OTPLength = -1
			},
			wantValid: false,
		},
		{
			name: "audit buffer zero invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "latency without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestLoadConfigFromEnvOverlaysDefaults(t *testing.T) {
	cfg, err := loadConfigFromEnv(map[string]string{
		"AUTHFLOW_GATEWAY_BASE_URL":         "http://127.0.0.1:8080",
		"AUTHFLOW_GATEWAY_MAX_RETRIES":      "1",
		"AUTHFLOW_GATEWAY_ENDPOINT_LOGIN":   "/v2/login",
		"AUTHFLOW_TIMEOUT_INTERACTIVE":      "5s",
		"AUTHFLOW_SESSION_BACKEND":          "sqlite",
		"AUTHFLOW_SESSION_SQLITE_PATH":      "/tmp/af.db",
		"AUTHFLOW_RATE_LIMIT_ENABLED":       "false",
		"AUTHFLOW_VALIDATION_OTP_LENGTH":    "4",
		"UNRELATED_TIMEOUT_INTERACTIVE":     "1s",
		"AUTHFLOW_METRICS_ENABLED":          "true",
		"AUTHFLOW_REFRESH_LEEWAY":           "1m",
		"AUTHFLOW_AUDIT_DROP_IF_FULL":       "false",
		"AUTHFLOW_SESSION_REDIS_PREFIX":     "x:",
		"AUTHFLOW_GATEWAY_RETRY_BASE_DELAY": "50ms",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Gateway.BaseURL != "http://127.0.0.1:8080" || cfg.Gateway.MaxRetries != 1 {
		t.Fatalf("gateway not loaded: %+v", cfg.Gateway)
	}
	if cfg.Gateway.Endpoints.Login != "/v2/login" {
		t.Fatalf("endpoint not loaded: %q", cfg.Gateway.Endpoints.Login)
	}
	if cfg.Gateway.Endpoints.Logout != "/auth/logout" {
		t.Fatalf("unset endpoint lost its default: %q", cfg.Gateway.Endpoints.Logout)
	}
	if cfg.Timeouts.Interactive != 5*time.Second || cfg.Timeouts.SessionRestore != 30*time.Second {
		t.Fatalf("timeouts not overlaid: %+v", cfg.Timeouts)
	}
	if cfg.Session.Backend != StoreSQLite || cfg.Session.SQLitePath != "/tmp/af.db" || cfg.Session.RedisPrefix != "x:" {
		t.Fatalf("session not loaded: %+v", cfg.Session)
	}
	if cfg.RateLimit.Enabled || cfg.Validation.OTPLength != 4 || cfg.Refresh.Leeway != time.Minute {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Gateway.RetryBaseDelay != 50*time.Millisecond || cfg.Audit.DropIfFull {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigFromEnvRejectsInvalid(t *testing.T) {
	if _, err := loadConfigFromEnv(map[string]string{"AUTHFLOW_TIMEOUT_INTERACTIVE": "soon"}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := loadConfigFromEnv(map[string]string{"AUTHFLOW_GATEWAY_MAX_RETRIES": "-2"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authflow.yaml")
	doc := `
timeouts:
  interactive: 2s
gateway:
  base_url: https://auth.example.com
  endpoints:
    profile: /users/me
refresh:
  enabled: false
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timeouts.Interactive != 2*time.Second || cfg.Timeouts.SessionRestore != 30*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Timeouts)
	}
	if cfg.Gateway.BaseURL != "https://auth.example.com" || cfg.Gateway.Endpoints.Profile != "/users/me" {
		t.Fatalf("unexpected gateway: %+v", cfg.Gateway)
	}
	if cfg.Gateway.Endpoints.Login != "/auth/login" {
		t.Fatalf("unset endpoint lost its default: %q", cfg.Gateway.Endpoints.Login)
	}
	if cfg.Refresh.Enabled {
		t.Fatal("expected refresh disabled")
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	if _, err := decodeConfig(strings.NewReader("timeouts:\n  interactve: 2s\n")); err == nil {
		t.Fatal("expected error for unknown key")
	}

	cfg, err := decodeConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if cfg.Session.Key != "user_session_token" {
		t.Fatalf("empty document must yield defaults, got %+v", cfg.Session)
	}
}
