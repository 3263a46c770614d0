package authflow

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/session"
)

// Config holds every tunable of a [Client].
//
// Config instances are intended to be configured during initialization and then treated
// as immutable. Load one with [DefaultConfig], [LoadConfigFromEnv] or [LoadConfigFile].
type Config struct {
	Timeouts   TimeoutConfig    `yaml:"timeouts" envPrefix:"TIMEOUT_"`
	Session    SessionConfig    `yaml:"session" envPrefix:"SESSION_"`
	Gateway    GatewayConfig    `yaml:"gateway" envPrefix:"GATEWAY_"`
	Refresh    RefreshConfig    `yaml:"refresh" envPrefix:"REFRESH_"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Validation ValidationConfig `yaml:"validation" envPrefix:"VALIDATION_"`
	Audit      AuditConfig      `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
}

/*
====================================
TIMEOUT CONFIG
====================================
*/

// TimeoutConfig bounds how long a [Client] call waits for the machine to settle.
type TimeoutConfig struct {
	// Interactive applies to login, registration, password reset, refresh and logout.
	Interactive time.Duration `yaml:"interactive" env:"INTERACTIVE"`
	// SessionRestore applies to CheckSession, which may need a storage read and a
	// refresh round trip.
	SessionRestore time.Duration `yaml:"session_restore" env:"SESSION_RESTORE"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// StoreBackend selects where the session record is persisted.
type StoreBackend string

const (
	// StoreMemory keeps the record in process memory.
	StoreMemory StoreBackend = "memory"
	// StoreRedis keeps the record in Redis; see [Builder.WithRedis].
	StoreRedis StoreBackend = "redis"
	// StoreSQLite keeps the record in a local SQLite file.
	StoreSQLite StoreBackend = "sqlite"
)

// SessionConfig controls session persistence.
type SessionConfig struct {
	Key         string        `yaml:"key" env:"KEY"`
	Backend     StoreBackend  `yaml:"backend" env:"BACKEND"`
	RedisPrefix string        `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	RedisTTL    time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
	SQLitePath  string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

/*
====================================
GATEWAY CONFIG
====================================
*/

// GatewayConfig configures the built-in HTTP gateway. It is ignored when
// [Builder.WithGateway] supplies one.
type GatewayConfig struct {
	BaseURL        string            `yaml:"base_url" env:"BASE_URL"`
	MaxRetries     int               `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBaseDelay time.Duration     `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY"`
	Timeout        time.Duration     `yaml:"timeout" env:"TIMEOUT"`
	UserAgent      string            `yaml:"user_agent" env:"USER_AGENT"`
	Endpoints      gateway.Endpoints `yaml:"endpoints" envPrefix:"ENDPOINT_"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls background token refresh while authorized.
type RefreshConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Leeway is how long before the access token's exp the refresh is sent.
	Leeway time.Duration `yaml:"leeway" env:"LEEWAY"`
	// Interval is used for tokens without an exp claim. Zero disables refresh for them.
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	// MinDelay is the shortest wait between two background refreshes.
	MinDelay time.Duration `yaml:"min_delay" env:"MIN_DELAY"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig caps attempts per email within Window. A zero maximum disables that
// limit. Counters live in Redis when [Builder.WithRedis] is used, in memory otherwise.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled" env:"ENABLED"`
	MaxLoginAttempts int           `yaml:"max_login_attempts" env:"MAX_LOGIN_ATTEMPTS"`
	MaxOTPAttempts   int           `yaml:"max_otp_attempts" env:"MAX_OTP_ATTEMPTS"`
	MaxResetRequests int           `yaml:"max_reset_requests" env:"MAX_RESET_REQUESTS"`
	Window           time.Duration `yaml:"window" env:"WINDOW"`
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig holds the input rules checked before any network call.
type ValidationConfig struct {
	MinPasswordLength int `yaml:"min_password_length" env:"MIN_PASSWORD_LENGTH"`
	// OTPLength is the exact digit count of a one-time passcode. Zero accepts any
	// non-empty run of digits.
	OTPLength int `yaml:"otp_length" env:"OTP_LENGTH"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" env:"ENABLE_LATENCY_HISTOGRAMS"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Timeouts: TimeoutConfig{
			Interactive:    15 * time.Second,
			SessionRestore: 30 * time.Second,
		},
		Session: SessionConfig{
			Key:         session.DefaultKey,
			Backend:     StoreMemory,
			RedisPrefix: "afs",
			RedisTTL:    0,
			SQLitePath:  "authflow.db",
		},
		Gateway: GatewayConfig{
			MaxRetries:     3,
			RetryBaseDelay: 300 * time.Millisecond,
			Timeout:        10 * time.Second,
			UserAgent:      "authflow",
			Endpoints:      gateway.DefaultEndpoints(),
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Leeway:   30 * time.Second,
			Interval: 0,
			MinDelay: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			MaxLoginAttempts: 5,
			MaxOTPAttempts:   5,
			MaxResetRequests: 3,
			Window:           15 * time.Minute,
		},
		Validation: ValidationConfig{
			MinPasswordLength: 8,
			OTPLength:         6,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// Timeouts
	if c.Timeouts.Interactive <= 0 {
		return errors.New("Timeouts Interactive must be > 0")
	}
	if c.Timeouts.SessionRestore <= 0 {
		return errors.New("Timeouts SessionRestore must be > 0")
	}

	// Session
	if c.Session.Key == "" {
		return errors.New("Session Key must not be empty")
	}
	switch c.Session.Backend {
	case StoreMemory, StoreRedis:
	case StoreSQLite:
		if c.Session.SQLitePath == "" {
			return errors.New("Session SQLitePath required for sqlite backend")
		}
	default:
		return fmt.Errorf("unsupported Session Backend %q", c.Session.Backend)
	}
	if c.Session.RedisTTL < 0 {
		return errors.New("Session RedisTTL must be >= 0")
	}

	// Gateway
	if c.Gateway.BaseURL != "" {
		u, err := url.Parse(c.Gateway.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("Gateway BaseURL must be an http(s) url, got %q", c.Gateway.BaseURL)
		}
	}
	if c.Gateway.MaxRetries < 0 {
		return errors.New("Gateway MaxRetries must be >= 0")
	}
	if c.Gateway.RetryBaseDelay < 0 {
		return errors.New("Gateway RetryBaseDelay must be >= 0")
	}
	if c.Gateway.Timeout < 0 {
		return errors.New("Gateway Timeout must be >= 0")
	}

	// Refresh
	if c.Refresh.Leeway < 0 || c.Refresh.Interval < 0 || c.Refresh.MinDelay < 0 {
		return errors.New("Refresh durations must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts < 0 || c.RateLimit.MaxOTPAttempts < 0 || c.RateLimit.MaxResetRequests < 0 {
			return errors.New("RateLimit maximums must be >= 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Validation
	if c.Validation.MinPasswordLength < 0 {
		return errors.New("Validation MinPasswordLength must be >= 0")
	}
	if c.Validation.OTPLength < 0 {
		return errors.New("Validation OTPLength must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
