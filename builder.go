package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authflow/gateway"
	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/jwt"
	"github.com/MrEthical07/authflow/machine"
	"github.com/MrEthical07/authflow/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Client]. A Builder can build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      session.Store
	gateway    gateway.Gateway
	httpClient *http.Client
	auditSink  AuditSink
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by the redis session backend and by the attempt
// limiter. Without it attempts are counted in memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore supplies the session store, overriding Session.Backend. The client does
// not close it.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithGateway supplies the remote API, overriding the built-in HTTP gateway.
func (b *Builder) WithGateway(gw gateway.Gateway) *Builder {
	b.gateway = gw
	return b
}

// WithHTTPClient sets the *http.Client of the built-in HTTP gateway.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithAuditSink sets where audit events go when Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default is slog.Default().
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.logger = log
	return b
}

// WithClock sets the clock used for token expiry decisions.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the operation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every component, and starts the machine.
// The startup session check begins immediately; use [Client.CheckSession] to wait for
// it.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "authflow")

	c := &Client{
		cfg:     cfg,
		metrics: NewMetrics(cfg.Metrics),
		log:     log,
		waiters: make(map[*waiter]struct{}),
	}

	// -------- SESSION STORE --------
	store, err := b.buildStore(&cfg, c)
	if err != nil {
		return nil, err
	}

	// -------- GATEWAY --------
	gw := gateway.Normalize(b.gateway)
	if gw == nil {
		if cfg.Gateway.BaseURL == "" {
			c.closeAll()
			return nil, ErrGatewayRequired
		}
		httpGW, err := gateway.NewHTTPClient(gateway.HTTPConfig{
			BaseURL:        cfg.Gateway.BaseURL,
			Endpoints:      cfg.Gateway.Endpoints,
			MaxRetries:     cfg.Gateway.MaxRetries,
			RetryBaseDelay: cfg.Gateway.RetryBaseDelay,
			Timeout:        cfg.Gateway.Timeout,
			UserAgent:      cfg.Gateway.UserAgent,
		}, gateway.WithHTTPClient(b.httpClient), gateway.WithLogger(log))
		if err != nil {
			c.closeAll()
			return nil, err
		}
		gw = httpGW
	}

	// -------- SESSION LIFECYCLE --------
	var decoderOpts []jwt.Option
	if b.now != nil {
		decoderOpts = append(decoderOpts, jwt.WithClock(b.now))
	}
	decoder := jwt.NewDecoder(decoderOpts...)

	c.lifecycle = session.NewLifecycle(store, gw,
		session.WithKey(cfg.Session.Key),
		session.WithDecoder(decoder),
		session.WithLogger(log),
		session.WithUnauthorizedFunc(gateway.IsUnauthorized),
	)

	// -------- ATTEMPT LIMITER --------
	if cfg.RateLimit.Enabled {
		var counter rate.Counter
		if b.redis != nil {
			counter = rate.NewRedisCounter(b.redis)
		} else {
			counter = rate.NewMemoryCounter(b.now)
		}
		c.limiter = rate.New(counter, rate.Config{
			MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
			MaxOTPAttempts:   cfg.RateLimit.MaxOTPAttempts,
			MaxResetRequests: cfg.RateLimit.MaxResetRequests,
			Window:           cfg.RateLimit.Window,
		})
	}

	// -------- AUDIT --------
	c.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- MACHINE --------
	svc := &services{deps: c.flowDeps(gw)}
	c.machine = machine.New(svc,
		machine.WithObserver(observer{c: c}),
		machine.WithMessageFunc(userMessage),
	)

	c.refresher = newRefresher(cfg.Refresh, decoder, c.machine.Send, c.metrics, log)
	if c.refresher != nil {
		c.machine.Subscribe(c.refresher.observe)
	}

	b.built = true
	c.machine.Start()
	return c, nil
}

func (b *Builder) buildStore(cfg *Config, c *Client) (session.Store, error) {
	if b.store != nil {
		return b.store, nil
	}

	switch cfg.Session.Backend {
	case StoreRedis:
		if b.redis == nil {
			return nil, fmt.Errorf("session backend redis: %w", ErrRedisRequired)
		}
		return session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.RedisTTL), nil
	case StoreSQLite:
		store, err := session.OpenSQLiteStore(context.Background(), cfg.Session.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func (c *Client) closeAll() {
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			c.log.Warn("authflow: close after failed build", "error", err)
		}
	}
}

func (c *Client) flowDeps(gw gateway.Gateway) flows.Deps {
	return flows.Deps{
		Gateway:   gw,
		Lifecycle: c.lifecycle,
		Limiter:   c.limiter,
		Policy: flows.Policy{
			MinPasswordLength: c.cfg.Validation.MinPasswordLength,
			OTPLength:         c.cfg.Validation.OTPLength,
		},
		MetricInc: func(id int) {
			c.metrics.Inc(MetricID(id))
		},
		EmitAudit: c.emitAudit,
		Warn: func(msg string, args ...any) {
			c.log.Warn(msg, args...)
		},
		Metrics: flows.Metrics{
			LoginSuccess:         int(MetricLoginSuccess),
			LoginFailure:         int(MetricLoginFailure),
			RateLimited:          int(MetricRateLimited),
			ValidationRejected:   int(MetricValidationRejected),
			RegisterSuccess:      int(MetricRegisterSuccess),
			RegisterFailure:      int(MetricRegisterFailure),
			OTPVerifySuccess:     int(MetricOTPVerifySuccess),
			OTPVerifyFailure:     int(MetricOTPVerifyFailure),
			RegistrationComplete: int(MetricRegistrationComplete),
			ResetRequested:       int(MetricPasswordResetRequest),
			ResetSuccess:         int(MetricPasswordResetSuccess),
			ResetFailure:         int(MetricPasswordResetFailure),
			RefreshSuccess:       int(MetricRefreshSuccess),
			RefreshFailure:       int(MetricRefreshFailure),
			SessionRestored:      int(MetricSessionRestored),
			SessionMissing:       int(MetricSessionMissing),
			ProfileRefreshFailed: int(MetricProfileRefreshFailed),
			Logout:               int(MetricLogout),
			LogoutFailure:        int(MetricLogoutFailure),
		},
		Events: flows.Events{
			LoginSuccess:         AuditLoginSuccess,
			LoginFailure:         AuditLoginFailure,
			RateLimited:          AuditRateLimited,
			Register:             AuditRegister,
			OTPVerify:            AuditOTPVerify,
			RegistrationComplete: AuditRegistrationComplete,
			ResetRequest:         AuditPasswordResetRequest,
			ResetComplete:        AuditPasswordResetComplete,
			Refresh:              AuditSessionRefresh,
			SessionRestore:       AuditSessionRestore,
			Logout:               AuditLogout,
		},
		Errors: flows.Errors{
			NotReady:   ErrNotReady,
			Validation: ErrValidation,
		},
	}
}
