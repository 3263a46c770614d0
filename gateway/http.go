package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/session"
	"github.com/cenkalti/backoff/v5"
)

// Endpoints holds the request paths, relative to the base URL.
type Endpoints struct {
	Login                 string `yaml:"login" env:"LOGIN"`
	Register              string `yaml:"register" env:"REGISTER"`
	RequestPasswordReset  string `yaml:"request_password_reset" env:"REQUEST_PASSWORD_RESET"`
	VerifyOTP             string `yaml:"verify_otp" env:"VERIFY_OTP"`
	CompleteRegistration  string `yaml:"complete_registration" env:"COMPLETE_REGISTRATION"`
	CompletePasswordReset string `yaml:"complete_password_reset" env:"COMPLETE_PASSWORD_RESET"`
	Refresh               string `yaml:"refresh" env:"REFRESH"`
	Profile               string `yaml:"profile" env:"PROFILE"`
	Logout                string `yaml:"logout" env:"LOGOUT"`
}

// DefaultEndpoints returns the conventional /auth/* layout.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:                 "/auth/login",
		Register:              "/auth/register",
		RequestPasswordReset:  "/auth/password/forgot",
		VerifyOTP:             "/auth/otp/verify",
		CompleteRegistration:  "/auth/register/complete",
		CompletePasswordReset: "/auth/password/reset",
		Refresh:               "/auth/refresh",
		Profile:               "/auth/me",
		Logout:                "/auth/logout",
	}
}

// HTTPConfig configures [HTTPClient].
type HTTPConfig struct {
	BaseURL        string
	Endpoints      Endpoints
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
	UserAgent      string
}

// HTTPClient implements [Gateway] over JSON/HTTP.
type HTTPClient struct {
	base      *url.URL
	endpoints Endpoints
	http      *http.Client
	retries   int
	baseDelay time.Duration
	userAgent string
	log       *slog.Logger
}

var _ Gateway = (*HTTPClient)(nil)

// HTTPOption customizes an [HTTPClient].
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.http = c
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(log *slog.Logger) HTTPOption {
	return func(h *HTTPClient) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHTTPClient validates cfg and builds an [HTTPClient]. Empty endpoint paths fall
// back to [DefaultEndpoints].
func NewHTTPClient(cfg HTTPConfig, opts ...HTTPOption) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway: base url must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.New("gateway: MaxRetries must be >= 0")
	}

	h := &HTTPClient{
		base:      base,
		endpoints: cfg.Endpoints.WithDefaults(),
		http:      &http.Client{Timeout: cfg.Timeout},
		retries:   cfg.MaxRetries,
		baseDelay: cfg.RetryBaseDelay,
		userAgent: cfg.UserAgent,
		log:       slog.Default(),
	}
	if h.baseDelay <= 0 {
		h.baseDelay = 300 * time.Millisecond
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "gateway.http")
	return h, nil
}

// WithDefaults returns e with every empty path replaced by its [DefaultEndpoints] value.
func (e Endpoints) WithDefaults() Endpoints {
	def := DefaultEndpoints()
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	return Endpoints{
		Login:                 pick(e.Login, def.Login),
		Register:              pick(e.Register, def.Register),
		RequestPasswordReset:  pick(e.RequestPasswordReset, def.RequestPasswordReset),
		VerifyOTP:             pick(e.VerifyOTP, def.VerifyOTP),
		CompleteRegistration:  pick(e.CompleteRegistration, def.CompleteRegistration),
		CompletePasswordReset: pick(e.CompletePasswordReset, def.CompletePasswordReset),
		Refresh:               pick(e.Refresh, def.Refresh),
		Profile:               pick(e.Profile, def.Profile),
		Logout:                pick(e.Logout, def.Logout),
	}
}

type tokenResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         *session.UserProfile `json:"user"`
}

func (r tokenResponse) session() (*session.Session, error) {
	if r.AccessToken == "" {
		return nil, &Error{Status: http.StatusOK, Message: "Unexpected response from server", Err: ErrMalformedResponse}
	}
	s := &session.Session{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if r.User.Valid() {
		s.Profile = r.User
	}
	return s, nil
}

// Login implements [Gateway].
func (h *HTTPClient) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	var out tokenResponse
	if err := h.do(ctx, http.MethodPost, h.endpoints.Login, "", creds, &out); err != nil {
		return nil, err
	}
	return out.session()
}

// Register implements [Gateway].
func (h *HTTPClient) Register(ctx context.Context, creds Credentials) error {
	return h.do(ctx, http.MethodPost, h.endpoints.Register, "", creds, nil)
}

// RequestPasswordReset implements [Gateway].
func (h *HTTPClient) RequestPasswordReset(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return h.do(ctx, http.MethodPost, h.endpoints.RequestPasswordReset, "", body, nil)
}

// VerifyOTP implements [Gateway].
func (h *HTTPClient) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	body := map[string]string{"email": email, "otp": otp}
	var out struct {
		ActionToken string `json:"actionToken"`
	}
	if err := h.do(ctx, http.MethodPost, h.endpoints.VerifyOTP, "", body, &out); err != nil {
		return "", err
	}
	if out.ActionToken == "" {
		return "", &Error{Status: http.StatusOK, Message: "Unexpected response from server", Err: ErrMalformedResponse}
	}
	return out.ActionToken, nil
}

// CompleteRegistration implements [Gateway].
func (h *HTTPClient) CompleteRegistration(ctx context.Context, actionToken, password string) error {
	body := map[string]string{"actionToken": actionToken, "password": password}
	return h.do(ctx, http.MethodPost, h.endpoints.CompleteRegistration, "", body, nil)
}

// CompletePasswordReset implements [Gateway].
func (h *HTTPClient) CompletePasswordReset(ctx context.Context, actionToken, newPassword string) error {
	body := map[string]string{"actionToken": actionToken, "password": newPassword}
	return h.do(ctx, http.MethodPost, h.endpoints.CompletePasswordReset, "", body, nil)
}

// RefreshToken implements [Gateway].
func (h *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (*session.Session, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var out tokenResponse
	if err := h.do(ctx, http.MethodPost, h.endpoints.Refresh, "", body, &out); err != nil {
		return nil, err
	}
	return out.session()
}

// FetchProfile implements [Gateway].
func (h *HTTPClient) FetchProfile(ctx context.Context, accessToken string) (*session.UserProfile, error) {
	var out session.UserProfile
	if err := h.do(ctx, http.MethodGet, h.endpoints.Profile, accessToken, nil, &out); err != nil {
		return nil, err
	}
	if !out.Valid() {
		return nil, &Error{Status: http.StatusOK, Message: "Unexpected response from server", Err: ErrMalformedResponse}
	}
	return &out, nil
}

// Logout implements [Gateway].
func (h *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	return h.do(ctx, http.MethodPost, h.endpoints.Logout, accessToken, nil, nil)
}

// do sends one logical request, retrying transient failures. out may be nil.
func (h *HTTPClient) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
	}
	target := h.base.JoinPath(path).String()
	reqID := requestID(ctx)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = h.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = h.baseDelay << 10

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		data, gwErr := h.once(ctx, method, target, bearer, reqID, payload)
		if gwErr == nil {
			return data, nil
		}
		if !gwErr.Transient() || ctx.Err() != nil {
			return nil, backoff.Permanent(gwErr)
		}
		h.log.DebugContext(ctx, "retrying request",
			"path", path, "attempt", attempt, "status", gwErr.Status, "request_id", reqID)
		return nil, gwErr
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(h.retries+1)))
	if err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) {
			return gwErr
		}
		// context expiry while waiting between attempts
		return networkError(err)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Status: http.StatusOK, Message: "Unexpected response from server", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

func (h *HTTPClient) once(ctx context.Context, method, target, bearer, reqID string, payload []byte) ([]byte, *Error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, networkError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, serverMessage(data))
	}
	return data, nil
}

// serverMessage reads {"message": ...} or {"error": ...} from an error body.
func serverMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if m := strings.TrimSpace(envelope.Message); m != "" {
		return m
	}
	return strings.TrimSpace(envelope.Error)
}
