package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/authflow/jwt"
)

var (
	// ErrNoRefreshToken is returned when a refresh is attempted for a session without a
	// refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrMalformedRefresh is returned when the server answered a refresh without a usable
	// access token.
	ErrMalformedRefresh = errors.New("malformed refresh response")
	// ErrSessionRejected is returned by [Lifecycle.Validate] when the server rejected the
	// access token and the refresh token could not replace it.
	ErrSessionRejected = errors.New("session rejected by server")
)

// Remote is the slice of the auth API the lifecycle needs.
type Remote interface {
	// RefreshToken exchanges a refresh token for a new access token. Only the returned
	// AccessToken is used.
	RefreshToken(ctx context.Context, refreshToken string) (*Session, error)
	// FetchProfile loads the profile of the user owning accessToken.
	FetchProfile(ctx context.Context, accessToken string) (*UserProfile, error)
}

// LifecycleOption configures a [Lifecycle].
type LifecycleOption func(*Lifecycle)

// WithKey overrides the storage key (default [DefaultKey]).
func WithKey(key string) LifecycleOption {
	return func(l *Lifecycle) {
		if key != "" {
			l.key = key
		}
	}
}

// WithDecoder overrides the token decoder, typically to inject a clock.
func WithDecoder(d *jwt.Decoder) LifecycleOption {
	return func(l *Lifecycle) {
		if d != nil {
			l.tokens = d
		}
	}
}

// WithLogger sets the logger for recovered failures.
func WithLogger(log *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if log != nil {
			l.log = log
		}
	}
}

// WithUnauthorizedFunc overrides how a 401 is recognized in Remote errors. The default
// looks for a StatusCode() int method anywhere in the error chain.
func WithUnauthorizedFunc(fn func(error) bool) LifecycleOption {
	return func(l *Lifecycle) {
		if fn != nil {
			l.isUnauthorized = fn
		}
	}
}

// Lifecycle reads, persists, refreshes and validates the stored session.
//
// Every session a Lifecycle hands out has already been persisted, so callers can put it
// in memory without a second write.
type Lifecycle struct {
	store          Store
	remote         Remote
	key            string
	tokens         *jwt.Decoder
	isUnauthorized func(error) bool
	log            *slog.Logger
}

// NewLifecycle creates a Lifecycle over store and remote.
func NewLifecycle(store Store, remote Remote, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		store:          store,
		remote:         remote,
		key:            DefaultKey,
		tokens:         jwt.NewDecoder(),
		isUnauthorized: hasUnauthorizedStatus,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With("component", "session.lifecycle")
	return l
}

// Key returns the storage key in use.
func (l *Lifecycle) Key() string {
	return l.key
}

// Read loads the persisted session. A missing or corrupt record yields (nil, nil); only
// a failing store produces an error.
func (l *Lifecycle) Read(ctx context.Context) (*Session, error) {
	raw, found, err := l.store.GetItem(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !found {
		return nil, nil
	}
	s, ok := Decode(raw)
	if !ok {
		l.log.WarnContext(ctx, "discarding unreadable session record")
		return nil, nil
	}
	return s, nil
}

// Persist writes s under the session key.
func (l *Lifecycle) Persist(ctx context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := l.store.SetItem(ctx, l.key, data); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear removes the persisted session.
func (l *Lifecycle) Clear(ctx context.Context) error {
	if err := l.store.RemoveItem(ctx, l.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// IsExpired applies the token expiry policy of package jwt.
func (l *Lifecycle) IsExpired(accessToken string) bool {
	return l.tokens.IsExpired(accessToken)
}

// Decoder exposes the token decoder, for callers scheduling refreshes.
func (l *Lifecycle) Decoder() *jwt.Decoder {
	return l.tokens
}

// CheckSession decides whether a usable session exists.
//
// An expired access token is refreshed with the stored refresh token; a session that
// cannot be refreshed is cleared and reported as absent. A live access token is validated
// by fetching the profile (see [Lifecycle.Validate]). The returned session, when non-nil,
// is persisted.
func (l *Lifecycle) CheckSession(ctx context.Context) (*Session, error) {
	current, err := l.Read(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	if l.IsExpired(current.AccessToken) {
		if current.RefreshToken == "" {
			l.log.DebugContext(ctx, "stored session expired without refresh token")
			l.clearQuietly(ctx)
			return nil, nil
		}
		refreshed, err := l.Refresh(ctx, current)
		if err != nil {
			l.log.InfoContext(ctx, "stored session could not be refreshed", "error", err)
			l.clearQuietly(ctx)
			return nil, nil
		}
		return refreshed, nil
	}

	validated, err := l.Validate(ctx, current)
	if err != nil {
		l.log.InfoContext(ctx, "stored session rejected by server", "error", err)
		l.clearQuietly(ctx)
		return nil, nil
	}
	return validated, nil
}

// Refresh exchanges the refresh token of current for a new access token. The refresh
// token and profile are carried forward. No retry happens here; the caller decides what
// a failure means.
func (l *Lifecycle) Refresh(ctx context.Context, current *Session) (*Session, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	next, err := l.remote.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if !next.Valid() {
		return nil, ErrMalformedRefresh
	}

	updated := current.WithAccessToken(next.AccessToken)
	if err := l.Persist(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Validate confirms current with the server by fetching the profile.
//
// On success the profile replaces the stored one and the enriched session is persisted.
// A 401 triggers exactly one refresh; if that fails the persisted session is removed and
// an error wrapping [ErrSessionRejected] is returned. Any other failure returns current
// unchanged: transient trouble must not log the user out.
func (l *Lifecycle) Validate(ctx context.Context, current *Session) (*Session, error) {
	if !current.Valid() {
		return nil, ErrInvalidSession
	}

	profile, err := l.remote.FetchProfile(ctx, current.AccessToken)
	if err == nil {
		return l.enrich(ctx, current, profile), nil
	}
	if !l.isUnauthorized(err) {
		l.log.WarnContext(ctx, "profile fetch failed, keeping session", "error", err)
		return current, nil
	}

	refreshed, err := l.Refresh(ctx, current)
	if err != nil {
		l.clearQuietly(ctx)
		return nil, fmt.Errorf("%w: %w", ErrSessionRejected, err)
	}

	profile, err = l.remote.FetchProfile(ctx, refreshed.AccessToken)
	if err != nil {
		l.log.WarnContext(ctx, "profile fetch after refresh failed", "error", err)
		return refreshed, nil
	}
	return l.enrich(ctx, refreshed, profile), nil
}

func (l *Lifecycle) enrich(ctx context.Context, current *Session, profile *UserProfile) *Session {
	if !profile.Valid() {
		l.log.WarnContext(ctx, "server returned an incomplete profile")
		return current
	}
	enriched := current.WithProfile(profile)
	if err := l.Persist(ctx, enriched); err != nil {
		l.log.WarnContext(ctx, "persist enriched session failed", "error", err)
	}
	return enriched
}

func (l *Lifecycle) clearQuietly(ctx context.Context) {
	if err := l.Clear(ctx); err != nil {
		l.log.WarnContext(ctx, "clear stale session failed", "error", err)
	}
}

func hasUnauthorizedStatus(err error) bool {
	var coded interface{ StatusCode() int }
	return errors.As(err, &coded) && coded.StatusCode() == http.StatusUnauthorized
}
