package authflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/session"
	"github.com/alicebob/miniredis/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var testSigningKey = []byte("authflow-test-secret")

// mintToken returns an HS256 token expiring at exp. A zero exp omits the claim.
func mintToken(sub string, exp time.Time) string {
	claims := gojwt.MapClaims{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		panic(fmt.Sprintf("sign test token: %v", err))
	}
	return tok
}

func unauthorizedErr() error {
	return &gateway.Error{Status: http.StatusUnauthorized, Message: "Session expired"}
}

// fakeGateway records every call as "method:args". Hooks left nil succeed with
// canned answers.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	loginFn    func(ctx context.Context, creds gateway.Credentials) (*session.Session, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*session.Session, error)
	profileFn  func(ctx context.Context, accessToken string) (*session.UserProfile, error)
	logoutErr  error
	otpErr     error
	regErr     error
	resetErr   error
	completeFn func(ctx context.Context) error
}

func (g *fakeGateway) record(format string, args ...any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, fmt.Sprintf(format, args...))
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) count(prefix string) int {
	n := 0
	for _, c := range g.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (g *fakeGateway) Login(ctx context.Context, creds gateway.Credentials) (*session.Session, error) {
	g.record("login:%s:%s", creds.Email, creds.Password)
	if g.loginFn != nil {
		return g.loginFn(ctx, creds)
	}
	return &session.Session{
		AccessToken:  mintToken(creds.Email, time.Now().Add(time.Hour)),
		RefreshToken: "refresh-" + creds.Email,
	}, nil
}

func (g *fakeGateway) Register(_ context.Context, creds gateway.Credentials) error {
	g.record("register:%s", creds.Email)
	return g.regErr
}

func (g *fakeGateway) RequestPasswordReset(_ context.Context, email string) error {
	g.record("requestPasswordReset:%s", email)
	return g.resetErr
}

func (g *fakeGateway) VerifyOTP(_ context.Context, email, otp string) (string, error) {
	g.record("verifyOtp:%s:%s", email, otp)
	if g.otpErr != nil {
		return "", g.otpErr
	}
	return "action-" + email, nil
}

func (g *fakeGateway) CompleteRegistration(ctx context.Context, actionToken, _ string) error {
	g.record("completeRegistration:%s", actionToken)
	if g.completeFn != nil {
		return g.completeFn(ctx)
	}
	return nil
}

func (g *fakeGateway) CompletePasswordReset(_ context.Context, actionToken, newPassword string) error {
	g.record("completePasswordReset:%s:%s", actionToken, newPassword)
	return nil
}

func (g *fakeGateway) RefreshToken(ctx context.Context, refreshToken string) (*session.Session, error) {
	g.record("refresh:%s", refreshToken)
	if g.refreshFn != nil {
		return g.refreshFn(ctx, refreshToken)
	}
	return &session.Session{AccessToken: mintToken("refreshed", time.Now().Add(time.Hour))}, nil
}

func (g *fakeGateway) FetchProfile(ctx context.Context, accessToken string) (*session.UserProfile, error) {
	g.record("fetchProfile")
	if g.profileFn != nil {
		return g.profileFn(ctx, accessToken)
	}
	return &session.UserProfile{ID: "u1", Email: "user@example.com"}, nil
}

func (g *fakeGateway) Logout(_ context.Context, _ string) error {
	g.record("logout")
	return g.logoutErr
}

type storeWrite struct {
	key   string
	value string
}

// recordingStore wraps a MemoryStore and keeps every write.
type recordingStore struct {
	*session.MemoryStore

	mu     sync.Mutex
	writes []storeWrite
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: session.NewMemoryStore()}
}

func (s *recordingStore) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.writes = append(s.writes, storeWrite{key: key, value: value})
	s.mu.Unlock()
	return s.MemoryStore.SetItem(ctx, key, value)
}

func (s *recordingStore) Writes() []storeWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storeWrite(nil), s.writes...)
}

func seedSession(t *testing.T, store session.Store, s *session.Session) {
	t.Helper()
	raw, err := session.Encode(s)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := store.SetItem(context.Background(), session.DefaultKey, raw); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeouts.Interactive = 2 * time.Second
	cfg.Timeouts.SessionRestore = 2 * time.Second
	cfg.Refresh.Enabled = false
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildTestClient builds a client without waiting for the startup check.
func buildTestClient(t *testing.T, gw gateway.Gateway, store session.Store, cfg Config, extra ...func(*Builder)) *Client {
	t.Helper()
	b := New().
		WithConfig(cfg).
		WithGateway(gw).
		WithStore(store).
		WithLogger(discardLogger())
	for _, fn := range extra {
		fn(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Stop()
	})
	return c
}

// newTestClient builds a client and waits for the startup check to finish.
func newTestClient(t *testing.T, gw gateway.Gateway, store session.Store, cfg Config, extra ...func(*Builder)) *Client {
	t.Helper()
	c := buildTestClient(t, gw, store, cfg, extra...)
	if _, err := c.CheckSession(context.Background()); err != nil {
		t.Fatalf("CheckSession failed: %v", err)
	}
	return c
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
