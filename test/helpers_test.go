//go:build integration
// +build integration

package test

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/internal/authapi"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stack is an auth API served over HTTP plus the redis the clients share.
type stack struct {
	api   *authapi.Server
	url   string
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	codes *codeBox
}

type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBox) notify(email string, _ authapi.Purpose, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[email] = code
}

func (b *codeBox) get(t *testing.T, email string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	code, ok := b.codes[email]
	if !ok {
		t.Fatalf("no passcode issued for %s", email)
	}
	return code
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStack(t *testing.T, opts ...authapi.Option) *stack {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	box := &codeBox{codes: make(map[string]string)}
	cfg := authapi.DefaultConfig()
	cfg.SigningKey = []byte("integration-signing-key-0123456789")
	cfg.Hash = authapi.HashParams{MemoryKB: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	opts = append([]authapi.Option{authapi.WithNotifier(box.notify), authapi.WithLogger(discard())}, opts...)
	api, err := authapi.New(cfg, opts...)
	if err != nil {
		t.Fatalf("authapi.New failed: %v", err)
	}
	ts := httptest.NewServer(api.Handler())

	t.Cleanup(func() {
		ts.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &stack{api: api, url: ts.URL, mr: mr, rdb: rdb, codes: box}
}

func (s *stack) config() authflow.Config {
	cfg := authflow.DefaultConfig()
	cfg.Gateway.BaseURL = s.url
	cfg.Gateway.RetryBaseDelay = 10 * time.Millisecond
	cfg.Session.Backend = authflow.StoreRedis
	cfg.Timeouts.Interactive = 5 * time.Second
	cfg.Timeouts.SessionRestore = 5 * time.Second
	cfg.Refresh.Enabled = false
	return cfg
}

func (s *stack) client(t *testing.T, cfg authflow.Config) *authflow.Client {
	t.Helper()
	c, err := authflow.New().
		WithConfig(cfg).
		WithRedis(s.rdb).
		WithLogger(discard()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Stop()
	})
	return c
}
