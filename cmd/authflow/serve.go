package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/internal/authapi"
)

type seedUsers []string

func (s *seedUsers) String() string { return strings.Join(*s, ",") }

func (s *seedUsers) Set(v string) error {
	if !strings.Contains(v, ":") {
		return fmt.Errorf("seed %q: want email:password", v)
	}
	*s = append(*s, v)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		addr       = fs.String("addr", ":8080", "listen address")
		signingKey = fs.String("signing-key", "", "HS256 key of at least 32 bytes; random when empty")
		accessTTL  = fs.Duration("access-ttl", 15*time.Minute, "access token lifetime")
		verbose    = fs.Bool("v", false, "debug logging")
		seeds      seedUsers
	)
	fs.Var(&seeds, "seed", "email:password of a verified user; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := newLogger(*verbose)
	api, err := newAPI(*signingKey, *accessTTL, log, nil)
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		email, password, _ := strings.Cut(seed, ":")
		if _, err := api.AddUser(email, password, ""); err != nil {
			return fmt.Errorf("seed %s: %w", email, err)
		}
		log.Info("seeded user", "email", email)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("auth api listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newAPI builds the in-memory auth API. A nil notify logs passcodes.
func newAPI(signingKey string, accessTTL time.Duration, log *slog.Logger, notify authapi.Notifier) (*authapi.Server, error) {
	key := []byte(signingKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}

	cfg := authapi.DefaultConfig()
	cfg.SigningKey = key
	cfg.AccessTTL = accessTTL

	opts := []authapi.Option{authapi.WithLogger(log)}
	if notify != nil {
		opts = append(opts, authapi.WithNotifier(notify))
	}
	return authapi.New(cfg, opts...)
}
