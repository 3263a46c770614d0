package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authflow"
	"golang.org/x/sync/errgroup"
)

// phaseSamples collects latencies of one operation across all workers.
type phaseSamples struct {
	mu        *authflow.Mutex
	latencies []time.Duration
	failures  int64
}

func newPhaseSamples(capacity int) *phaseSamples {
	return &phaseSamples{mu: authflow.NewMutex(), latencies: make([]time.Duration, 0, capacity)}
}

func (p *phaseSamples) record(ctx context.Context, d time.Duration, err error) {
	if err != nil {
		atomic.AddInt64(&p.failures, 1)
	}
	_ = p.mu.Do(ctx, func(context.Context) error {
		p.latencies = append(p.latencies, d)
		return nil
	})
}

func runLoadTest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("loadtest", flag.ExitOnError)
	configPath, verbose := commonFlags(fs)
	var (
		clients = fs.Int("clients", 64, "number of concurrent clients, one account each")
		rounds  = fs.Int("rounds", 20, "login/refresh/check/logout rounds per client")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *clients <= 0 || *rounds <= 0 {
		return fmt.Errorf("clients and rounds must be > 0")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.Refresh.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.Session.Backend = authflow.StoreMemory

	log := newLogger(*verbose)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Gateway.BaseURL == "" {
		api, err := newAPI("", 15*time.Minute, quiet, nil)
		if err != nil {
			return err
		}
		for i := 0; i < *clients; i++ {
			if _, err := api.AddUser(loadEmail(i), "correct-horse", ""); err != nil {
				return err
			}
		}
		ts := httptest.NewServer(api.Handler())
		defer ts.Close()
		cfg.Gateway.BaseURL = ts.URL
		log.Info("embedded auth api", "url", ts.URL, "users", *clients)
	}

	ops := *clients * *rounds
	phases := map[string]*phaseSamples{
		"login":   newPhaseSamples(ops),
		"refresh": newPhaseSamples(ops),
		"check":   newPhaseSamples(ops),
		"logout":  newPhaseSamples(ops),
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < *clients; w++ {
		email := loadEmail(w)
		g.Go(func() error {
			c, err := authflow.New().WithConfig(cfg).WithLogger(quiet).Build()
			if err != nil {
				return err
			}
			defer func() { _ = c.Stop() }()
			if _, err := c.CheckSession(gctx); err != nil {
				return err
			}

			for r := 0; r < *rounds; r++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				t0 := time.Now()
				_, err := c.Login(gctx, email, "correct-horse")
				phases["login"].record(gctx, time.Since(t0), err)
				if err != nil {
					continue
				}

				t0 = time.Now()
				_, err = c.Refresh(gctx)
				phases["refresh"].record(gctx, time.Since(t0), err)

				t0 = time.Now()
				_, err = c.CheckSession(gctx)
				phases["check"].record(gctx, time.Since(t0), err)

				t0 = time.Now()
				err = c.Logout(gctx)
				phases["logout"].record(gctx, time.Since(t0), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	total := time.Since(start)

	fmt.Println("---- results ----")
	for _, name := range []string{"login", "refresh", "check", "logout"} {
		p := phases[name]
		printStats(name, computeStats(total, p.latencies, p.failures))
	}
	return nil
}

func loadEmail(i int) string {
	return fmt.Sprintf("load-%d@example.com", i)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
