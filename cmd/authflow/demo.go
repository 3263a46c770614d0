package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/internal/authapi"
	"github.com/MrEthical07/authflow/machine"
	otelexport "github.com/MrEthical07/authflow/metrics/export/otel"
	promexport "github.com/MrEthical07/authflow/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// passcodes hands codes from the embedded API to the scripted client.
type passcodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (p *passcodes) notify(email string, _ authapi.Purpose, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[email] = code
}

func (p *passcodes) take(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	code := p.codes[email]
	delete(p.codes, email)
	return code
}

func runDemo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	configPath, verbose := commonFlags(fs)
	var (
		email       = fs.String("email", "demo@example.com", "account email")
		password    = fs.String("password", "correct-horse", "account password")
		redisAddr   = fs.String("redis-addr", "", "redis address for the redis backend; miniredis when empty")
		showMetrics = fs.Bool("metrics", false, "print the client's Prometheus metrics at the end")
		showOTel    = fs.Bool("otel", false, "print the client's counters as collected by OpenTelemetry at the end")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = cfg.Metrics.Enabled || *showMetrics || *showOTel
	log := newLogger(*verbose)

	codes := &passcodes{codes: make(map[string]string)}
	readCode := codes.take
	if cfg.Gateway.BaseURL == "" {
		api, err := newAPI("", 15*time.Minute, log, codes.notify)
		if err != nil {
			return err
		}
		ts := httptest.NewServer(api.Handler())
		defer ts.Close()
		cfg.Gateway.BaseURL = ts.URL
		log.Info("embedded auth api", "url", ts.URL)
	} else {
		readCode = promptCode
	}

	b := authflow.New().WithConfig(cfg).WithLogger(log)
	if cfg.Session.Backend == authflow.StoreRedis {
		rdb, cleanup, err := openRedis(*redisAddr, log)
		if err != nil {
			return err
		}
		defer cleanup()
		b = b.WithRedis(rdb)
	}

	client, err := b.Build()
	if err != nil {
		return err
	}
	defer func() { _ = client.Stop() }()

	unsubscribe := client.Subscribe(func(s machine.Snapshot) {
		if s.Handled {
			log.Debug("state", "seq", s.Seq, "state", s.State, "event", s.Event.String())
		}
	})
	defer unsubscribe()

	if err := demoScript(ctx, client, *email, *password, readCode); err != nil {
		return err
	}

	if *showMetrics {
		rec := httptest.NewRecorder()
		promexport.NewPrometheusExporter(client).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		fmt.Print(rec.Body.String())
	}
	if *showOTel {
		if err := printOTel(ctx, client); err != nil {
			return err
		}
	}
	return nil
}

// printOTel collects the client's metrics once through a manual reader and prints the
// non-zero counters.
func printOTel(ctx context.Context, client *authflow.Client) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	exp, err := otelexport.NewOTelExporter(provider.Meter("authflow-demo"), client)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if dp.Value != 0 {
					fmt.Printf("%s %d\n", m.Name, dp.Value)
				}
			}
		}
	}
	return nil
}

func demoScript(ctx context.Context, c *authflow.Client, email, password string, readCode func(string) string) error {
	sess, err := c.CheckSession(ctx)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if sess != nil {
		fmt.Printf("restored session for %s\n", sess.Profile.Email)
		return nil
	}

	c.GoToRegister()
	if err := c.Register(ctx, email, password); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := c.VerifyOTP(ctx, readCode(email)); err != nil {
		return fmt.Errorf("verify passcode: %w", err)
	}
	sess = c.GetSession()
	fmt.Printf("registered and signed in as %s\n", sess.Profile.Email)

	if _, err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	fmt.Println("access token refreshed")

	if err := c.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Println("signed out")

	if _, err := c.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Printf("signed in again, state %s\n", c.GetState())
	return nil
}

func promptCode(email string) string {
	fmt.Printf("passcode sent to %s: ", email)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

func openRedis(addr string, log *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		log.Info("using redis", "addr", addr)
		return rdb, func() { _ = rdb.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	log.Info("using miniredis", "addr", mr.Addr())
	return rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}, nil
}
