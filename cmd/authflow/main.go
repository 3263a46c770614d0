// Command authflow runs the in-memory auth API, a scripted client demo against it, or
// a load test of concurrent clients.
//
//	authflow serve    -addr :8080 -seed user@example.com:correct-horse
//	authflow demo     -config authflow.yaml
//	authflow loadtest -clients 64 -rounds 20
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authflow"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "demo":
		err = runDemo(ctx, os.Args[2:])
	case "loadtest":
		err = runLoadTest(ctx, os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "authflow %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: authflow <serve|demo|loadtest> [flags]")
}

// loadConfig reads path when set, the AUTHFLOW_* environment otherwise.
func loadConfig(path string) (authflow.Config, error) {
	if path != "" {
		return authflow.LoadConfigFile(path)
	}
	return authflow.LoadConfigFromEnv()
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func commonFlags(fs *flag.FlagSet) (configPath *string, verbose *bool) {
	configPath = fs.String("config", "", "YAML config file; AUTHFLOW_* env vars are used when empty")
	verbose = fs.Bool("v", false, "debug logging")
	return configPath, verbose
}
