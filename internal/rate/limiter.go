package rate

import (
	"context"
	"strings"
	"time"
)

// Action names a throttled operation.
type Action uint8

const (
	ActionLogin Action = iota
	ActionVerifyOTP
	ActionPasswordReset
)

func (a Action) prefix() string {
	switch a {
	case ActionLogin:
		return "afl:"
	case ActionVerifyOTP:
		return "afo:"
	default:
		return "afr:"
	}
}

// Config holds rate limiter tuning parameters. A zero MaxAttempts disables the
// corresponding limit.
type Config struct {
	MaxLoginAttempts int
	MaxOTPAttempts   int
	MaxResetRequests int
	Window           time.Duration
}

// Limiter enforces per-email attempt budgets.
type Limiter struct {
	counter Counter
	config  Config
}

// New creates a [Limiter] over counter.
func New(counter Counter, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &Limiter{counter: counter, config: cfg}
}

func (l *Limiter) max(a Action) int {
	switch a {
	case ActionLogin:
		return l.config.MaxLoginAttempts
	case ActionVerifyOTP:
		return l.config.MaxOTPAttempts
	default:
		return l.config.MaxResetRequests
	}
}

func key(a Action, subject string) string {
	return a.prefix() + strings.ToLower(strings.TrimSpace(subject))
}

// Check reports [ErrRateLimited] once subject exhausted the budget for a. It does not
// consume an attempt.
func (l *Limiter) Check(ctx context.Context, a Action, subject string) error {
	if l == nil || l.max(a) <= 0 {
		return nil
	}
	count, err := l.counter.Get(ctx, key(a, subject))
	if err != nil {
		return err
	}
	if count >= int64(l.max(a)) {
		return ErrRateLimited
	}
	return nil
}

// Record consumes one attempt. It returns [ErrRateLimited] when this attempt crossed the
// budget.
func (l *Limiter) Record(ctx context.Context, a Action, subject string) error {
	if l == nil || l.max(a) <= 0 {
		return nil
	}
	count, err := l.counter.Incr(ctx, key(a, subject), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.max(a)) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for subject. Called after a successful login.
func (l *Limiter) Reset(ctx context.Context, a Action, subject string) error {
	if l == nil {
		return nil
	}
	return l.counter.Del(ctx, key(a, subject))
}

// Attempts returns the attempts recorded for subject in the current window.
func (l *Limiter) Attempts(ctx context.Context, a Action, subject string) (int, error) {
	if l == nil {
		return 0, nil
	}
	count, err := l.counter.Get(ctx, key(a, subject))
	return int(count), err
}
