package flows

import (
	"context"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/session"
)

// Metrics carries the metric IDs flows increment.
type Metrics struct {
	LoginSuccess         int
	LoginFailure         int
	RateLimited          int
	ValidationRejected   int
	RegisterSuccess      int
	RegisterFailure      int
	OTPVerifySuccess     int
	OTPVerifyFailure     int
	RegistrationComplete int
	ResetRequested       int
	ResetSuccess         int
	ResetFailure         int
	RefreshSuccess       int
	RefreshFailure       int
	SessionRestored      int
	SessionMissing       int
	ProfileRefreshFailed int
	Logout               int
	LogoutFailure        int
}

// Events carries audit event names emitted by flows.
type Events struct {
	LoginSuccess         string
	LoginFailure         string
	RateLimited          string
	Register             string
	OTPVerify            string
	RegistrationComplete string
	ResetRequest         string
	ResetComplete        string
	Refresh              string
	SessionRestore       string
	Logout               string
}

// Errors carries host-level sentinel errors wrapped by flows.
type Errors struct {
	NotReady   error
	Validation error
}

// Policy holds input validation rules.
type Policy struct {
	MinPasswordLength int
	OTPLength         int
}

// Deps groups everything a flow needs. The root Client builds this once.
type Deps struct {
	Gateway   gateway.Gateway
	Lifecycle *session.Lifecycle
	Limiter   *rate.Limiter
	Policy    Policy

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, subject string, err error, meta func() map[string]string)
	Warn      func(msg string, args ...any)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d *Deps) ready() bool {
	return d != nil && d.Gateway != nil && d.Lifecycle != nil
}

func (d *Deps) inc(id int) {
	if d.MetricInc != nil {
		d.MetricInc(id)
	}
}

func (d *Deps) audit(ctx context.Context, event string, success bool, subject string, err error, meta func() map[string]string) {
	if d.EmitAudit != nil && event != "" {
		d.EmitAudit(ctx, event, success, subject, err, meta)
	}
}

func (d *Deps) warn(msg string, args ...any) {
	if d.Warn != nil {
		d.Warn(msg, args...)
	}
}

// limited checks the attempt budget for action and records the rejection.
func (d *Deps) limited(ctx context.Context, action rate.Action, subject string) error {
	err := d.Limiter.Check(ctx, action, subject)
	if err == nil {
		return nil
	}
	if !errorsIsRateLimited(err) {
		// a broken counter backend must not lock users out
		d.warn("flows: rate limiter unavailable", "error", err)
		return nil
	}
	d.inc(d.Metrics.RateLimited)
	d.audit(ctx, d.Events.RateLimited, false, subject, err, func() map[string]string {
		return map[string]string{"action": actionName(action)}
	})
	return err
}

func (d *Deps) recordAttempt(ctx context.Context, action rate.Action, subject string) {
	if err := d.Limiter.Record(ctx, action, subject); err != nil && !errorsIsRateLimited(err) {
		d.warn("flows: record attempt failed", "error", err)
	}
}

func actionName(a rate.Action) string {
	switch a {
	case rate.ActionLogin:
		return "login"
	case rate.ActionVerifyOTP:
		return "verify_otp"
	default:
		return "password_reset"
	}
}
