package flows

import (
	"context"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/session"
)

// RunLogin validates credentials, signs in, and persists the resulting session.
func RunLogin(ctx context.Context, creds gateway.Credentials, deps Deps) (*session.Session, error) {
	if !deps.ready() {
		return nil, deps.Errors.NotReady
	}

	email, err := deps.validateEmail(creds.Email)
	if err != nil {
		return nil, err
	}
	if creds.Password == "" {
		return nil, deps.invalid("password", "Password is required")
	}
	if err := deps.limited(ctx, rate.ActionLogin, email); err != nil {
		return nil, err
	}

	return deps.login(ctx, gateway.Credentials{Email: email, Password: creds.Password})
}

// RunAutoLogin signs in at the end of registration or password reset. The credentials
// come from the flow context and are sent as-is, even when empty, so that the server
// produces the rejection.
func RunAutoLogin(ctx context.Context, creds gateway.Credentials, deps Deps) (*session.Session, error) {
	if !deps.ready() {
		return nil, deps.Errors.NotReady
	}
	return deps.login(ctx, creds)
}

func (d *Deps) login(ctx context.Context, creds gateway.Credentials) (*session.Session, error) {
	s, err := d.Gateway.Login(ctx, creds)
	if err == nil && !s.Valid() {
		err = session.ErrInvalidSession
	}
	if err != nil {
		d.recordAttempt(ctx, rate.ActionLogin, creds.Email)
		d.inc(d.Metrics.LoginFailure)
		d.audit(ctx, d.Events.LoginFailure, false, creds.Email, err, nil)
		return nil, err
	}

	if err := d.Lifecycle.Persist(ctx, s); err != nil {
		d.inc(d.Metrics.LoginFailure)
		d.audit(ctx, d.Events.LoginFailure, false, creds.Email, err, func() map[string]string {
			return map[string]string{"reason": "persist_failed"}
		})
		return nil, err
	}

	if err := d.Limiter.Reset(ctx, rate.ActionLogin, creds.Email); err != nil {
		d.warn("flows: reset login attempts failed", "error", err)
	}
	d.inc(d.Metrics.LoginSuccess)
	d.audit(ctx, d.Events.LoginSuccess, true, creds.Email, nil, nil)
	return s, nil
}
