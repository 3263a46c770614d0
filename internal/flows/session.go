package flows

import (
	"context"

	"github.com/MrEthical07/authflow/session"
)

// RunCheckSession restores the persisted session at startup. A nil session with a nil
// error means logged out.
func RunCheckSession(ctx context.Context, deps Deps) (*session.Session, error) {
	if !deps.ready() {
		return nil, deps.Errors.NotReady
	}

	s, err := deps.Lifecycle.CheckSession(ctx)
	if err != nil {
		deps.inc(deps.Metrics.SessionMissing)
		deps.audit(ctx, deps.Events.SessionRestore, false, "", err, nil)
		return nil, err
	}
	if s == nil {
		deps.inc(deps.Metrics.SessionMissing)
		return nil, nil
	}

	deps.inc(deps.Metrics.SessionRestored)
	deps.audit(ctx, deps.Events.SessionRestore, true, subjectOf(s), nil, nil)
	return s, nil
}

// RunRefresh exchanges the refresh token of current. On failure the persisted session
// is removed, since the machine logs the user out.
func RunRefresh(ctx context.Context, current *session.Session, deps Deps) (*session.Session, error) {
	if !deps.ready() {
		return nil, deps.Errors.NotReady
	}

	next, err := deps.Lifecycle.Refresh(ctx, current)
	if err != nil {
		if clearErr := deps.Lifecycle.Clear(ctx); clearErr != nil {
			deps.warn("flows: clear session after failed refresh", "error", clearErr)
		}
		deps.inc(deps.Metrics.RefreshFailure)
		deps.audit(ctx, deps.Events.Refresh, false, subjectOf(current), err, nil)
		return nil, err
	}

	deps.inc(deps.Metrics.RefreshSuccess)
	deps.audit(ctx, deps.Events.Refresh, true, subjectOf(next), nil, nil)
	return next, nil
}

// RunRefreshProfile validates current against the server and returns the enriched
// session. Only a rejected session yields an error.
func RunRefreshProfile(ctx context.Context, current *session.Session, deps Deps) (*session.Session, error) {
	if !deps.ready() {
		return nil, deps.Errors.NotReady
	}

	s, err := deps.Lifecycle.Validate(ctx, current)
	if err != nil {
		deps.inc(deps.Metrics.ProfileRefreshFailed)
		return nil, err
	}
	return s, nil
}

// RunLogout signs out on the server, then removes the persisted session. A server
// failure leaves storage untouched. Without a session only storage is cleared.
func RunLogout(ctx context.Context, current *session.Session, deps Deps) error {
	if !deps.ready() {
		return deps.Errors.NotReady
	}

	if current.Valid() {
		if err := deps.Gateway.Logout(ctx, current.AccessToken); err != nil {
			deps.inc(deps.Metrics.LogoutFailure)
			deps.audit(ctx, deps.Events.Logout, false, subjectOf(current), err, nil)
			return err
		}
	}

	if err := deps.Lifecycle.Clear(ctx); err != nil {
		deps.inc(deps.Metrics.LogoutFailure)
		return err
	}

	deps.inc(deps.Metrics.Logout)
	deps.audit(ctx, deps.Events.Logout, true, subjectOf(current), nil, nil)
	return nil
}

func subjectOf(s *session.Session) string {
	if s == nil || s.Profile == nil {
		return ""
	}
	return s.Profile.Email
}
