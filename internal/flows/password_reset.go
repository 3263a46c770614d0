package flows

import (
	"context"

	"github.com/MrEthical07/authflow/internal/rate"
)

// RunRequestPasswordReset asks the server to send a reset OTP to email. Every request
// consumes an attempt, successful or not.
func RunRequestPasswordReset(ctx context.Context, email string, deps Deps) error {
	if !deps.ready() {
		return deps.Errors.NotReady
	}

	email, err := deps.validateEmail(email)
	if err != nil {
		return err
	}
	if err := deps.limited(ctx, rate.ActionPasswordReset, email); err != nil {
		return err
	}
	deps.recordAttempt(ctx, rate.ActionPasswordReset, email)

	if err := deps.Gateway.RequestPasswordReset(ctx, email); err != nil {
		deps.audit(ctx, deps.Events.ResetRequest, false, email, err, nil)
		return err
	}

	deps.inc(deps.Metrics.ResetRequested)
	deps.audit(ctx, deps.Events.ResetRequest, true, email, nil, nil)
	return nil
}

// RunCompletePasswordReset sets a new password with the action token from OTP
// verification.
func RunCompletePasswordReset(ctx context.Context, actionToken, newPassword string, deps Deps) error {
	if !deps.ready() {
		return deps.Errors.NotReady
	}
	if err := deps.validateActionToken(actionToken); err != nil {
		return err
	}
	if err := deps.validateNewPassword(newPassword); err != nil {
		return err
	}

	if err := deps.Gateway.CompletePasswordReset(ctx, actionToken, newPassword); err != nil {
		deps.inc(deps.Metrics.ResetFailure)
		deps.audit(ctx, deps.Events.ResetComplete, false, "", err, nil)
		return err
	}

	deps.inc(deps.Metrics.ResetSuccess)
	deps.audit(ctx, deps.Events.ResetComplete, true, "", nil, nil)
	return nil
}
