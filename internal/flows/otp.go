package flows

import (
	"context"

	"github.com/MrEthical07/authflow/internal/rate"
)

// RunVerifyOTP checks a one-time passcode for email and returns the action token.
func RunVerifyOTP(ctx context.Context, email, otp string, deps Deps) (string, error) {
	if !deps.ready() {
		return "", deps.Errors.NotReady
	}

	email, err := deps.validateEmail(email)
	if err != nil {
		return "", err
	}
	otp, err = deps.validateOTP(otp)
	if err != nil {
		return "", err
	}
	if err := deps.limited(ctx, rate.ActionVerifyOTP, email); err != nil {
		return "", err
	}

	token, err := deps.Gateway.VerifyOTP(ctx, email, otp)
	if err != nil {
		deps.recordAttempt(ctx, rate.ActionVerifyOTP, email)
		deps.inc(deps.Metrics.OTPVerifyFailure)
		deps.audit(ctx, deps.Events.OTPVerify, false, email, err, nil)
		return "", err
	}

	if err := deps.Limiter.Reset(ctx, rate.ActionVerifyOTP, email); err != nil {
		deps.warn("flows: reset otp attempts failed", "error", err)
	}
	deps.inc(deps.Metrics.OTPVerifySuccess)
	deps.audit(ctx, deps.Events.OTPVerify, true, email, nil, nil)
	return token, nil
}
