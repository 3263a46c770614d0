package flows

import (
	"context"

	"github.com/MrEthical07/authflow/gateway"
)

// RunRegister validates and submits a new account. The server answers by sending an
// OTP to the address.
func RunRegister(ctx context.Context, creds gateway.Credentials, deps Deps) error {
	if !deps.ready() {
		return deps.Errors.NotReady
	}

	email, err := deps.validateEmail(creds.Email)
	if err != nil {
		return err
	}
	if err := deps.validateNewPassword(creds.Password); err != nil {
		return err
	}

	if err := deps.Gateway.Register(ctx, gateway.Credentials{Email: email, Password: creds.Password}); err != nil {
		deps.inc(deps.Metrics.RegisterFailure)
		deps.audit(ctx, deps.Events.Register, false, email, err, nil)
		return err
	}

	deps.inc(deps.Metrics.RegisterSuccess)
	deps.audit(ctx, deps.Events.Register, true, email, nil, nil)
	return nil
}

// RunCompleteRegistration finalizes an account with the action token from OTP
// verification. Nothing is persisted; the auto-login that follows creates the session.
func RunCompleteRegistration(ctx context.Context, actionToken, password string, deps Deps) error {
	if !deps.ready() {
		return deps.Errors.NotReady
	}
	if err := deps.validateActionToken(actionToken); err != nil {
		return err
	}

	if err := deps.Gateway.CompleteRegistration(ctx, actionToken, password); err != nil {
		deps.audit(ctx, deps.Events.RegistrationComplete, false, "", err, nil)
		return err
	}

	deps.inc(deps.Metrics.RegistrationComplete)
	deps.audit(ctx, deps.Events.RegistrationComplete, true, "", nil, nil)
	return nil
}
