package machine

import (
	"context"

	"github.com/MrEthical07/authflow/session"
)

// Services performs the work behind invoking states. Implementations must honor ctx:
// it is cancelled when the machine stops.
type Services interface {
	// CheckSession restores the persisted session; nil means logged out.
	CheckSession(ctx context.Context) (*session.Session, error)
	Login(ctx context.Context, creds Credentials) (*session.Session, error)
	// AutoLogin signs in at the end of a flow. creds may be empty when the flow lost
	// them; the server is expected to reject such a call.
	AutoLogin(ctx context.Context, creds Credentials) (*session.Session, error)
	Register(ctx context.Context, creds Credentials) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) (actionToken string, err error)
	CompleteRegistration(ctx context.Context, actionToken, password string) error
	CompletePasswordReset(ctx context.Context, actionToken, newPassword string) error
	Refresh(ctx context.Context, current *session.Session) (*session.Session, error)
	// RefreshProfile validates current and returns it with a fresh profile.
	RefreshProfile(ctx context.Context, current *session.Session) (*session.Session, error)
	Logout(ctx context.Context, current *session.Session) error
}

type invoker func(ctx context.Context, svc Services) Event

// invocationFor returns the work started when st is entered with c, if any. trigger is
// the event that caused the entry.
func invocationFor(st State, c Context, trigger Event) (invoker, bool) {
	switch st {
	case CheckingSession:
		return func(ctx context.Context, svc Services) Event {
			s, err := svc.CheckSession(ctx)
			if err != nil {
				return failed(err)
			}
			return done(s, "")
		}, true

	case LoginSubmitting:
		creds := Credentials{Email: trigger.Email, Password: trigger.Password}
		return sessionCall(func(ctx context.Context, svc Services) (*session.Session, error) {
			return svc.Login(ctx, creds)
		}), true

	case RegisterSubmitting:
		creds := pending(c.Registration)
		return errCall(func(ctx context.Context, svc Services) error {
			return svc.Register(ctx, creds)
		}), true

	case RegisterVerifyingOTP, ForgotPasswordVerifyingOTP:
		email := c.Registration.Email
		if st == ForgotPasswordVerifyingOTP {
			email = c.PasswordReset.Email
		}
		otp := trigger.OTP
		return func(ctx context.Context, svc Services) Event {
			token, err := svc.VerifyOTP(ctx, email, otp)
			if err != nil {
				return failed(err)
			}
			return done(nil, token)
		}, true

	case RegisterCompleting:
		token, password := c.Registration.ActionToken, pending(c.Registration).Password
		return errCall(func(ctx context.Context, svc Services) error {
			return svc.CompleteRegistration(ctx, token, password)
		}), true

	case RegisterLoggingIn, ForgotPasswordLoggingIn:
		flow := c.Registration
		if st == ForgotPasswordLoggingIn {
			flow = c.PasswordReset
		}
		creds := pending(flow)
		return sessionCall(func(ctx context.Context, svc Services) (*session.Session, error) {
			return svc.AutoLogin(ctx, creds)
		}), true

	case ForgotPasswordSubmitting:
		email := c.PasswordReset.Email
		return errCall(func(ctx context.Context, svc Services) error {
			return svc.RequestPasswordReset(ctx, email)
		}), true

	case ForgotPasswordResetting:
		token, password := c.PasswordReset.ActionToken, pending(c.PasswordReset).Password
		return errCall(func(ctx context.Context, svc Services) error {
			return svc.CompletePasswordReset(ctx, token, password)
		}), true

	case Authorized:
		if c.Session == nil || c.Session.Profile != nil {
			return nil, false
		}
		current := c.Session.Clone()
		return sessionCall(func(ctx context.Context, svc Services) (*session.Session, error) {
			return svc.RefreshProfile(ctx, current)
		}), true

	case AuthorizedRefreshing:
		current := c.Session.Clone()
		return sessionCall(func(ctx context.Context, svc Services) (*session.Session, error) {
			return svc.Refresh(ctx, current)
		}), true

	case LoggingOut:
		current := c.Session.Clone()
		return errCall(func(ctx context.Context, svc Services) error {
			return svc.Logout(ctx, current)
		}), true
	}
	return nil, false
}

// pending returns the stored credentials of f, or empty credentials when they were lost.
func pending(f FlowContext) Credentials {
	if f.PendingCredentials == nil {
		return Credentials{}
	}
	return *f.PendingCredentials
}

func sessionCall(fn func(context.Context, Services) (*session.Session, error)) invoker {
	return func(ctx context.Context, svc Services) Event {
		s, err := fn(ctx, svc)
		if err != nil {
			return failed(err)
		}
		return done(s, "")
	}
}

func errCall(fn func(context.Context, Services) error) invoker {
	return func(ctx context.Context, svc Services) Event {
		if err := fn(ctx, svc); err != nil {
			return failed(err)
		}
		return done(nil, "")
	}
}
