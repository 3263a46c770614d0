package authflow

import (
	"context"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/machine"
	"github.com/MrEthical07/authflow/session"
	"github.com/google/uuid"
)

// services runs the machine's invocations through the flow functions. Every
// invocation gets its own request ID, shared by all gateway calls it makes.
type services struct {
	deps flows.Deps
}

var _ machine.Services = (*services)(nil)

func withRequestID(ctx context.Context) context.Context {
	if _, ok := gateway.RequestIDFromContext(ctx); ok {
		return ctx
	}
	return gateway.WithRequestID(ctx, uuid.NewString())
}

func credentials(c machine.Credentials) gateway.Credentials {
	return gateway.Credentials{Email: c.Email, Password: c.Password}
}

func (s *services) CheckSession(ctx context.Context) (*session.Session, error) {
	return flows.RunCheckSession(withRequestID(ctx), s.deps)
}

func (s *services) Login(ctx context.Context, creds machine.Credentials) (*session.Session, error) {
	return flows.RunLogin(withRequestID(ctx), credentials(creds), s.deps)
}

func (s *services) AutoLogin(ctx context.Context, creds machine.Credentials) (*session.Session, error) {
	return flows.RunAutoLogin(withRequestID(ctx), credentials(creds), s.deps)
}

func (s *services) Register(ctx context.Context, creds machine.Credentials) error {
	return flows.RunRegister(withRequestID(ctx), credentials(creds), s.deps)
}

func (s *services) RequestPasswordReset(ctx context.Context, email string) error {
	return flows.RunRequestPasswordReset(withRequestID(ctx), email, s.deps)
}

func (s *services) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	return flows.RunVerifyOTP(withRequestID(ctx), email, otp, s.deps)
}

func (s *services) CompleteRegistration(ctx context.Context, actionToken, password string) error {
	return flows.RunCompleteRegistration(withRequestID(ctx), actionToken, password, s.deps)
}

func (s *services) CompletePasswordReset(ctx context.Context, actionToken, newPassword string) error {
	return flows.RunCompletePasswordReset(withRequestID(ctx), actionToken, newPassword, s.deps)
}

func (s *services) Refresh(ctx context.Context, current *session.Session) (*session.Session, error) {
	return flows.RunRefresh(withRequestID(ctx), current, s.deps)
}

func (s *services) RefreshProfile(ctx context.Context, current *session.Session) (*session.Session, error) {
	return flows.RunRefreshProfile(withRequestID(ctx), current, s.deps)
}

func (s *services) Logout(ctx context.Context, current *session.Session) error {
	return flows.RunLogout(withRequestID(ctx), current, s.deps)
}
