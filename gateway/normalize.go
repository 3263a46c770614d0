package gateway

import (
	"context"
	"errors"

	"github.com/MrEthical07/authflow/session"
)

// Normalize adapts gw to the error contract of [Gateway]. An *[HTTPClient] is returned
// as is.
func Normalize(gw Gateway) Gateway {
	switch gw.(type) {
	case nil:
		return nil
	case *HTTPClient, normalized:
		return gw
	}
	return normalized{next: gw}
}

// AsError converts a foreign failure into an *[Error] whose Message is err's text. A
// nil error, an error already carrying an *Error and a context error are returned
// unchanged. A StatusCode() int method anywhere in the chain sets Status.
func AsError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}
	out := &Error{Message: err.Error(), Err: err}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		out.Status = coded.StatusCode()
	}
	return out
}

type normalized struct {
	next Gateway
}

func (n normalized) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	s, err := n.next.Login(ctx, creds)
	return s, AsError(err)
}

func (n normalized) Register(ctx context.Context, creds Credentials) error {
	return AsError(n.next.Register(ctx, creds))
}

func (n normalized) RequestPasswordReset(ctx context.Context, email string) error {
	return AsError(n.next.RequestPasswordReset(ctx, email))
}

func (n normalized) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	token, err := n.next.VerifyOTP(ctx, email, otp)
	return token, AsError(err)
}

func (n normalized) CompleteRegistration(ctx context.Context, actionToken, password string) error {
	return AsError(n.next.CompleteRegistration(ctx, actionToken, password))
}

func (n normalized) CompletePasswordReset(ctx context.Context, actionToken, newPassword string) error {
	return AsError(n.next.CompletePasswordReset(ctx, actionToken, newPassword))
}

func (n normalized) RefreshToken(ctx context.Context, refreshToken string) (*session.Session, error) {
	s, err := n.next.RefreshToken(ctx, refreshToken)
	return s, AsError(err)
}

func (n normalized) FetchProfile(ctx context.Context, accessToken string) (*session.UserProfile, error) {
	p, err := n.next.FetchProfile(ctx, accessToken)
	return p, AsError(err)
}

func (n normalized) Logout(ctx context.Context, accessToken string) error {
	return AsError(n.next.Logout(ctx, accessToken))
}
