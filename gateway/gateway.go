package gateway

import (
	"context"

	"github.com/MrEthical07/authflow/session"
)

// Credentials is an email/password pair.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Gateway is the remote auth API.
//
// A failure should be an *[Error] whose Message is safe to show to a user. Any other
// error is shown by its Error() text once the gateway is wrapped with [Normalize], which
// the client does for every gateway it did not build. Context errors pass through and
// show the generic message of the failed step.
type Gateway interface {
	Login(ctx context.Context, creds Credentials) (*session.Session, error)
	Register(ctx context.Context, creds Credentials) error
	RequestPasswordReset(ctx context.Context, email string) error
	// VerifyOTP confirms a one-time passcode and returns the action token that
	// authorizes the next step of the flow.
	VerifyOTP(ctx context.Context, email, otp string) (actionToken string, err error)
	CompleteRegistration(ctx context.Context, actionToken, password string) error
	CompletePasswordReset(ctx context.Context, actionToken, newPassword string) error
	// RefreshToken returns a session of which only AccessToken is meaningful.
	RefreshToken(ctx context.Context, refreshToken string) (*session.Session, error)
	FetchProfile(ctx context.Context, accessToken string) (*session.UserProfile, error)
	Logout(ctx context.Context, accessToken string) error
}
