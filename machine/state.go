package machine

import "strings"

// State is one fully qualified machine state.
type State uint8

const (
	CheckingSession State = iota
	Authorized
	AuthorizedRefreshing
	LoggingOut
	LoginIdle
	LoginSubmitting
	RegisterForm
	RegisterSubmitting
	RegisterVerifyOTP
	RegisterVerifyingOTP
	RegisterCompleting
	RegisterLoggingIn
	ForgotPasswordIdle
	ForgotPasswordSubmitting
	ForgotPasswordVerifyOTP
	ForgotPasswordVerifyingOTP
	ForgotPasswordReset
	ForgotPasswordResetting
	ForgotPasswordLoggingIn
	stateCount
)

var stateNames = [stateCount]string{
	CheckingSession:            "checkingSession",
	Authorized:                 "authorized",
	AuthorizedRefreshing:       "authorized.refreshing",
	LoggingOut:                 "loggingOut",
	LoginIdle:                  "unauthorized.login.idle",
	LoginSubmitting:            "unauthorized.login.submitting",
	RegisterForm:               "unauthorized.register.form",
	RegisterSubmitting:         "unauthorized.register.submitting",
	RegisterVerifyOTP:          "unauthorized.register.verifyOtp",
	RegisterVerifyingOTP:       "unauthorized.register.verifyingOtp",
	RegisterCompleting:         "unauthorized.register.completingRegistration",
	RegisterLoggingIn:          "unauthorized.register.loggingIn",
	ForgotPasswordIdle:         "unauthorized.forgotPassword.idle",
	ForgotPasswordSubmitting:   "unauthorized.forgotPassword.submitting",
	ForgotPasswordVerifyOTP:    "unauthorized.forgotPassword.verifyOtp",
	ForgotPasswordVerifyingOTP: "unauthorized.forgotPassword.verifyingOtp",
	ForgotPasswordReset:        "unauthorized.forgotPassword.resetPassword",
	ForgotPasswordResetting:    "unauthorized.forgotPassword.resettingPassword",
	ForgotPasswordLoggingIn:    "unauthorized.forgotPassword.loggingInAfterReset",
}

// States lists every state in declaration order.
func States() []State {
	out := make([]State, stateCount)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

func (s State) String() string {
	if s >= stateCount {
		return "unknown"
	}
	return stateNames[s]
}

// Matches reports whether s is pattern or nested under it, so "unauthorized" matches
// "unauthorized.login.idle" but "unauthorized.log" does not.
func (s State) Matches(pattern string) bool {
	name := s.String()
	return name == pattern || strings.HasPrefix(name, pattern+".")
}

// IsAuthorized reports whether a session is active in s.
func (s State) IsAuthorized() bool {
	return s == Authorized || s == AuthorizedRefreshing
}

// IsUnauthorized reports whether s is one of the signed-out states.
func (s State) IsUnauthorized() bool {
	return s.Matches("unauthorized")
}

// Busy reports whether s waits on an invocation. The authorized side task does not
// count.
func (s State) Busy() bool {
	switch s {
	case CheckingSession, AuthorizedRefreshing, LoggingOut,
		LoginSubmitting,
		RegisterSubmitting, RegisterVerifyingOTP, RegisterCompleting, RegisterLoggingIn,
		ForgotPasswordSubmitting, ForgotPasswordVerifyingOTP, ForgotPasswordResetting, ForgotPasswordLoggingIn:
		return true
	}
	return false
}
