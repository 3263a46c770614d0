package machine

import "github.com/MrEthical07/authflow/session"

// EventType identifies an event.
type EventType uint8

const (
	EventLogin EventType = iota + 1
	EventRegister
	EventForgotPassword
	EventVerifyOTP
	EventCompleteRegistration
	EventResetPassword
	EventRefresh
	EventLogout
	EventCancel
	EventCheckSession
	EventGoToLogin
	EventGoToRegister
	EventGoToForgotPassword

	eventDone
	eventFailed
)

func (t EventType) String() string {
	switch t {
	case EventLogin:
		return "LOGIN"
	case EventRegister:
		return "REGISTER"
	case EventForgotPassword:
		return "FORGOT_PASSWORD"
	case EventVerifyOTP:
		return "VERIFY_OTP"
	case EventCompleteRegistration:
		return "COMPLETE_REGISTRATION"
	case EventResetPassword:
		return "RESET_PASSWORD"
	case EventRefresh:
		return "REFRESH"
	case EventLogout:
		return "LOGOUT"
	case EventCancel:
		return "CANCEL"
	case EventCheckSession:
		return "CHECK_SESSION"
	case EventGoToLogin:
		return "GO_TO_LOGIN"
	case EventGoToRegister:
		return "GO_TO_REGISTER"
	case EventGoToForgotPassword:
		return "GO_TO_FORGOT_PASSWORD"
	case eventDone:
		return "done.invoke"
	case eventFailed:
		return "error.invoke"
	default:
		return "UNKNOWN"
	}
}

// Internal reports whether t is an invocation result rather than an external event.
func (t EventType) Internal() bool {
	return t == eventDone || t == eventFailed
}

// Event is sent to a [Machine]. Only the payload fields relevant to Type are read.
type Event struct {
	Type     EventType
	Email    string
	Password string
	OTP      string

	invocation uint64
	session    *session.Session
	token      string
	err        error
	message    string
}

// Login starts a sign-in with the given credentials.
func Login(email, password string) Event {
	return Event{Type: EventLogin, Email: email, Password: password}
}

// Register starts a registration. The password is kept in the registration flow until
// the account is completed.
func Register(email, password string) Event {
	return Event{Type: EventRegister, Email: email, Password: password}
}

// ForgotPassword starts a password reset for email.
func ForgotPassword(email string) Event {
	return Event{Type: EventForgotPassword, Email: email}
}

// VerifyOTP submits the passcode for the active flow.
func VerifyOTP(otp string) Event {
	return Event{Type: EventVerifyOTP, OTP: otp}
}

// CompleteRegistration retries account completion with the stored action token.
func CompleteRegistration() Event {
	return Event{Type: EventCompleteRegistration}
}

// ResetPassword submits the new password of a reset flow.
func ResetPassword(newPassword string) Event {
	return Event{Type: EventResetPassword, Password: newPassword}
}

// Simple returns a payload-less event of type t.
func Simple(t EventType) Event {
	return Event{Type: t}
}

func done(s *session.Session, token string) Event {
	return Event{Type: eventDone, session: s, token: token}
}

func failed(err error) Event {
	return Event{Type: eventFailed, err: err}
}
