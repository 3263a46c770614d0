package machine

import (
	"errors"
	"strings"

	"github.com/MrEthical07/authflow/session"
)

type reducer func(Context, Event) Context

type transition struct {
	guard  func(Context, Event) bool
	target State
	reduce reducer
}

// outcome classifies what an event did.
type outcome uint8

const (
	outcomeTransition outcome = iota
	outcomeIgnored
	outcomeGuardRejected
)

const (
	msgLoginFailed    = "Login failed"
	msgRegisterFailed = "Registration failed"
	msgOTPFailed      = "OTP verification failed"
	msgResetFailed    = "Password reset failed"
	msgRefreshFailed  = "Session refresh failed"
	msgLogoutFailed   = "Logout failed"
)

var table = buildTable()

// next is the pure transition function.
func next(st State, c Context, ev Event) (State, Context, outcome) {
	candidates := table[st][ev.Type]
	if len(candidates) == 0 {
		return st, c, outcomeIgnored
	}
	for _, tr := range candidates {
		if tr.guard != nil && !tr.guard(c, ev) {
			continue
		}
		out := c
		if tr.reduce != nil {
			out = tr.reduce(c.Clone(), ev)
		}
		return tr.target, out, outcomeTransition
	}
	return st, c, outcomeGuardRejected
}

// Accepts reports whether st has a transition for t. Guards are not evaluated.
func (s State) Accepts(t EventType) bool {
	return len(table[s][t]) > 0
}

func buildTable() map[State]map[EventType][]transition {
	t := make(map[State]map[EventType][]transition, stateCount)
	on := func(st State, ev EventType, trs ...transition) {
		if t[st] == nil {
			t[st] = make(map[EventType][]transition)
		}
		t[st][ev] = append(t[st][ev], trs...)
	}
	to := func(target State, rs ...reducer) transition {
		return transition{target: target, reduce: compose(rs...)}
	}
	guarded := func(guard func(Context, Event) bool, target State, rs ...reducer) transition {
		return transition{guard: guard, target: target, reduce: compose(rs...)}
	}

	// startup
	on(CheckingSession, eventDone,
		guarded(hasResultSession, Authorized, setSession, clearFlows, clearError),
		to(LoginIdle, clearSession))
	on(CheckingSession, eventFailed, to(LoginIdle, clearSession))

	// authorized
	on(Authorized, EventLogout, to(LoggingOut, clearError))
	on(Authorized, EventRefresh, to(AuthorizedRefreshing, clearError))
	on(Authorized, EventCheckSession, to(CheckingSession, clearError))
	on(Authorized, eventDone, to(Authorized, setSessionIfPresent))
	on(Authorized, eventFailed,
		guarded(sessionRejected, LoginIdle, clearSession, clearFlows, setErrorText(msgRefreshFailed)),
		to(Authorized))

	// a logout during a refresh waits for the refresh result
	on(AuthorizedRefreshing, EventLogout, to(AuthorizedRefreshing, queueLogout))
	on(AuthorizedRefreshing, EventCancel, to(AuthorizedRefreshing, dropLogout))
	on(AuthorizedRefreshing, eventDone,
		guarded(logoutQueued, LoggingOut, setSession, dropLogout),
		to(Authorized, setSession))
	on(AuthorizedRefreshing, eventFailed, to(LoginIdle, clearSession, clearFlows, dropLogout, setErrorText(msgRefreshFailed)))

	on(LoggingOut, eventDone, to(LoginIdle, clearSession, clearFlows, clearError))
	on(LoggingOut, eventFailed, to(Authorized, setError(msgLogoutFailed)))

	// navigation shared by every resting unauthorized state
	for _, st := range []State{LoginIdle, RegisterForm, RegisterVerifyOTP, ForgotPasswordIdle, ForgotPasswordVerifyOTP, ForgotPasswordReset} {
		on(st, EventGoToLogin, to(LoginIdle, clearFlows, clearError))
		on(st, EventGoToRegister, to(RegisterForm, clearFlows, clearError))
		on(st, EventGoToForgotPassword, to(ForgotPasswordIdle, clearFlows, clearError))
		on(st, EventCheckSession, to(CheckingSession, clearFlows, clearError))
		on(st, EventLogout, to(st))
		if st != LoginIdle {
			on(st, EventCancel, to(LoginIdle, clearFlows, clearError))
		}
	}
	on(LoginIdle, EventCancel, to(LoginIdle))

	// signed out already; the running flow keeps going
	for _, st := range []State{
		LoginSubmitting, RegisterSubmitting, RegisterVerifyingOTP, RegisterCompleting, RegisterLoggingIn,
		ForgotPasswordSubmitting, ForgotPasswordVerifyingOTP, ForgotPasswordResetting, ForgotPasswordLoggingIn,
	} {
		on(st, EventLogout, to(st))
	}

	// login
	on(LoginIdle, EventLogin, to(LoginSubmitting, clearError))
	on(LoginIdle, EventRegister, to(RegisterSubmitting, startRegistration, clearError))
	on(LoginIdle, EventForgotPassword, to(ForgotPasswordSubmitting, startPasswordReset, clearError))
	on(LoginSubmitting, eventDone, guarded(hasResultSession, Authorized, setSession, clearFlows, clearError), to(LoginIdle, setErrorText(msgLoginFailed)))
	on(LoginSubmitting, eventFailed, to(LoginIdle, setError(msgLoginFailed)))
	on(LoginSubmitting, EventCancel, to(LoginIdle))

	// registration
	on(RegisterForm, EventRegister, to(RegisterSubmitting, startRegistration, clearError))
	on(RegisterSubmitting, eventDone, to(RegisterVerifyOTP))
	on(RegisterSubmitting, eventFailed, to(RegisterForm, setError(msgRegisterFailed)))
	on(RegisterSubmitting, EventCancel, to(RegisterForm, clearFlows))

	on(RegisterVerifyOTP, EventVerifyOTP, guarded(registrationHasEmail, RegisterVerifyingOTP, clearError))
	on(RegisterVerifyOTP, EventCompleteRegistration, guarded(registrationHasToken, RegisterCompleting, clearError))
	on(RegisterVerifyingOTP, eventDone, guarded(hasResultToken, RegisterCompleting, setRegistrationToken), to(RegisterVerifyOTP, setErrorText(msgOTPFailed)))
	on(RegisterVerifyingOTP, eventFailed, to(RegisterVerifyOTP, setError(msgOTPFailed)))
	on(RegisterVerifyingOTP, EventCancel, to(RegisterForm, clearFlows))

	on(RegisterCompleting, eventDone, to(RegisterLoggingIn))
	on(RegisterCompleting, eventFailed, to(RegisterVerifyOTP, setError(msgRegisterFailed)))
	on(RegisterCompleting, EventCancel, to(RegisterForm, clearFlows))

	on(RegisterLoggingIn, eventDone, guarded(hasResultSession, Authorized, setSession, clearFlows, clearError), to(LoginIdle, clearFlows, setErrorText(msgLoginFailed)))
	on(RegisterLoggingIn, eventFailed, to(LoginIdle, clearFlows, setError(msgLoginFailed)))
	on(RegisterLoggingIn, EventCancel, to(LoginIdle, clearFlows))

	// password reset
	on(ForgotPasswordIdle, EventForgotPassword, to(ForgotPasswordSubmitting, startPasswordReset, clearError))
	on(ForgotPasswordSubmitting, eventDone, to(ForgotPasswordVerifyOTP))
	on(ForgotPasswordSubmitting, eventFailed, to(ForgotPasswordIdle, setError(msgResetFailed)))
	on(ForgotPasswordSubmitting, EventCancel, to(ForgotPasswordIdle, clearFlows))

	on(ForgotPasswordVerifyOTP, EventVerifyOTP, guarded(resetHasEmail, ForgotPasswordVerifyingOTP, clearError))
	on(ForgotPasswordVerifyingOTP, eventDone, guarded(hasResultToken, ForgotPasswordReset, setResetToken), to(ForgotPasswordVerifyOTP, setErrorText(msgOTPFailed)))
	on(ForgotPasswordVerifyingOTP, eventFailed, to(ForgotPasswordVerifyOTP, setError(msgOTPFailed)))
	on(ForgotPasswordVerifyingOTP, EventCancel, to(ForgotPasswordIdle, clearFlows))

	on(ForgotPasswordReset, EventResetPassword, guarded(resetHasToken, ForgotPasswordResetting, setResetCredentials, clearError))
	on(ForgotPasswordResetting, eventDone, to(ForgotPasswordLoggingIn))
	on(ForgotPasswordResetting, eventFailed, to(ForgotPasswordReset, setError(msgResetFailed)))
	on(ForgotPasswordResetting, EventCancel, to(ForgotPasswordIdle, clearFlows))

	on(ForgotPasswordLoggingIn, eventDone, guarded(hasResultSession, Authorized, setSession, clearFlows, clearError), to(LoginIdle, clearFlows, setErrorText(msgLoginFailed)))
	on(ForgotPasswordLoggingIn, eventFailed, to(LoginIdle, clearFlows, setError(msgLoginFailed)))
	on(ForgotPasswordLoggingIn, EventCancel, to(LoginIdle, clearFlows))

	return t
}

func compose(rs ...reducer) reducer {
	if len(rs) == 0 {
		return nil
	}
	return func(c Context, ev Event) Context {
		for _, r := range rs {
			c = r(c, ev)
		}
		return c
	}
}

// guards

func hasResultSession(_ Context, ev Event) bool {
	return ev.session.Valid()
}

func hasResultToken(_ Context, ev Event) bool {
	return ev.token != ""
}

func registrationHasEmail(c Context, _ Event) bool {
	return c.Registration.Email != ""
}

func registrationHasToken(c Context, _ Event) bool {
	return c.Registration.ActionToken != ""
}

func resetHasEmail(c Context, _ Event) bool {
	return c.PasswordReset.Email != ""
}

func resetHasToken(c Context, _ Event) bool {
	return c.PasswordReset.ActionToken != ""
}

func logoutQueued(c Context, _ Event) bool {
	return c.LogoutPending
}

func sessionRejected(_ Context, ev Event) bool {
	return errors.Is(ev.err, session.ErrSessionRejected)
}

// reducers

func clearError(c Context, _ Event) Context {
	c.Error = nil
	return c
}

func setError(fallback string) reducer {
	return func(c Context, ev Event) Context {
		msg := strings.TrimSpace(ev.message)
		if msg == "" {
			msg = fallback
		}
		c.Error = &AuthError{Message: msg}
		return c
	}
}

func setErrorText(msg string) reducer {
	return func(c Context, _ Event) Context {
		c.Error = &AuthError{Message: msg}
		return c
	}
}

func setSession(c Context, ev Event) Context {
	c.Session = ev.session.Clone()
	return c
}

func setSessionIfPresent(c Context, ev Event) Context {
	if ev.session.Valid() {
		c.Session = ev.session.Clone()
	}
	return c
}

func clearSession(c Context, _ Event) Context {
	c.Session = nil
	return c
}

func clearFlows(c Context, _ Event) Context {
	c.Registration = FlowContext{}
	c.PasswordReset = FlowContext{}
	return c
}

func startRegistration(c Context, ev Event) Context {
	c.Registration = FlowContext{
		Email:              ev.Email,
		PendingCredentials: &Credentials{Email: ev.Email, Password: ev.Password},
	}
	c.PasswordReset = FlowContext{}
	return c
}

func startPasswordReset(c Context, ev Event) Context {
	c.PasswordReset = FlowContext{Email: ev.Email}
	c.Registration = FlowContext{}
	return c
}

func queueLogout(c Context, _ Event) Context {
	c.LogoutPending = true
	return c
}

func dropLogout(c Context, _ Event) Context {
	c.LogoutPending = false
	return c
}

func setRegistrationToken(c Context, ev Event) Context {
	c.Registration.ActionToken = ev.token
	return c
}

func setResetToken(c Context, ev Event) Context {
	c.PasswordReset.ActionToken = ev.token
	return c
}

func setResetCredentials(c Context, ev Event) Context {
	c.PasswordReset.PendingCredentials = &Credentials{Email: c.PasswordReset.Email, Password: ev.Password}
	return c
}
