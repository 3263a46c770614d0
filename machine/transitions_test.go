package machine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/authflow/session"
)

func TestStateNames(t *testing.T) {
	seen := map[string]State{}
	for _, st := range States() {
		name := st.String()
		if name == "" || name == "unknown" {
			t.Fatalf("state %d has no name", st)
		}
		if other, dup := seen[name]; dup {
			t.Fatalf("states %d and %d share name %q", st, other, name)
		}
		seen[name] = st
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		state   State
		pattern string
		want    bool
	}{
		{RegisterVerifyOTP, "unauthorized", true},
		{RegisterVerifyOTP, "unauthorized.register", true},
		{RegisterVerifyOTP, "unauthorized.register.verifyOtp", true},
		{RegisterVerifyOTP, "unauthorized.reg", false},
		{RegisterVerifyOTP, "unauthorized.login", false},
		{AuthorizedRefreshing, "authorized", true},
		{Authorized, "authorized.refreshing", false},
		{LoggingOut, "authorized", false},
		{CheckingSession, "unauthorized", false},
	}
	for _, tt := range tests {
		if got := tt.state.Matches(tt.pattern); got != tt.want {
			t.Errorf("%s.Matches(%q) = %v, want %v", tt.state, tt.pattern, got, tt.want)
		}
	}
}

func TestEveryBusyUnauthorizedStateAcceptsCancel(t *testing.T) {
	for _, st := range States() {
		if st.IsUnauthorized() && st.Busy() && !st.Accepts(EventCancel) {
			t.Errorf("%s does not accept CANCEL", st)
		}
	}
}

func TestEveryBusyStateResolvesBothOutcomes(t *testing.T) {
	for _, st := range States() {
		if !st.Busy() {
			continue
		}
		if !st.Accepts(eventDone) || !st.Accepts(eventFailed) {
			t.Errorf("%s cannot settle its invocation", st)
		}
	}
}

func TestRestingUnauthorizedStatesNavigate(t *testing.T) {
	for _, st := range States() {
		if !st.IsUnauthorized() || st.Busy() {
			continue
		}
		for _, ev := range []EventType{EventGoToLogin, EventGoToRegister, EventGoToForgotPassword, EventLogout, EventCheckSession, EventCancel} {
			if !st.Accepts(ev) {
				t.Errorf("%s does not accept %s", st, ev)
			}
		}
	}
}

func TestNextLoginFailureUsesFallback(t *testing.T) {
	c := Context{}
	st, c, out := next(LoginIdle, c, Login("a@b.io", "pw"))
	if out != outcomeTransition || st != LoginSubmitting {
		t.Fatalf("LOGIN: %s %v", st, out)
	}

	ev := failed(errors.New(""))
	st, c, _ = next(st, c, ev)
	if st != LoginIdle || c.Error == nil || c.Error.Message != msgLoginFailed {
		t.Fatalf("expected fallback message, got %s %+v", st, c.Error)
	}

	ev = failed(errors.New("bad"))
	ev.message = "Invalid credentials"
	_, c, _ = next(LoginSubmitting, Context{}, ev)
	if c.Error.Message != "Invalid credentials" {
		t.Fatalf("message = %q", c.Error.Message)
	}
}

func TestNextClearsErrorOnNewAttempt(t *testing.T) {
	c := Context{Error: &AuthError{Message: "old"}}
	_, c, _ = next(LoginIdle, c, Login("a@b.io", "pw"))
	if c.Error != nil {
		t.Fatal("error survived a new attempt")
	}
}

func TestNextGuardsAreSilent(t *testing.T) {
	orig := Context{Error: &AuthError{Message: "keep"}}

	st, c, out := next(RegisterVerifyOTP, orig, VerifyOTP("123456"))
	if out != outcomeGuardRejected || st != RegisterVerifyOTP {
		t.Fatalf("expected guard rejection, got %s %v", st, out)
	}
	if c.Error == nil || c.Error.Message != "keep" {
		t.Fatal("guard rejection changed context")
	}

	if _, _, out := next(ForgotPasswordReset, Context{PasswordReset: FlowContext{Email: "a@b.io"}}, ResetPassword("newpassword")); out != outcomeGuardRejected {
		t.Fatalf("RESET_PASSWORD without action token: %v", out)
	}
	if _, _, out := next(RegisterVerifyOTP, Context{Registration: FlowContext{Email: "a@b.io"}}, CompleteRegistration()); out != outcomeGuardRejected {
		t.Fatalf("COMPLETE_REGISTRATION without action token: %v", out)
	}
}

func TestNextRegistrationKeepsFlowOnFailure(t *testing.T) {
	st, c, _ := next(RegisterForm, Context{}, Register("a@b.io", "password1"))
	if st != RegisterSubmitting || c.Registration.Email != "a@b.io" || c.Registration.PendingCredentials.Password != "password1" {
		t.Fatalf("REGISTER: %s %+v", st, c.Registration)
	}

	st, c, _ = next(st, c, done(nil, ""))
	if st != RegisterVerifyOTP {
		t.Fatalf("register done: %s", st)
	}

	st, c, _ = next(st, c, VerifyOTP("123456"))
	failedOTP := failed(errors.New("x"))
	failedOTP.message = "Invalid code"
	st, c, _ = next(st, c, failedOTP)
	if st != RegisterVerifyOTP || c.Error.Message != "Invalid code" || c.Registration.Email != "a@b.io" {
		t.Fatalf("otp failure: %s %+v", st, c)
	}

	st, c, _ = next(st, c, VerifyOTP("123456"))
	st, c, _ = next(st, c, done(nil, "act-1"))
	if st != RegisterCompleting || c.Registration.ActionToken != "act-1" {
		t.Fatalf("otp done: %s %+v", st, c.Registration)
	}

	st, c, _ = next(st, c, failed(errors.New("")))
	if st != RegisterVerifyOTP || c.Registration.ActionToken != "act-1" || c.Error.Message != msgRegisterFailed {
		t.Fatalf("completion failure must keep the token: %s %+v", st, c)
	}

	st, c, out := next(st, c, CompleteRegistration())
	if out != outcomeTransition || st != RegisterCompleting || c.Error != nil {
		t.Fatalf("COMPLETE_REGISTRATION retry: %s %v", st, out)
	}
}

func TestNextCancelClearsFlow(t *testing.T) {
	c := Context{Registration: FlowContext{Email: "a@b.io", PendingCredentials: &Credentials{Email: "a@b.io", Password: "p"}}}
	st, c, _ := next(RegisterSubmitting, c, Simple(EventCancel))
	if st != RegisterForm || c.Registration.Active() {
		t.Fatalf("cancel: %s %+v", st, c.Registration)
	}

	c = Context{PasswordReset: FlowContext{Email: "a@b.io", ActionToken: "t"}}
	st, c, _ = next(ForgotPasswordResetting, c, Simple(EventCancel))
	if st != ForgotPasswordIdle || c.PasswordReset.Active() {
		t.Fatalf("cancel: %s %+v", st, c.PasswordReset)
	}
}

func TestNextFlowsAreIndependent(t *testing.T) {
	c := Context{Registration: FlowContext{Email: "reg@b.io", PendingCredentials: &Credentials{Email: "reg@b.io", Password: "secret"}}}
	st, c, _ := next(RegisterForm, c, Simple(EventGoToForgotPassword))
	if st != ForgotPasswordIdle || c.Registration.Active() {
		t.Fatalf("navigation leaked registration: %+v", c.Registration)
	}

	_, c, _ = next(LoginIdle, Context{Registration: FlowContext{Email: "reg@b.io"}}, ForgotPassword("reset@b.io"))
	if c.Registration.Active() || c.PasswordReset.Email != "reset@b.io" {
		t.Fatalf("FORGOT_PASSWORD: %+v", c)
	}
}

func TestNextAuthorizedEdges(t *testing.T) {
	s := &session.Session{AccessToken: "a", RefreshToken: "r"}
	c := Context{Session: s}

	st, c2, _ := next(Authorized, c, Simple(EventLogout))
	st, c2, _ = next(st, c2, failed(errors.New("")))
	if st != Authorized || c2.Session == nil || c2.Error.Message != msgLogoutFailed {
		t.Fatalf("logout failure: %s %+v", st, c2)
	}

	st, c2, _ = next(Authorized, c, Simple(EventRefresh))
	st, c2, _ = next(st, c2, failed(errors.New("boom")))
	if st != LoginIdle || c2.Session != nil || c2.Error.Message != msgRefreshFailed {
		t.Fatalf("refresh failure: %s %+v", st, c2)
	}

	st, c2, _ = next(Authorized, c, failed(errors.New("profile")))
	if st != Authorized || c2.Error != nil || c2.Session != s {
		t.Fatalf("profile side task failure must be ignored: %s %+v", st, c2)
	}

	rejected := failed(fmt.Errorf("%w: %w", session.ErrSessionRejected, errors.New("401")))
	st, c2, _ = next(Authorized, c, rejected)
	if st != LoginIdle || c2.Session != nil || c2.Error == nil || c2.Error.Message != msgRefreshFailed {
		t.Fatalf("rejected session must sign out: %s %+v", st, c2)
	}

	if _, _, out := next(Authorized, c, Login("a@b.io", "pw")); out != outcomeIgnored {
		t.Fatalf("LOGIN while authorized: %v", out)
	}
}

func TestNextLogoutWhileUnauthorizedIsNoop(t *testing.T) {
	st, c, out := next(LoginIdle, Context{}, Simple(EventLogout))
	if out != outcomeTransition || st != LoginIdle || c.Session != nil {
		t.Fatalf("LOGOUT in login.idle: %s %v", st, out)
	}

	for _, busy := range States() {
		if !busy.IsUnauthorized() || !busy.Busy() {
			continue
		}
		flow := Context{Registration: FlowContext{Email: "a@b.io", ActionToken: "t"}}
		st, c, out := next(busy, flow, Simple(EventLogout))
		if out != outcomeTransition || st != busy {
			t.Fatalf("LOGOUT in %s: %s %v", busy, st, out)
		}
		if c.Registration.ActionToken != "t" {
			t.Fatalf("LOGOUT in %s touched the flow: %+v", busy, c.Registration)
		}
	}
}

func TestNextLogoutDuringRefreshIsQueued(t *testing.T) {
	s := &session.Session{AccessToken: "a", RefreshToken: "r"}
	fresh := &session.Session{AccessToken: "b", RefreshToken: "r"}

	st, c, _ := next(Authorized, Context{Session: s}, Simple(EventRefresh))
	st, c, out := next(st, c, Simple(EventLogout))
	if out != outcomeTransition || st != AuthorizedRefreshing || !c.LogoutPending {
		t.Fatalf("LOGOUT while refreshing: %s %v %+v", st, out, c)
	}

	st2, c2, _ := next(st, c, done(fresh, ""))
	if st2 != LoggingOut || c2.LogoutPending || c2.Session.AccessToken != "b" {
		t.Fatalf("refresh done with queued logout: %s %+v", st2, c2)
	}

	st2, c2, _ = next(st, c, failed(errors.New("expired")))
	if st2 != LoginIdle || c2.LogoutPending || c2.Session != nil {
		t.Fatalf("refresh failure with queued logout: %s %+v", st2, c2)
	}

	st2, c2, _ = next(st, c, Simple(EventCancel))
	if st2 != AuthorizedRefreshing || c2.LogoutPending {
		t.Fatalf("CANCEL must drop the queued logout: %s %+v", st2, c2)
	}
	st2, c2, _ = next(st2, c2, done(fresh, ""))
	if st2 != Authorized || c2.Session.AccessToken != "b" {
		t.Fatalf("refresh done after cancelled logout: %s %+v", st2, c2)
	}
}

func TestNextCheckingSession(t *testing.T) {
	st, c, _ := next(CheckingSession, Context{}, done(&session.Session{AccessToken: "a"}, ""))
	if st != Authorized || c.Session.AccessToken != "a" {
		t.Fatalf("restored: %s", st)
	}
	st, c, _ = next(CheckingSession, Context{}, done(nil, ""))
	if st != LoginIdle || c.Error != nil {
		t.Fatalf("no session: %s %+v", st, c.Error)
	}
	st, c, _ = next(CheckingSession, Context{}, failed(errors.New("storage down")))
	if st != LoginIdle || c.Error != nil {
		t.Fatalf("startup must not surface errors: %s %+v", st, c.Error)
	}
}

func TestReducersDoNotMutateInput(t *testing.T) {
	orig := Context{
		Session:       &session.Session{AccessToken: "a"},
		PasswordReset: FlowContext{Email: "a@b.io", ActionToken: "t"},
	}
	_, _, _ = next(ForgotPasswordReset, orig, ResetPassword("newpassword"))
	if orig.PasswordReset.PendingCredentials != nil {
		t.Fatal("reducer mutated the input context")
	}
}
