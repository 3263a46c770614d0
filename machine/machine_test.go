package machine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/session"
)

type fakeServices struct {
	mu    sync.Mutex
	calls []string

	restored    *session.Session
	loginResult *session.Session
	loginErr    error
	actionToken string
	logoutErr   error
	refreshErr  error
	profile     *session.UserProfile

	// gate, when set, blocks Login until closed
	gate chan struct{}
}

func (f *fakeServices) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeServices) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeServices) CheckSession(context.Context) (*session.Session, error) {
	f.record("checkSession")
	return f.restored, nil
}

func (f *fakeServices) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	f.record("login:" + creds.Email)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.loginResult, f.loginErr
}

func (f *fakeServices) AutoLogin(_ context.Context, creds Credentials) (*session.Session, error) {
	f.record("login:" + creds.Email)
	return f.loginResult, f.loginErr
}

func (f *fakeServices) Register(_ context.Context, creds Credentials) error {
	f.record("register:" + creds.Email)
	return nil
}

func (f *fakeServices) RequestPasswordReset(_ context.Context, email string) error {
	f.record("requestPasswordReset:" + email)
	return nil
}

func (f *fakeServices) VerifyOTP(_ context.Context, email, otp string) (string, error) {
	f.record("verifyOtp:" + email)
	return f.actionToken, nil
}

func (f *fakeServices) CompleteRegistration(_ context.Context, actionToken, password string) error {
	f.record("completeRegistration:" + actionToken)
	return nil
}

func (f *fakeServices) CompletePasswordReset(_ context.Context, actionToken, newPassword string) error {
	f.record("completePasswordReset:" + actionToken)
	return nil
}

func (f *fakeServices) Refresh(_ context.Context, current *session.Session) (*session.Session, error) {
	f.record("refresh")
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return current.WithAccessToken("refreshed"), nil
}

func (f *fakeServices) RefreshProfile(_ context.Context, current *session.Session) (*session.Session, error) {
	f.record("refreshProfile")
	if f.profile == nil {
		return nil, errors.New("no profile")
	}
	return current.WithProfile(f.profile), nil
}

func (f *fakeServices) Logout(context.Context, *session.Session) error {
	f.record("logout")
	return f.logoutErr
}

type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	rejected []EventType
	stale    int
}

func (o *recordingObserver) GuardRejected(_ State, ev EventType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, ev)
}

func (o *recordingObserver) EventIgnored(_ State, _ EventType, stale bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stale {
		o.stale++
	}
}

func startMachine(t *testing.T, svc Services, opts ...Option) *Machine {
	t.Helper()

	m := New(svc, opts...)
	t.Cleanup(m.Stop)
	m.Start()
	return m
}

// sendAndWait sends ev and returns the first handled snapshot at or after its sequence
// number that satisfies pred.
func sendAndWait(t *testing.T, m *Machine, ev Event, pred func(Snapshot) bool) Snapshot {
	t.Helper()

	ch := make(chan Snapshot, 64)
	unsubscribe := m.Subscribe(func(s Snapshot) { ch <- s })
	defer unsubscribe()

	seq := m.Send(ev)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.Seq >= seq && s.Handled && pred(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out after %s, machine in %s", ev.Type, m.Snapshot().State)
		}
	}
}

func waitState(t *testing.T, m *Machine, st State) Snapshot {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := m.Snapshot(); s.State == st {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("machine never reached %s, stuck in %s", st, m.Snapshot().State)
	return Snapshot{}
}

func inState(st State) func(Snapshot) bool {
	return func(s Snapshot) bool { return s.State == st }
}

func TestStartupWithoutSession(t *testing.T) {
	svc := &fakeServices{}
	m := startMachine(t, svc)

	s := waitState(t, m, LoginIdle)
	if s.Context.Session != nil || s.Context.Error != nil {
		t.Fatalf("unexpected context %+v", s.Context)
	}
}

func TestStartupRestoresSessionAndFetchesProfile(t *testing.T) {
	svc := &fakeServices{
		restored: &session.Session{AccessToken: "a"},
		profile:  &session.UserProfile{ID: "u1", Email: "a@b.io"},
	}
	m := startMachine(t, svc)

	waitState(t, m, Authorized)
	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot().Context.Session.Profile == nil {
		if time.Now().After(deadline) {
			t.Fatal("profile side task never applied")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoginSuccess(t *testing.T) {
	svc := &fakeServices{loginResult: &session.Session{AccessToken: "abc-123", RefreshToken: "ref-456"}}
	m := startMachine(t, svc)
	waitState(t, m, LoginIdle)

	s := sendAndWait(t, m, Login("test@test.com", "password"), func(s Snapshot) bool { return s.State.IsAuthorized() })
	if s.Context.Session.AccessToken != "abc-123" {
		t.Fatalf("session = %+v", s.Context.Session)
	}
}

func TestRegistrationHappyPath(t *testing.T) {
	svc := &fakeServices{
		actionToken: "act-1",
		loginResult: &session.Session{AccessToken: "a", Profile: &session.UserProfile{ID: "u", Email: "new@b.io"}},
	}
	m := startMachine(t, svc)
	waitState(t, m, LoginIdle)

	sendAndWait(t, m, Simple(EventGoToRegister), inState(RegisterForm))
	sendAndWait(t, m, Register("new@b.io", "password1"), inState(RegisterVerifyOTP))
	s := sendAndWait(t, m, VerifyOTP("123456"), inState(Authorized))

	if s.Context.Registration.Active() || s.Context.Error != nil {
		t.Fatalf("flow not cleared: %+v", s.Context)
	}

	want := []string{"checkSession", "register:new@b.io", "verifyOtp:new@b.io", "completeRegistration:act-1", "login:new@b.io"}
	got := svc.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestPasswordResetHappyPath(t *testing.T) {
	svc := &fakeServices{actionToken: "act-r", loginResult: &session.Session{AccessToken: "a", Profile: &session.UserProfile{ID: "u", Email: "a@b.io"}}}
	m := startMachine(t, svc)
	waitState(t, m, LoginIdle)

	sendAndWait(t, m, ForgotPassword("a@b.io"), inState(ForgotPasswordVerifyOTP))
	s := sendAndWait(t, m, VerifyOTP("123456"), inState(ForgotPasswordReset))
	if s.Context.PasswordReset.ActionToken != "act-r" {
		t.Fatalf("token not stored: %+v", s.Context.PasswordReset)
	}
	sendAndWait(t, m, ResetPassword("newpassword"), inState(Authorized))

	calls := svc.Calls()
	if calls[len(calls)-1] != "login:a@b.io" || calls[len(calls)-2] != "completePasswordReset:act-r" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestGuardedVerifyOTPIsDropped(t *testing.T) {
	obs := &recordingObserver{}
	svc := &fakeServices{}
	m := startMachine(t, svc, WithObserver(obs))
	waitState(t, m, LoginIdle)

	// the fake server accepts a registration without an email, leaving the flow in
	// verifyOtp with nothing to address the passcode to
	sendAndWait(t, m, Register("", "password1"), inState(RegisterVerifyOTP))

	ch := make(chan Snapshot, 4)
	unsubscribe := m.Subscribe(func(s Snapshot) { ch <- s })
	defer unsubscribe()

	seq := m.Send(VerifyOTP("123456"))

	select {
	case s := <-ch:
		if s.Seq != seq || s.Handled || s.State != RegisterVerifyOTP {
			t.Fatalf("unexpected snapshot %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot for the dropped event")
	}

	for _, c := range svc.Calls() {
		if strings.HasPrefix(c, "verifyOtp") {
			t.Fatal("verifyOtp called despite failing guard")
		}
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.rejected) != 1 || obs.rejected[0] != EventVerifyOTP {
		t.Fatalf("observer saw %v", obs.rejected)
	}
}

func TestLogoutFailureStaysAuthorized(t *testing.T) {
	svc := &fakeServices{
		restored:  &session.Session{AccessToken: "a", Profile: &session.UserProfile{ID: "u", Email: "a@b.io"}},
		logoutErr: errors.New("Server unavailable"),
	}
	m := startMachine(t, svc)
	waitState(t, m, Authorized)

	s := sendAndWait(t, m, Simple(EventLogout), func(s Snapshot) bool { return s.State == Authorized })
	if s.Context.Session == nil || s.Context.Session.AccessToken != "a" {
		t.Fatalf("session changed: %+v", s.Context.Session)
	}
	if s.Context.Error == nil || s.Context.Error.Message != "Server unavailable" {
		t.Fatalf("error = %+v", s.Context.Error)
	}
}

func TestRefreshFailureLogsOut(t *testing.T) {
	svc := &fakeServices{
		restored:   &session.Session{AccessToken: "a", Profile: &session.UserProfile{ID: "u", Email: "a@b.io"}},
		refreshErr: errors.New("expired"),
	}
	m := startMachine(t, svc)
	waitState(t, m, Authorized)

	s := sendAndWait(t, m, Simple(EventRefresh), inState(LoginIdle))
	if s.Context.Session != nil || s.Context.Error == nil || s.Context.Error.Message != "Session refresh failed" {
		t.Fatalf("context = %+v", s.Context)
	}
}

func TestCancelIgnoresLateResult(t *testing.T) {
	obs := &recordingObserver{}
	svc := &fakeServices{
		loginResult: &session.Session{AccessToken: "late"},
		gate:        make(chan struct{}),
	}
	m := startMachine(t, svc, WithObserver(obs))
	waitState(t, m, LoginIdle)

	m.Send(Login("a@b.io", "pw"))
	s := sendAndWait(t, m, Simple(EventCancel), inState(LoginIdle))
	if s.Context.Session != nil {
		t.Fatal("cancel left a session")
	}

	close(svc.gate)
	deadline := time.Now().Add(2 * time.Second)
	for {
		obs.mu.Lock()
		stale := obs.stale
		obs.mu.Unlock()
		if stale == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("late login result was not reported stale")
		}
		time.Sleep(time.Millisecond)
	}
	if st := m.Snapshot().State; st != LoginIdle {
		t.Fatalf("late result moved the machine to %s", st)
	}
}

func TestEventsProcessedInSendOrder(t *testing.T) {
	m := startMachine(t, &fakeServices{})
	waitState(t, m, LoginIdle)

	var (
		mu   sync.Mutex
		seqs []uint64
	)
	unsubscribe := m.Subscribe(func(s Snapshot) {
		mu.Lock()
		seqs = append(seqs, s.Seq)
		mu.Unlock()
	})
	defer unsubscribe()

	m.Send(Simple(EventGoToRegister))
	m.Send(Simple(EventGoToForgotPassword))
	last := m.Send(Simple(EventGoToLogin))
	waitFor := time.Now().Add(2 * time.Second)
	for m.Snapshot().Seq < last {
		if time.Now().After(waitFor) {
			t.Fatal("events not processed")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("snapshots out of order: %v", seqs)
		}
	}
	if m.Snapshot().State != LoginIdle {
		t.Fatalf("final state %s", m.Snapshot().State)
	}
}

func TestStopCancelsInvocations(t *testing.T) {
	svc := &fakeServices{gate: make(chan struct{})}
	m := New(svc)
	m.Start()
	waitState(t, m, LoginIdle)

	m.Send(Login("a@b.io", "pw"))
	waitState(t, m, LoginSubmitting)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an in-flight invocation")
	}

	if seq := m.Send(Simple(EventCancel)); seq != 0 {
		t.Fatalf("Send after Stop returned %d", seq)
	}
}
