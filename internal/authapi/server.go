package authapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/session"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose names what a passcode or action grant authorizes.
type Purpose string

const (
	PurposeRegister      Purpose = "register"
	PurposePasswordReset Purpose = "password_reset"
)

// Notifier receives every issued passcode. It stands in for email delivery.
type Notifier func(email string, purpose Purpose, code string)

// Config tunes the API.
type Config struct {
	SigningKey        []byte
	Issuer            string
	AccessTTL         time.Duration
	OTPTTL            time.Duration
	ActionTTL         time.Duration
	OTPDigits         int
	MaxOTPAttempts    int
	MinPasswordLength int
	Hash              HashParams
}

// DefaultConfig returns a Config without a signing key.
func DefaultConfig() Config {
	return Config{
		Issuer:            "authapi",
		AccessTTL:         15 * time.Minute,
		OTPTTL:            10 * time.Minute,
		ActionTTL:         10 * time.Minute,
		OTPDigits:         6,
		MaxOTPAttempts:    5,
		MinPasswordLength: 8,
		Hash:              DefaultHashParams(),
	}
}

// Option customizes a [Server].
type Option func(*Server)

// WithNotifier sets the passcode sink. The default logs codes at info level.
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		if n != nil {
			s.notify = n
		}
	}
}

// WithClock replaces time.Now for token and challenge expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEndpoints overrides the route layout. Empty paths keep their defaults.
func WithEndpoints(e gateway.Endpoints) Option {
	return func(s *Server) {
		s.endpoints = e.WithDefaults()
	}
}

type user struct {
	profile session.UserProfile
	hash    string
}

type challenge struct {
	purpose     Purpose
	code        string
	pendingHash string
	expires     time.Time
	attempts    int
}

type grant struct {
	email       string
	purpose     Purpose
	pendingHash string
	expires     time.Time
}

type refreshGrant struct {
	userID string
	sid    string
}

// Server is the in-memory auth API. It is safe for concurrent use.
type Server struct {
	cfg       Config
	hasher    hasher
	notify    Notifier
	now       func() time.Time
	log       *slog.Logger
	endpoints gateway.Endpoints

	mu         sync.Mutex
	users      map[string]*user
	byID       map[string]*user
	challenges map[string]*challenge
	grants     map[string]grant
	refresh    map[string]refreshGrant
	revoked    map[string]struct{}
}

// New validates cfg and returns an empty Server.
func New(cfg Config, opts ...Option) (*Server, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, errors.New("authapi: SigningKey must be at least 32 bytes")
	}
	def := DefaultConfig()
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = def.AccessTTL
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = def.OTPTTL
	}
	if cfg.ActionTTL <= 0 {
		cfg.ActionTTL = def.ActionTTL
	}
	if cfg.OTPDigits <= 0 {
		cfg.OTPDigits = def.OTPDigits
	}
	if cfg.MaxOTPAttempts <= 0 {
		cfg.MaxOTPAttempts = def.MaxOTPAttempts
	}
	if cfg.Hash == (HashParams{}) {
		cfg.Hash = def.Hash
	}

	s := &Server{
		cfg:        cfg,
		hasher:     hasher{params: cfg.Hash},
		now:        time.Now,
		log:        slog.Default(),
		endpoints:  gateway.DefaultEndpoints(),
		users:      make(map[string]*user),
		byID:       make(map[string]*user),
		challenges: make(map[string]*challenge),
		grants:     make(map[string]grant),
		refresh:    make(map[string]refreshGrant),
		revoked:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "authapi")
	if s.notify == nil {
		s.notify = func(email string, purpose Purpose, code string) {
			s.log.Info("passcode issued", "email", email, "purpose", string(purpose), "code", code)
		}
	}
	return s, nil
}

// apiError is a failure with an HTTP status and a message safe for end users.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return e.message
}

func fail(status int, message string) *apiError {
	return &apiError{status: status, message: message}
}

var (
	errBadCredentials = fail(http.StatusUnauthorized, "Invalid email or password")
	errSessionExpired = fail(http.StatusUnauthorized, "Session expired. Please sign in again.")
	errBadGrant       = fail(http.StatusBadRequest, "Verification expired. Please request a new code")
)

// Tokens is the sign-in response body.
type Tokens struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken,omitempty"`
	User         *session.UserProfile `json:"user,omitempty"`
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddUser creates a verified account directly, bypassing the passcode step.
func (s *Server) AddUser(email, password, name string) (*session.UserProfile, error) {
	email = normalize(email)
	hash, err := s.hasher.hash(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return nil, fmt.Errorf("authapi: user %s exists", email)
	}
	u := &user{profile: session.UserProfile{ID: uuid.NewString(), Email: email, Name: name}, hash: hash}
	s.users[email] = u
	s.byID[u.profile.ID] = u
	p := u.profile
	return &p, nil
}

// Login checks credentials and opens a session.
func (s *Server) Login(email, password string) (*Tokens, error) {
	email = normalize(email)
	s.mu.Lock()
	u, ok := s.users[email]
	var hash string
	if ok {
		hash = u.hash
	}
	s.mu.Unlock()
	if !ok {
		return nil, errBadCredentials
	}

	match, err := s.hasher.verify(password, hash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, errBadCredentials
	}

	sid := uuid.NewString()
	access, err := s.mintAccess(u.profile, sid)
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()

	s.mu.Lock()
	s.refresh[refresh] = refreshGrant{userID: u.profile.ID, sid: sid}
	s.mu.Unlock()

	p := u.profile
	return &Tokens{AccessToken: access, RefreshToken: refresh, User: &p}, nil
}

// Register starts a sign-up and sends a passcode.
func (s *Server) Register(email, password string) error {
	email = normalize(email)
	if len([]rune(password)) < s.cfg.MinPasswordLength {
		return fail(http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters", s.cfg.MinPasswordLength))
	}
	s.mu.Lock()
	_, exists := s.users[email]
	s.mu.Unlock()
	if exists {
		return fail(http.StatusConflict, "An account with this email already exists")
	}

	hash, err := s.hasher.hash(password)
	if err != nil {
		return err
	}
	return s.challenge(email, PurposeRegister, hash)
}

// RequestPasswordReset sends a passcode when the account exists. Unknown emails get
// the same answer.
func (s *Server) RequestPasswordReset(email string) error {
	email = normalize(email)
	s.mu.Lock()
	_, exists := s.users[email]
	s.mu.Unlock()
	if !exists {
		s.log.Debug("password reset for unknown email")
		return nil
	}
	return s.challenge(email, PurposePasswordReset, "")
}

func (s *Server) challenge(email string, purpose Purpose, pendingHash string) error {
	code, err := newCode(s.cfg.OTPDigits)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.challenges[email] = &challenge{
		purpose:     purpose,
		code:        code,
		pendingHash: pendingHash,
		expires:     s.now().Add(s.cfg.OTPTTL),
	}
	s.mu.Unlock()
	s.notify(email, purpose, code)
	return nil
}

// VerifyOTP exchanges a passcode for an action token.
func (s *Server) VerifyOTP(email, code string) (string, error) {
	email = normalize(email)
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[email]
	if !ok {
		return "", fail(http.StatusBadRequest, "No verification in progress")
	}
	if s.now().After(ch.expires) {
		delete(s.challenges, email)
		return "", fail(http.StatusBadRequest, "Verification code expired")
	}
	if ch.code != strings.TrimSpace(code) {
		ch.attempts++
		if ch.attempts >= s.cfg.MaxOTPAttempts {
			delete(s.challenges, email)
			return "", fail(http.StatusTooManyRequests, "Too many attempts. Please request a new code")
		}
		return "", fail(http.StatusBadRequest, "Invalid verification code")
	}

	delete(s.challenges, email)
	token := uuid.NewString()
	s.grants[token] = grant{
		email:       email,
		purpose:     ch.purpose,
		pendingHash: ch.pendingHash,
		expires:     s.now().Add(s.cfg.ActionTTL),
	}
	return token, nil
}

func (s *Server) takeGrant(token string, purpose Purpose) (grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[token]
	if !ok || g.purpose != purpose {
		return grant{}, errBadGrant
	}
	delete(s.grants, token)
	if s.now().After(g.expires) {
		return grant{}, errBadGrant
	}
	return g, nil
}

// CompleteRegistration creates the account of a verified sign-up. password must
// match the one given at registration.
func (s *Server) CompleteRegistration(actionToken, password string) error {
	g, err := s.takeGrant(actionToken, PurposeRegister)
	if err != nil {
		return err
	}
	match, err := s.hasher.verify(password, g.pendingHash)
	if err != nil {
		return err
	}
	if !match {
		return fail(http.StatusBadRequest, "Password does not match registration")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[g.email]; exists {
		return fail(http.StatusConflict, "An account with this email already exists")
	}
	u := &user{profile: session.UserProfile{ID: uuid.NewString(), Email: g.email}, hash: g.pendingHash}
	s.users[g.email] = u
	s.byID[u.profile.ID] = u
	return nil
}

// CompletePasswordReset sets a new password and ends every session of the account.
func (s *Server) CompletePasswordReset(actionToken, newPassword string) error {
	if len([]rune(newPassword)) < s.cfg.MinPasswordLength {
		return fail(http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters", s.cfg.MinPasswordLength))
	}
	g, err := s.takeGrant(actionToken, PurposePasswordReset)
	if err != nil {
		return err
	}
	hash, err := s.hasher.hash(newPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[g.email]
	if !ok {
		return errBadGrant
	}
	u.hash = hash
	for token, rg := range s.refresh {
		if rg.userID == u.profile.ID {
			s.revoked[rg.sid] = struct{}{}
			delete(s.refresh, token)
		}
	}
	return nil
}

// Refresh issues a new access token for the refresh token's session. The refresh
// token itself is not rotated.
func (s *Server) Refresh(refreshToken string) (*Tokens, error) {
	s.mu.Lock()
	rg, ok := s.refresh[refreshToken]
	var u *user
	if ok {
		u = s.byID[rg.userID]
	}
	s.mu.Unlock()
	if !ok || u == nil {
		return nil, errSessionExpired
	}

	access, err := s.mintAccess(u.profile, rg.sid)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access}, nil
}

// Profile returns the owner of a valid access token.
func (s *Server) Profile(accessToken string) (*session.UserProfile, error) {
	claims, err := s.parseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[claims.Subject]
	if !ok {
		return nil, errSessionExpired
	}
	p := u.profile
	return &p, nil
}

// Logout ends the session of accessToken.
func (s *Server) Logout(accessToken string) error {
	claims, err := s.parseAccess(accessToken)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[claims.SessionID] = struct{}{}
	for token, rg := range s.refresh {
		if rg.sid == claims.SessionID {
			delete(s.refresh, token)
		}
	}
	return nil
}

// accessClaims is the access token payload.
type accessClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	gojwt.RegisteredClaims
}

func (s *Server) mintAccess(p session.UserProfile, sid string) (string, error) {
	now := s.now()
	claims := accessClaims{
		Email:     p.Email,
		SessionID: sid,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   p.ID,
			ID:        uuid.NewString(),
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
}

func (s *Server) parseAccess(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return s.cfg.SigningKey, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(s.cfg.Issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errSessionExpired
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.SessionID]
	s.mu.Unlock()
	if revoked {
		return nil, errSessionExpired
	}
	return claims, nil
}

func newCode(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
