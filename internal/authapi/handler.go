package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// Handler returns the HTTP routes of the API.
func (s *Server) Handler() http.Handler {
	ep := s.endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+ep.Login, s.handleLogin)
	mux.HandleFunc("POST "+ep.Register, s.handleRegister)
	mux.HandleFunc("POST "+ep.RequestPasswordReset, s.handleRequestPasswordReset)
	mux.HandleFunc("POST "+ep.VerifyOTP, s.handleVerifyOTP)
	mux.HandleFunc("POST "+ep.CompleteRegistration, s.handleCompleteRegistration)
	mux.HandleFunc("POST "+ep.CompletePasswordReset, s.handleCompletePasswordReset)
	mux.HandleFunc("POST "+ep.Refresh, s.handleRefresh)
	mux.HandleFunc("GET "+ep.Profile, s.handleProfile)
	mux.HandleFunc("POST "+ep.Logout, s.handleLogout)
	return s.logRequests(mux)
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type actionBody struct {
	ActionToken string `json:"actionToken"`
	Password    string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	tokens, err := s.Login(body.Email, body.Password)
	s.respond(w, r, tokens, err)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	s.respond(w, r, nil, s.Register(body.Email, body.Password))
}

func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	s.respond(w, r, nil, s.RequestPasswordReset(body.Email))
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body otpBody
	if !decode(w, r, &body) {
		return
	}
	token, err := s.VerifyOTP(body.Email, body.OTP)
	if err != nil {
		s.respond(w, r, nil, err)
		return
	}
	s.respond(w, r, map[string]string{"actionToken": token}, nil)
}

func (s *Server) handleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var body actionBody
	if !decode(w, r, &body) {
		return
	}
	s.respond(w, r, nil, s.CompleteRegistration(body.ActionToken, body.Password))
}

func (s *Server) handleCompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var body actionBody
	if !decode(w, r, &body) {
		return
	}
	s.respond(w, r, nil, s.CompletePasswordReset(body.ActionToken, body.Password))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !decode(w, r, &body) {
		return
	}
	tokens, err := s.Refresh(body.RefreshToken)
	s.respond(w, r, tokens, err)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.Profile(bearer(r))
	s.respond(w, r, profile, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, nil, s.Logout(bearer(r)))
}

func bearer(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return strings.TrimSpace(token)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed request body"})
		return false
	}
	return true
}

// respond writes body, or the error envelope. Errors that are not an apiError are
// logged and hidden behind a 500.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, body any, err error) {
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			writeJSON(w, apiErr.status, map[string]string{"message": apiErr.message})
			return
		}
		s.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		return
	}
	if body == nil {
		body = struct{}{}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", r.Header.Get("X-Request-ID"),
			"duration", time.Since(start),
		)
	})
}
