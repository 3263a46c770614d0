package flows

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/MrEthical07/authflow/internal/rate"
)

// ValidationError is an input problem caught before any network call. Error() is
// user-safe.
type ValidationError struct {
	Field   string
	Message string
	kind    error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.kind
}

func (d *Deps) invalid(field, message string) error {
	d.inc(d.Metrics.ValidationRejected)
	return &ValidationError{Field: field, Message: message, kind: d.Errors.Validation}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *Deps) validateEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", d.invalid("email", "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		return "", d.invalid("email", "Please enter a valid email address")
	}
	return email, nil
}

func (d *Deps) validateNewPassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return d.invalid("password", "Password is required")
	}
	if minLen := d.Policy.MinPasswordLength; minLen > 0 && len([]rune(password)) < minLen {
		return d.invalid("password", fmt.Sprintf("Password must be at least %d characters", minLen))
	}
	return nil
}

func (d *Deps) validateOTP(otp string) (string, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return "", d.invalid("otp", "Verification code is required")
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			return "", d.invalid("otp", "Verification code must contain only digits")
		}
	}
	if n := d.Policy.OTPLength; n > 0 && len(otp) != n {
		return "", d.invalid("otp", fmt.Sprintf("Verification code must be %d digits", n))
	}
	return otp, nil
}

func (d *Deps) validateActionToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return d.invalid("actionToken", "Verification expired. Please request a new code")
	}
	return nil
}

func errorsIsRateLimited(err error) bool {
	return errors.Is(err, rate.ErrRateLimited)
}
