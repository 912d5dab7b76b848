package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInactiveAccount          = errors.New("account is inactive")
	ErrEmailAlreadyInUse        = errors.New("email already in use")
	ErrInvalidAccessToken       = errors.New("invalid access token")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrStorageUnavailable       = errors.New("storage unavailable")

	// Internal redemption outcomes. Collapsed into the ErrInvalid*Token
	// kinds before they leave the service layer.
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenAlreadyUsed = errors.New("token already used")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
)

// PolicyViolations carries every rule a candidate password failed, so a
// caller can surface all required fixes in one response.
type PolicyViolations struct {
	Violations []string
}

func (e *PolicyViolations) Error() string {
	return fmt.Sprintf("password policy violated: %s", strings.Join(e.Violations, "; "))
}

// AsPolicyViolations unwraps err into a *PolicyViolations if it is one.
func AsPolicyViolations(err error) (*PolicyViolations, bool) {
	var pv *PolicyViolations
	ok := errors.As(err, &pv)
	return pv, ok
}

// Storage wraps an infrastructure failure so callers can distinguish it from
// business-rule failures via errors.Is(err, ErrStorageUnavailable).
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
