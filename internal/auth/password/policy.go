// Package password implements credential policy enforcement, advisory
// strength scoring and one-way hashing.
package password

import (
	"fmt"
	"strings"
	"unicode"
)

// specialChars is the set of symbols that satisfy the special-character
// requirement and count as the special class for strength scoring.
const specialChars = `!@#$%^&*(),.?":{}|<>`

// Policy is the immutable password rule configuration. The zero value is not
// usable; construct with DefaultPolicy and override fields as needed.
type Policy struct {
	MinLength                  int
	MaxLength                  int
	RequireUppercase           bool
	RequireLowercase           bool
	RequireDigit               bool
	RequireSpecialChar         bool
	DisallowCommonPasswords    bool
	DisallowUsernameInPassword bool
	MaxRepeatedChars           int
	PasswordHistoryCount       int
}

func DefaultPolicy() Policy {
	return Policy{
		MinLength:                  8,
		MaxLength:                  128,
		RequireUppercase:           true,
		RequireLowercase:           true,
		RequireDigit:               true,
		RequireSpecialChar:         false,
		DisallowCommonPasswords:    true,
		DisallowUsernameInPassword: true,
		MaxRepeatedChars:           3,
		PasswordHistoryCount:       5,
	}
}

// Validate checks the policy configuration itself.
func (p Policy) Validate() error {
	if p.MaxLength > 0 && p.MinLength > p.MaxLength {
		return fmt.Errorf("min_length %d cannot be greater than max_length %d", p.MinLength, p.MaxLength)
	}
	return nil
}

// Validator checks candidate passwords against a Policy. It is pure and safe
// for concurrent use.
type Validator struct {
	policy Policy
	common map[string]struct{}
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithCommonPasswords replaces the built-in common-password list. Matching
// is case-insensitive; entries are lowered on load.
func WithCommonPasswords(words []string) ValidatorOption {
	return func(v *Validator) {
		v.common = make(map[string]struct{}, len(words))
		for _, w := range words {
			v.common[strings.ToLower(w)] = struct{}{}
		}
	}
}

func NewValidator(policy Policy, opts ...ValidatorOption) *Validator {
	v := &Validator{policy: policy}
	if policy.DisallowCommonPasswords {
		v.common = defaultCommonPasswords()
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate returns every rule the password violates. An empty result means
// the password is acceptable. All checks run independently so the caller can
// present the complete set of required fixes at once.
func (v *Validator) Validate(password, username string) []string {
	var violations []string
	p := v.policy

	if len(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters long", p.MinLength))
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		violations = append(violations, fmt.Sprintf("password cannot be longer than %d characters", p.MaxLength))
	}
	if p.RequireUppercase && !containsFunc(password, unicode.IsUpper) {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !containsFunc(password, unicode.IsLower) {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !containsFunc(password, unicode.IsDigit) {
		violations = append(violations, "password must contain at least one digit")
	}
	if p.RequireSpecialChar && !strings.ContainsAny(password, specialChars) {
		violations = append(violations, "password must contain at least one special character")
	}
	if p.MaxRepeatedChars > 0 && hasRepeatedRun(password, p.MaxRepeatedChars) {
		violations = append(violations, fmt.Sprintf("password cannot contain more than %d repeated characters", p.MaxRepeatedChars))
	}
	if p.DisallowCommonPasswords {
		if _, ok := v.common[strings.ToLower(password)]; ok {
			violations = append(violations, "password is too common and easily guessable")
		}
	}
	if p.DisallowUsernameInPassword && username != "" && password != "" &&
		strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		violations = append(violations, "password cannot contain your username")
	}

	return violations
}

// IsValid reports whether Validate returns no violations.
func (v *Validator) IsValid(password, username string) bool {
	return len(v.Validate(password, username)) == 0
}

func containsFunc(s string, f func(rune) bool) bool {
	for _, r := range s {
		if f(r) {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports whether s contains a run of n identical
// consecutive bytes.
func hasRepeatedRun(s string, n int) bool {
	if n <= 1 {
		return len(s) > 0
	}
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
