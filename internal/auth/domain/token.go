package domain

import "time"

// TokenKind tags a single-use token with the flow it belongs to. Reset and
// verification tokens share one shape and one lifecycle.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailVerification TokenKind = "email_verification"
)

// SingleUseToken is a stateful token that becomes permanently invalid after
// its first successful redemption, even if unexpired.
type SingleUseToken struct {
	ID        string
	Kind      TokenKind
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
	UsedAt    *time.Time
}

func (t *SingleUseToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// MarkUsed transitions the token to its terminal redeemed state.
func (t *SingleUseToken) MarkUsed(now time.Time) {
	t.Used = true
	t.UsedAt = &now
}

type RefreshToken struct {
	ID                string
	UserID            string
	Token             string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	ExpiresAt         time.Time
	CreatedAt         time.Time
	Revoked           bool
	RevokedAt         *time.Time
	RevokedReason     string
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsValid reports whether the token is neither revoked nor expired. Order of
// the checks is irrelevant: either condition alone invalidates the token.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}

func (t *RefreshToken) Revoke(reason string, now time.Time) {
	t.Revoked = true
	t.RevokedAt = &now
	t.RevokedReason = reason
}
