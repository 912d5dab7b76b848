package domain

//go:generate mockgen -destination=../../mocks/mock_ports.go -package=mocks github.com/praveenbiet/elephant/internal/auth/domain UserRepository,TokenRepository,Mailer,EventPublisher

import (
	"context"
	"time"
)

// UserRepository is the persistence port for user records. Lookups return
// (nil, nil) when no row matches.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	AddPasswordHistory(ctx context.Context, entry *PasswordHistoryEntry) error
	GetRecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error)
}

// TokenRepository is the persistence port for stateful tokens.
//
// RedeemSingleUseToken must perform the check-unused-and-unexpired plus
// mark-used sequence as one atomic store operation, so that concurrent
// redemptions of the same value yield exactly one success. It returns the
// owning user id, or one of ErrTokenNotFound, ErrTokenAlreadyUsed,
// ErrTokenExpired from internal/errors.
type TokenRepository interface {
	StoreSingleUseToken(ctx context.Context, token *SingleUseToken) error
	RedeemSingleUseToken(ctx context.Context, value string, kind TokenKind, now time.Time) (string, error)
	StoreRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, value string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, value, reason string, now time.Time) error
}

// Mailer delivers authentication mail. The core builds the link paths;
// rendering and delivery happen behind this port.
type Mailer interface {
	SendWelcomeEmail(ctx context.Context, email, name string) error
	SendVerificationEmail(ctx context.Context, email, name, verificationLink string) error
	SendPasswordResetEmail(ctx context.Context, email, name, resetLink string) error
}

// EventPublisher emits domain events (user.created, user.verified).
type EventPublisher interface {
	Publish(ctx context.Context, eventType, subjectID string, payload map[string]any) error
}
