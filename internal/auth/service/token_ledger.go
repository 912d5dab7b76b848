package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praveenbiet/elephant/internal/auth/domain"
	"github.com/praveenbiet/elephant/pkg/constant"
)

// TokenLedger issues and redeems stateful tokens: single-use reset and
// verification tokens, and revocable refresh tokens. Values are opaque
// random capabilities with no embedded structure.
type TokenLedger struct {
	repo            domain.TokenRepository
	resetTTL        time.Duration
	verificationTTL time.Duration
	refreshTTL      time.Duration
}

func NewTokenLedger(repo domain.TokenRepository, resetTTL, verificationTTL, refreshTTL time.Duration) *TokenLedger {
	return &TokenLedger{
		repo:            repo,
		resetTTL:        resetTTL,
		verificationTTL: verificationTTL,
		refreshTTL:      refreshTTL,
	}
}

// RefreshTokenMeta carries the client metadata stored with a refresh token.
type RefreshTokenMeta struct {
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
}

func (l *TokenLedger) IssueResetToken(ctx context.Context, userID string) (*domain.SingleUseToken, error) {
	return l.issueSingleUse(ctx, userID, domain.TokenKindPasswordReset, l.resetTTL)
}

func (l *TokenLedger) IssueVerificationToken(ctx context.Context, userID string) (*domain.SingleUseToken, error) {
	return l.issueSingleUse(ctx, userID, domain.TokenKindEmailVerification, l.verificationTTL)
}

func (l *TokenLedger) issueSingleUse(ctx context.Context, userID string, kind domain.TokenKind, ttl time.Duration) (*domain.SingleUseToken, error) {
	value, err := opaqueTokenValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &domain.SingleUseToken{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := l.repo.StoreSingleUseToken(ctx, token); err != nil {
		return nil, err
	}

	return token, nil
}

// RedeemResetToken atomically consumes a password-reset token and returns
// the owning user id. A token redeems at most once, concurrent attempts
// included; the losing attempt gets ErrTokenAlreadyUsed.
func (l *TokenLedger) RedeemResetToken(ctx context.Context, value string) (string, error) {
	return l.repo.RedeemSingleUseToken(ctx, value, domain.TokenKindPasswordReset, time.Now())
}

func (l *TokenLedger) RedeemVerificationToken(ctx context.Context, value string) (string, error) {
	return l.repo.RedeemSingleUseToken(ctx, value, domain.TokenKindEmailVerification, time.Now())
}

func (l *TokenLedger) IssueRefreshToken(ctx context.Context, userID string, meta RefreshTokenMeta) (*domain.RefreshToken, error) {
	value, err := opaqueTokenValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &domain.RefreshToken{
		ID:                uuid.NewString(),
		UserID:            userID,
		Token:             value,
		DeviceFingerprint: meta.DeviceFingerprint,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		ExpiresAt:         now.Add(l.refreshTTL),
		CreatedAt:         now,
	}

	if err := l.repo.StoreRefreshToken(ctx, token); err != nil {
		return nil, err
	}

	return token, nil
}

func (l *TokenLedger) GetRefreshToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	return l.repo.GetRefreshToken(ctx, value)
}

// RevokeRefreshToken marks the token revoked with a reason. Revoking an
// already-revoked token is not an error.
func (l *TokenLedger) RevokeRefreshToken(ctx context.Context, value, reason string) error {
	return l.repo.RevokeRefreshToken(ctx, value, reason, time.Now())
}

// IsRefreshTokenValid reports whether the stored token exists and is
// neither revoked nor expired.
func (l *TokenLedger) IsRefreshTokenValid(ctx context.Context, value string) (bool, error) {
	token, err := l.repo.GetRefreshToken(ctx, value)
	if err != nil {
		return false, err
	}
	if token == nil {
		return false, nil
	}
	return token.IsValid(time.Now()), nil
}

// opaqueTokenValue generates a URL-safe random token value.
func opaqueTokenValue() (string, error) {
	buf := make([]byte, constant.OpaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
