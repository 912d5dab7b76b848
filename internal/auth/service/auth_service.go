package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praveenbiet/elephant/internal/auth/domain"
	"github.com/praveenbiet/elephant/internal/auth/dto"
	"github.com/praveenbiet/elephant/internal/auth/password"
	autherror "github.com/praveenbiet/elephant/internal/errors"
	"github.com/praveenbiet/elephant/pkg/constant"
	"github.com/praveenbiet/elephant/pkg/metrics"
)

// AuthService orchestrates login, token refresh and the password lifecycle.
type AuthService struct {
	users     domain.UserRepository
	ledger    *TokenLedger
	tokens    TokenGenerator
	hasher    Hasher
	validator *password.Validator
	mailer    domain.Mailer
	logger    *zap.Logger
	baseURL   string
}

func NewAuthService(
	users domain.UserRepository,
	ledger *TokenLedger,
	tokens TokenGenerator,
	hasher Hasher,
	validator *password.Validator,
	mailer domain.Mailer,
	logger *zap.Logger,
	baseURL string,
) *AuthService {
	return &AuthService{
		users:     users,
		ledger:    ledger,
		tokens:    tokens,
		hasher:    hasher,
		validator: validator,
		mailer:    mailer,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Authenticate verifies credentials and returns the user. It never mutates
// state, so failed attempts leave no trace here; Login records the
// last-login timestamp after success.
func (s *AuthService) Authenticate(ctx context.Context, email, pw string) (*domain.User, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(pw, user.PasswordHash) {
		s.logger.Warn("failed authentication attempt", zap.String("email", email))
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, autherror.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Warn("authentication attempt on inactive account", zap.String("email", email))
		metrics.LoginsTotal.WithLabelValues("inactive").Inc()
		return nil, autherror.ErrInactiveAccount
	}

	return user, nil
}

// Login authenticates and issues an access/refresh token pair. The refresh
// token is persisted with client metadata for later revocation.
func (s *AuthService) Login(ctx context.Context, input dto.LoginInput) (*dto.TokenResponse, error) {
	user, err := s.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.ledger.IssueRefreshToken(ctx, user.ID, RefreshTokenMeta{
		DeviceFingerprint: input.Fingerprint,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Login already succeeded; a stale timestamp is not worth failing it.
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.GetAccessTokenExpiry().Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. Unknown, revoked and expired tokens all surface as
// ErrInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.TokenResponse, error) {
	token, err := s.ledger.GetRefreshToken(ctx, input.RefreshToken)
	if err != nil {
		return nil, err
	}
	if token == nil || !token.IsValid(time.Now()) {
		s.logger.Warn("refresh attempt with invalid token")
		return nil, autherror.ErrInvalidRefreshToken
	}

	if err := s.ledger.RevokeRefreshToken(ctx, token.Token, constant.RevokeReasonRotated); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, autherror.ErrInvalidRefreshToken
	}

	accessToken, _, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	newToken, err := s.ledger.IssueRefreshToken(ctx, user.ID, RefreshTokenMeta{
		DeviceFingerprint: input.Fingerprint,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newToken.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.GetAccessTokenExpiry().Seconds()),
	}, nil
}

// Logout revokes the presented refresh token. Idempotent: revoking an
// already-revoked or unknown token succeeds quietly.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.ledger.RevokeRefreshToken(ctx, refreshToken, constant.RevokeReasonLogout)
}

// RequestPasswordReset issues a reset token and mails a reset link. For an
// unknown email it returns success with no observable difference, so the
// endpoint cannot be used to enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Info("password reset requested for unknown email", zap.String("email", email))
		return nil
	}

	token, err := s.ledger.IssueResetToken(ctx, user.ID)
	if err != nil {
		return err
	}

	resetLink := s.baseURL + "/reset-password?token=" + token.Token
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.FullName(), resetLink); err != nil {
		s.logger.Error("failed to send password reset email", zap.String("user_id", user.ID), zap.Error(err))
		return err
	}

	s.logger.Info("password reset email sent", zap.String("user_id", user.ID))
	return nil
}

// ResetPassword consumes a reset token and sets the new password. The
// redemption happens first; on any redemption failure the password is left
// untouched and the caller sees only ErrInvalidResetToken, without learning
// whether the token was unknown, used or expired.
func (s *AuthService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	userID, err := s.ledger.RedeemResetToken(ctx, tokenValue)
	if err != nil {
		if isRedemptionFailure(err) {
			s.logger.Warn("reset token rejected", zap.Error(err))
			return autherror.ErrInvalidResetToken
		}
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrInvalidResetToken
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	metrics.TokenRedemptionsTotal.WithLabelValues(string(domain.TokenKindPasswordReset)).Inc()
	s.logger.Info("password reset completed", zap.String("user_id", user.ID))
	return nil
}

// ChangePassword re-verifies the current password before accepting the new
// one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !s.hasher.Verify(currentPassword, user.PasswordHash) {
		s.logger.Warn("failed password change attempt", zap.String("user_id", userID))
		return autherror.ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.logger.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

// setPassword validates the candidate against the policy (including reuse of
// recent hashes), hashes it and persists hash plus history entry. There is
// no username separate from the email address, so the policy's
// username-containment rule gets an empty username here; callers with a real
// username concept pass it through Validator directly.
func (s *AuthService) setPassword(ctx context.Context, user *domain.User, newPassword string) error {
	violations := s.validator.Validate(newPassword, "")

	historyCount := s.validator.Policy().PasswordHistoryCount
	if historyCount > 0 {
		hashes, err := s.users.GetRecentPasswordHashes(ctx, user.ID, historyCount)
		if err != nil {
			return err
		}
		for _, h := range hashes {
			if s.hasher.Verify(newPassword, h) {
				violations = append(violations, "password was used recently and cannot be reused")
				break
			}
		}
	}

	if len(violations) > 0 {
		return &autherror.PolicyViolations{Violations: violations}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if historyCount > 0 {
		entry := &domain.PasswordHistoryEntry{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			PasswordHash: hash,
			CreatedAt:    time.Now(),
		}
		if err := s.users.AddPasswordHistory(ctx, entry); err != nil {
			s.logger.Warn("failed to append password history", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return nil
}

func isRedemptionFailure(err error) bool {
	return errors.Is(err, autherror.ErrTokenNotFound) ||
		errors.Is(err, autherror.ErrTokenAlreadyUsed) ||
		errors.Is(err, autherror.ErrTokenExpired)
}

// NormalizeEmail lowercases and trims an address for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
