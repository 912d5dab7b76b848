package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/praveenbiet/elephant/internal/auth/domain"
	"github.com/praveenbiet/elephant/internal/auth/dto"
	"github.com/praveenbiet/elephant/internal/auth/password"
	"github.com/praveenbiet/elephant/internal/auth/service"
	autherror "github.com/praveenbiet/elephant/internal/errors"
	"github.com/praveenbiet/elephant/internal/mocks"
)

type authFixture struct {
	svc       *service.AuthService
	users     *mocks.MockUserRepository
	tokenRepo *mocks.MockTokenRepository
	mailer    *mocks.MockMailer
	hasher    service.Hasher
}

func newAuthFixture(t *testing.T) *authFixture {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	tokenRepo := mocks.NewMockTokenRepository(ctrl)
	mailer := mocks.NewMockMailer(ctrl)

	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	validator := password.NewValidator(password.DefaultPolicy())
	ledger := service.NewTokenLedger(tokenRepo, time.Hour, 24*time.Hour, 7*24*time.Hour)
	tokens := service.NewTokenService("test-secret", 30*time.Minute)

	return &authFixture{
		svc:       service.NewAuthService(users, ledger, tokens, hasher, validator, mailer, zap.NewNop(), "https://app.example.com"),
		users:     users,
		tokenRepo: tokenRepo,
		mailer:    mailer,
		hasher:    hasher,
	}
}

func (f *authFixture) user(t *testing.T, pw string) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash(pw)
	require.NoError(t, err)
	return &domain.User{
		ID:           "user-1",
		Email:        "jane@example.com",
		PasswordHash: hash,
		FirstName:    "Jane",
		LastName:     "Doe",
		IsActive:     true,
		IsVerified:   true,
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")
		f.users.EXPECT().GetByEmail(ctx, "jane@example.com").Return(u, nil)

		got, err := f.svc.Authenticate(ctx, "  Jane@Example.COM ", "Str0ngPass!")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")
		f.users.EXPECT().GetByEmail(ctx, "jane@example.com").Return(u, nil)

		_, err := f.svc.Authenticate(ctx, "jane@example.com", "WrongPass1!")
		assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.EXPECT().GetByEmail(ctx, "nobody@example.com").Return(nil, nil)

		_, err := f.svc.Authenticate(ctx, "nobody@example.com", "Str0ngPass!")
		assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	})

	t.Run("inactive account", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")
		u.IsActive = false
		f.users.EXPECT().GetByEmail(ctx, "jane@example.com").Return(u, nil)

		_, err := f.svc.Authenticate(ctx, "jane@example.com", "Str0ngPass!")
		assert.ErrorIs(t, err, autherror.ErrInactiveAccount)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u := f.user(t, "Str0ngPass!")

	f.users.EXPECT().GetByEmail(ctx, "jane@example.com").Return(u, nil)
	f.tokenRepo.EXPECT().StoreRefreshToken(ctx, gomock.Any()).Return(nil)
	f.users.EXPECT().UpdateLastLogin(ctx, u.ID, gomock.Any()).Return(nil)

	resp, err := f.svc.Login(ctx, dto.LoginInput{
		Email:       "jane@example.com",
		Password:    "Str0ngPass!",
		Fingerprint: "fp-1",
		IPAddress:   "192.0.2.1",
		UserAgent:   "test-agent",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(1800), resp.ExpiresIn)
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the presented token", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")
		old := &domain.RefreshToken{
			ID:        "rt-1",
			UserID:    u.ID,
			Token:     "old-value",
			ExpiresAt: time.Now().Add(time.Hour),
		}

		f.tokenRepo.EXPECT().GetRefreshToken(ctx, "old-value").Return(old, nil)
		f.tokenRepo.EXPECT().RevokeRefreshToken(ctx, "old-value", "rotated", gomock.Any()).Return(nil)
		f.users.EXPECT().GetByID(ctx, u.ID).Return(u, nil)
		f.tokenRepo.EXPECT().StoreRefreshToken(ctx, gomock.Any()).Return(nil)

		resp, err := f.svc.Refresh(ctx, dto.RefreshInput{RefreshToken: "old-value"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEqual(t, "old-value", resp.RefreshToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokenRepo.EXPECT().GetRefreshToken(ctx, "missing").Return(nil, nil)

		_, err := f.svc.Refresh(ctx, dto.RefreshInput{RefreshToken: "missing"})
		assert.ErrorIs(t, err, autherror.ErrInvalidRefreshToken)
	})

	t.Run("revoked token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokenRepo.EXPECT().GetRefreshToken(ctx, "revoked").Return(&domain.RefreshToken{
			Token:     "revoked",
			Revoked:   true,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		_, err := f.svc.Refresh(ctx, dto.RefreshInput{RefreshToken: "revoked"})
		assert.ErrorIs(t, err, autherror.ErrInvalidRefreshToken)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokenRepo.EXPECT().GetRefreshToken(ctx, "expired").Return(&domain.RefreshToken{
			Token:     "expired",
			ExpiresAt: time.Now().Add(-time.Minute),
		}, nil)

		_, err := f.svc.Refresh(ctx, dto.RefreshInput{RefreshToken: "expired"})
		assert.ErrorIs(t, err, autherror.ErrInvalidRefreshToken)
	})

	t.Run("deactivated owner", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")
		u.IsActive = false

		f.tokenRepo.EXPECT().GetRefreshToken(ctx, "tok").Return(&domain.RefreshToken{
			Token:     "tok",
			UserID:    u.ID,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)
		f.tokenRepo.EXPECT().RevokeRefreshToken(ctx, "tok", "rotated", gomock.Any()).Return(nil)
		f.users.EXPECT().GetByID(ctx, u.ID).Return(u, nil)

		_, err := f.svc.Refresh(ctx, dto.RefreshInput{RefreshToken: "tok"})
		assert.ErrorIs(t, err, autherror.ErrInvalidRefreshToken)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.tokenRepo.EXPECT().RevokeRefreshToken(ctx, "tok", "user logout", gomock.Any()).Return(nil)

	require.NoError(t, f.svc.Logout(ctx, "tok"))
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a reset link", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")

		var issued *domain.SingleUseToken
		f.users.EXPECT().GetByEmail(ctx, "jane@example.com").Return(u, nil)
		f.tokenRepo.EXPECT().StoreSingleUseToken(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, tok *domain.SingleUseToken) error {
				issued = tok
				return nil
			})
		f.mailer.EXPECT().SendPasswordResetEmail(ctx, u.Email, "Jane Doe", gomock.Any()).DoAndReturn(
			func(_ context.Context, _, _, link string) error {
				assert.Equal(t, "https://app.example.com/reset-password?token="+issued.Token, link)
				return nil
			})

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "jane@example.com"))
		assert.Equal(t, domain.TokenKindPasswordReset, issued.Kind)
	})

	t.Run("unknown email is silent", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.EXPECT().GetByEmail(ctx, "nobody@example.com").Return(nil, nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")

		f.tokenRepo.EXPECT().
			RedeemSingleUseToken(ctx, "tok", domain.TokenKindPasswordReset, gomock.Any()).
			Return(u.ID, nil)
		f.users.EXPECT().GetByID(ctx, u.ID).Return(u, nil)
		f.users.EXPECT().GetRecentPasswordHashes(ctx, u.ID, 5).Return([]string{u.PasswordHash}, nil)
		f.users.EXPECT().UpdatePassword(ctx, u.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _, hash string) error {
				assert.True(t, f.hasher.Verify("N3wPassword!", hash))
				return nil
			})
		f.users.EXPECT().AddPasswordHistory(ctx, gomock.Any()).Return(nil)

		require.NoError(t, f.svc.ResetPassword(ctx, "tok", "N3wPassword!"))
	})

	t.Run("already used token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokenRepo.EXPECT().
			RedeemSingleUseToken(ctx, "tok", domain.TokenKindPasswordReset, gomock.Any()).
			Return("", autherror.ErrTokenAlreadyUsed)

		err := f.svc.ResetPassword(ctx, "tok", "N3wPassword!")
		assert.ErrorIs(t, err, autherror.ErrInvalidResetToken)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokenRepo.EXPECT().
			RedeemSingleUseToken(ctx, "tok", domain.TokenKindPasswordReset, gomock.Any()).
			Return("", autherror.ErrTokenExpired)

		err := f.svc.ResetPassword(ctx, "tok", "N3wPassword!")
		assert.ErrorIs(t, err, autherror.ErrInvalidResetToken)
	})

	t.Run("policy violation leaves the token consumed but password unchanged", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")

		f.tokenRepo.EXPECT().
			RedeemSingleUseToken(ctx, "tok", domain.TokenKindPasswordReset, gomock.Any()).
			Return(u.ID, nil)
		f.users.EXPECT().GetByID(ctx, u.ID).Return(u, nil)
		f.users.EXPECT().GetRecentPasswordHashes(ctx, u.ID, 5).Return(nil, nil)

		err := f.svc.ResetPassword(ctx, "tok", "short")
		var pv *autherror.PolicyViolations
		require.ErrorAs(t, err, &pv)
		assert.NotEmpty(t, pv.Violations)
	})

	t.Run("recent password cannot be reused", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")

		f.tokenRepo.EXPECT().
			RedeemSingleUseToken(ctx, "tok", domain.TokenKindPasswordReset, gomock.Any()).
			Return(u.ID, nil)
		f.users.EXPECT().GetByID(ctx, u.ID).Return(u, nil)
		f.users.EXPECT().GetRecentPasswordHashes(ctx, u.ID, 5).Return([]string{u.PasswordHash}, nil)

		err := f.svc.ResetPassword(ctx, "tok", "Str0ngPass!")
		var pv *autherror.PolicyViolations
		require.ErrorAs(t, err, &pv)
		assert.Contains(t, pv.Violations, "password was used recently and cannot be reused")
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")

		f.users.EXPECT().GetByID(ctx, u.ID).Return(u, nil)
		f.users.EXPECT().GetRecentPasswordHashes(ctx, u.ID, 5).Return(nil, nil)
		f.users.EXPECT().UpdatePassword(ctx, u.ID, gomock.Any()).Return(nil)
		f.users.EXPECT().AddPasswordHistory(ctx, gomock.Any()).Return(nil)

		require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "Str0ngPass!", "N3wPassword!"))
	})

	t.Run("wrong current password", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.user(t, "Str0ngPass!")

		f.users.EXPECT().GetByID(ctx, u.ID).Return(u, nil)

		err := f.svc.ChangePassword(ctx, u.ID, "WrongPass1!", "N3wPassword!")
		assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	})
}
