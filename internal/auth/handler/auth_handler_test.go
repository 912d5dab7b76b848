package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/praveenbiet/elephant/internal/auth/domain"
	"github.com/praveenbiet/elephant/internal/auth/handler"
	"github.com/praveenbiet/elephant/internal/auth/password"
	"github.com/praveenbiet/elephant/internal/auth/service"
	autherror "github.com/praveenbiet/elephant/internal/errors"
	"github.com/praveenbiet/elephant/internal/mocks"
)

type handlerFixture struct {
	app       *fiber.App
	users     *mocks.MockUserRepository
	tokenRepo *mocks.MockTokenRepository
	mailer    *mocks.MockMailer
	tokens    *service.TokenService
	hasher    service.Hasher
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	tokenRepo := mocks.NewMockTokenRepository(ctrl)
	mailer := mocks.NewMockMailer(ctrl)

	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	validator := password.NewValidator(password.DefaultPolicy())
	ledger := service.NewTokenLedger(tokenRepo, time.Hour, 24*time.Hour, 7*24*time.Hour)
	tokens := service.NewTokenService("test-secret", 30*time.Minute)
	logger := zap.NewNop()

	authSvc := service.NewAuthService(users, ledger, tokens, hasher, validator, mailer, logger, "https://app.example.com")
	regSvc := service.NewRegistrationService(users, ledger, hasher, validator, mailer, nil, logger, "https://app.example.com")

	app := fiber.New()
	handler.RegisterRoutes(app, handler.NewAuthHandler(authSvc, regSvc, tokens, false))

	return &handlerFixture{
		app:       app,
		users:     users,
		tokenRepo: tokenRepo,
		mailer:    mailer,
		tokens:    tokens,
		hasher:    hasher,
	}
}

func (f *handlerFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (f *handlerFixture) seededUser(t *testing.T, pw string) *domain.User {
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

func TestAuthHandler_Register(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.EXPECT().GetByEmail(gomock.Any(), "jane@example.com").Return(nil, nil)
		f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		f.mailer.EXPECT().SendWelcomeEmail(gomock.Any(), "jane@example.com", "Jane Doe").Return(nil)

		resp := f.postJSON(t, "/api/v1/register", fiber.Map{
			"email":      "jane@example.com",
			"password":   "Str0ngPass!",
			"first_name": "Jane",
			"last_name":  "Doe",
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "jane@example.com", body["email"])
		assert.NotContains(t, body, "password_hash")
	})

	t.Run("weak password gets 422 with the violation list", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.EXPECT().GetByEmail(gomock.Any(), "jane@example.com").Return(nil, nil)

		resp := f.postJSON(t, "/api/v1/register", fiber.Map{
			"email":      "jane@example.com",
			"password":   "weakpass",
			"first_name": "Jane",
			"last_name":  "Doe",
		})
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

		body := decodeBody(t, resp)
		violations, ok := body["violations"].([]any)
		require.True(t, ok)
		assert.NotEmpty(t, violations)
	})

	t.Run("duplicate email gets 409", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.EXPECT().GetByEmail(gomock.Any(), "jane@example.com").Return(&domain.User{ID: "existing"}, nil)

		resp := f.postJSON(t, "/api/v1/register", fiber.Map{
			"email":      "jane@example.com",
			"password":   "Str0ngPass!",
			"first_name": "Jane",
			"last_name":  "Doe",
		})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("malformed email gets 400", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp := f.postJSON(t, "/api/v1/register", fiber.Map{
			"email":      "not-an-email",
			"password":   "Str0ngPass!",
			"first_name": "Jane",
			"last_name":  "Doe",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newHandlerFixture(t)
		u := f.seededUser(t, "Str0ngPass!")

		f.users.EXPECT().GetByEmail(gomock.Any(), "jane@example.com").Return(u, nil)
		f.tokenRepo.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
		f.users.EXPECT().UpdateLastLogin(gomock.Any(), u.ID, gomock.Any()).Return(nil)

		resp := f.postJSON(t, "/api/v1/login", fiber.Map{
			"email":    "jane@example.com",
			"password": "Str0ngPass!",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["access_token"])
		assert.NotEmpty(t, body["refresh_token"])
		assert.Equal(t, "Bearer", body["token_type"])
	})

	t.Run("wrong password gets 401", func(t *testing.T) {
		f := newHandlerFixture(t)
		u := f.seededUser(t, "Str0ngPass!")
		f.users.EXPECT().GetByEmail(gomock.Any(), "jane@example.com").Return(u, nil)

		resp := f.postJSON(t, "/api/v1/login", fiber.Map{
			"email":    "jane@example.com",
			"password": "WrongPass1!",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("inactive account gets 403", func(t *testing.T) {
		f := newHandlerFixture(t)
		u := f.seededUser(t, "Str0ngPass!")
		u.IsActive = false
		f.users.EXPECT().GetByEmail(gomock.Any(), "jane@example.com").Return(u, nil)

		resp := f.postJSON(t, "/api/v1/login", fiber.Map{
			"email":    "jane@example.com",
			"password": "Str0ngPass!",
		})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestAuthHandler_Refresh_Invalid(t *testing.T) {
	f := newHandlerFixture(t)
	f.tokenRepo.EXPECT().GetRefreshToken(gomock.Any(), "stale").Return(nil, nil)

	resp := f.postJSON(t, "/api/v1/refresh", fiber.Map{"refresh_token": "stale"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthHandler_ForgotPassword_AlwaysAccepted(t *testing.T) {
	f := newHandlerFixture(t)
	f.users.EXPECT().GetByEmail(gomock.Any(), "nobody@example.com").Return(nil, nil)

	resp := f.postJSON(t, "/api/v1/password/forgot", fiber.Map{"email": "nobody@example.com"})
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}

func TestAuthHandler_ResetPassword_InvalidToken(t *testing.T) {
	f := newHandlerFixture(t)
	f.tokenRepo.EXPECT().
		RedeemSingleUseToken(gomock.Any(), "spent", domain.TokenKindPasswordReset, gomock.Any()).
		Return("", autherror.ErrTokenAlreadyUsed)

	resp := f.postJSON(t, "/api/v1/password/reset", fiber.Map{
		"token":        "spent",
		"new_password": "N3wPassword!",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	t.Run("requires a bearer token", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp := f.postJSON(t, "/api/v1/password/change", fiber.Map{
			"current_password": "Str0ngPass!",
			"new_password":     "N3wPassword!",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		f := newHandlerFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/password/change", bytes.NewReader([]byte(`{}`)))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-jwt")
		resp, err := f.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("changes the password for the token subject", func(t *testing.T) {
		f := newHandlerFixture(t)
		u := f.seededUser(t, "Str0ngPass!")

		signed, _, err := f.tokens.Generate(u.ID, u.Email)
		require.NoError(t, err)

		f.users.EXPECT().GetByID(gomock.Any(), u.ID).Return(u, nil)
		f.users.EXPECT().GetRecentPasswordHashes(gomock.Any(), u.ID, 5).Return(nil, nil)
		f.users.EXPECT().UpdatePassword(gomock.Any(), u.ID, gomock.Any()).Return(nil)
		f.users.EXPECT().AddPasswordHistory(gomock.Any(), gomock.Any()).Return(nil)

		raw, err := json.Marshal(fiber.Map{
			"current_password": "Str0ngPass!",
			"new_password":     "N3wPassword!",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/password/change", bytes.NewReader(raw))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
		resp, err := f.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestAuthHandler_PasswordStrength(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/password/strength?password=Abcd1234", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(45), body["score"])
	assert.Equal(t, "Moderate", body["label"])
}

func TestAuthHandler_Healthz(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
