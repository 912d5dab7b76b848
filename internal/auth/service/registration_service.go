package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praveenbiet/elephant/internal/auth/domain"
	"github.com/praveenbiet/elephant/internal/auth/dto"
	"github.com/praveenbiet/elephant/internal/auth/password"
	autherror "github.com/praveenbiet/elephant/internal/errors"
	"github.com/praveenbiet/elephant/pkg/metrics"
)

const (
	EventUserCreated  = "user.created"
	EventUserVerified = "user.verified"
)

// RegistrationService orchestrates account creation and email verification.
type RegistrationService struct {
	users     domain.UserRepository
	ledger    *TokenLedger
	hasher    Hasher
	validator *password.Validator
	mailer    domain.Mailer
	events    domain.EventPublisher
	logger    *zap.Logger
	baseURL   string
}

func NewRegistrationService(
	users domain.UserRepository,
	ledger *TokenLedger,
	hasher Hasher,
	validator *password.Validator,
	mailer domain.Mailer,
	events domain.EventPublisher,
	logger *zap.Logger,
	baseURL string,
) *RegistrationService {
	return &RegistrationService{
		users:     users,
		ledger:    ledger,
		hasher:    hasher,
		validator: validator,
		mailer:    mailer,
		events:    events,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Register creates a new account. With requireVerification the account
// starts inactive and a verification token is mailed out. Mail and event
// failures are logged but never fail a registration that already persisted.
func (s *RegistrationService) Register(ctx context.Context, input dto.RegisterInput, requireVerification bool) (*domain.User, error) {
	email := NormalizeEmail(input.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Warn("registration attempt with existing email", zap.String("email", email))
		return nil, autherror.ErrEmailAlreadyInUse
	}

	if violations := s.validator.Validate(input.Password, ""); len(violations) > 0 {
		return nil, &autherror.PolicyViolations{Violations: violations}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		IsActive:     !requireVerification,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	metrics.RegistrationsTotal.Inc()

	if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.FullName()); err != nil {
		s.logger.Error("failed to send welcome email", zap.String("user_id", user.ID), zap.Error(err))
	}

	if requireVerification {
		if err := s.sendVerification(ctx, user); err != nil {
			s.logger.Error("failed to send verification email", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	s.publish(ctx, EventUserCreated, user.ID, map[string]any{
		"user_id":     user.ID,
		"email":       user.Email,
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
		"is_active":   user.IsActive,
		"is_verified": user.IsVerified,
		"created_at":  user.CreatedAt.UTC().Format(time.RFC3339),
	})

	return user, nil
}

// VerifyEmail consumes a verification token, activates and verifies the
// owning account. Any redemption failure surfaces as
// ErrInvalidVerificationToken.
func (s *RegistrationService) VerifyEmail(ctx context.Context, tokenValue string) (*domain.User, error) {
	userID, err := s.ledger.RedeemVerificationToken(ctx, tokenValue)
	if err != nil {
		if isRedemptionFailure(err) {
			s.logger.Warn("verification token rejected", zap.Error(err))
			return nil, autherror.ErrInvalidVerificationToken
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrInvalidVerificationToken
	}

	user.MarkVerified(time.Now())
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("email verified", zap.String("user_id", user.ID))
	metrics.TokenRedemptionsTotal.WithLabelValues(string(domain.TokenKindEmailVerification)).Inc()

	s.publish(ctx, EventUserVerified, user.ID, map[string]any{
		"user_id":     user.ID,
		"email":       user.Email,
		"verified_at": time.Now().UTC().Format(time.RFC3339),
	})

	return user, nil
}

// ResendVerification issues a fresh verification token. Unknown and
// already-verified addresses return success with nothing sent, mirroring the
// enumeration-safe behavior of password reset requests.
func (s *RegistrationService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || user.IsVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

func (s *RegistrationService) sendVerification(ctx context.Context, user *domain.User) error {
	token, err := s.ledger.IssueVerificationToken(ctx, user.ID)
	if err != nil {
		return err
	}
	link := s.baseURL + "/verify-email?token=" + token.Token
	return s.mailer.SendVerificationEmail(ctx, user.Email, user.FullName(), link)
}

// publish emits a domain event; failures are logged, never propagated.
func (s *RegistrationService) publish(ctx context.Context, eventType, subjectID string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, subjectID, payload); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}
}
