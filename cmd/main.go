package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/praveenbiet/elephant/config"
	"github.com/praveenbiet/elephant/db"
	"github.com/praveenbiet/elephant/internal/auth/domain"
	"github.com/praveenbiet/elephant/internal/auth/handler"
	"github.com/praveenbiet/elephant/internal/auth/password"
	repo "github.com/praveenbiet/elephant/internal/auth/repository/postgres"
	"github.com/praveenbiet/elephant/internal/auth/service"
	"github.com/praveenbiet/elephant/internal/events"
	"github.com/praveenbiet/elephant/internal/notification"
	"github.com/praveenbiet/elephant/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.Env)
	defer log.Sync() //nolint:errcheck

	if err := db.RunMigrations("file://db/migrations", cfg.DBURL); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	repository := repo.NewRepository(dbPool)

	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	validator := password.NewValidator(cfg.PasswordPolicy)
	tokenService := service.NewTokenService(cfg.AccessTokenSecret, cfg.AccessTokenTTL)
	ledger := service.NewTokenLedger(repository, cfg.ResetTokenTTL, cfg.VerificationTokenTTL, cfg.RefreshTokenTTL)

	mailer := notification.NewHTTPMailer(notification.Config{
		APIURL:    cfg.MailAPIURL,
		APIKey:    cfg.MailAPIKey,
		FromEmail: cfg.MailFromEmail,
		FromName:  cfg.MailFromName,
	}, log)

	var eventPublisher domain.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, "/auth-service", log)
		defer publisher.Close() //nolint:errcheck
		eventPublisher = publisher
	} else {
		log.Warn("no kafka brokers configured, domain events disabled")
	}

	authService := service.NewAuthService(
		repository, ledger, tokenService, hasher, validator, mailer, log, cfg.FrontendBaseURL)

	registrationService := service.NewRegistrationService(
		repository, ledger, hasher, validator, mailer, eventPublisher, log, cfg.FrontendBaseURL)

	authHandler := handler.NewAuthHandler(authService, registrationService, tokenService, cfg.RequireEmailVerification)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()
	log.Info("server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
