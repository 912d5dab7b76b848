// Package notification delivers authentication mail through an HTTP send
// API (Mailtrap-compatible).
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	APIURL    string
	APIKey    string
	FromEmail string
	FromName  string
}

type HTTPMailer struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewHTTPMailer(cfg Config, logger *zap.Logger) *HTTPMailer {
	if cfg.FromEmail == "" {
		cfg.FromEmail = "noreply@example.com"
	}
	return &HTTPMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (m *HTTPMailer) SendWelcomeEmail(ctx context.Context, email, name string) error {
	body := fmt.Sprintf("Hi %s,\n\nWelcome aboard! Your account has been created.", name)
	return m.send(ctx, email, "Welcome", body)
}

func (m *HTTPMailer) SendVerificationEmail(ctx context.Context, email, name, verificationLink string) error {
	body := fmt.Sprintf("Hi %s,\n\nPlease verify your email address:\n%s", name, verificationLink)
	return m.send(ctx, email, "Verify your email", body)
}

func (m *HTTPMailer) SendPasswordResetEmail(ctx context.Context, email, name, resetLink string) error {
	body := fmt.Sprintf("Hi %s,\n\nUse the link below to reset your password:\n%s", name, resetLink)
	return m.send(ctx, email, "Reset your password", body)
}

func (m *HTTPMailer) send(ctx context.Context, to, subject, text string) error {
	// Without an API key the mailer degrades to a log line, which keeps
	// local development working without a mail provider.
	if m.cfg.APIKey == "" || m.cfg.APIURL == "" {
		m.logger.Warn("mail not sent, mailer not configured",
			zap.String("to", to),
			zap.String("subject", subject),
		)
		return nil
	}

	reqBody := map[string]any{
		"from": map[string]string{
			"email": m.cfg.FromEmail,
			"name":  m.cfg.FromName,
		},
		"to":      []map[string]string{{"email": to}},
		"subject": subject,
		"text":    text,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail API returned status %d: %s", resp.StatusCode, detail)
	}

	m.logger.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
