// Package postgres is the pgx-backed storage adapter for users and tokens.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/praveenbiet/elephant/internal/auth/domain"
	autherror "github.com/praveenbiet/elephant/internal/errors"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, is_active, is_verified, created_at, updated_at, last_login_at`

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
	return scanUser(row, "get user by id")
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email)
	return scanUser(row, "get user by email")
}

func scanUser(row pgx.Row, op string) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, autherror.Storage(op, err)
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.IsActive, user.IsVerified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return autherror.ErrEmailAlreadyInUse
		}
		return autherror.Storage("create user", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, is_active = $5, is_verified = $6, updated_at = $7
		WHERE id = $1`,
		user.ID, user.Email, user.FirstName, user.LastName,
		user.IsActive, user.IsVerified, user.UpdatedAt)
	if err != nil {
		return autherror.Storage("update user", err)
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return autherror.Storage("update password", err)
	}
	return nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return autherror.Storage("update last login", err)
	}
	return nil
}

func (r *Repository) AddPasswordHistory(ctx context.Context, entry *domain.PasswordHistoryEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.UserID, entry.PasswordHash, entry.CreatedAt)
	if err != nil {
		return autherror.Storage("add password history", err)
	}
	return nil
}

func (r *Repository) GetRecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT password_hash FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, autherror.Storage("get password history", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, autherror.Storage("scan password history", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, autherror.Storage("iterate password history", err)
	}
	return hashes, nil
}

func (r *Repository) StoreSingleUseToken(ctx context.Context, token *domain.SingleUseToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO single_use_tokens (id, kind, user_id, token, expires_at, created_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, string(token.Kind), token.UserID, token.Token,
		token.ExpiresAt, token.CreatedAt, token.Used)
	if err != nil {
		return autherror.Storage("store single-use token", err)
	}
	return nil
}

// RedeemSingleUseToken performs the check-and-mark-used step as one
// conditional UPDATE. Under concurrent redemption of the same value exactly
// one caller gets the user id; the rest fall through to classification and
// see ErrTokenAlreadyUsed.
func (r *Repository) RedeemSingleUseToken(ctx context.Context, value string, kind domain.TokenKind, now time.Time) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx, `
		UPDATE single_use_tokens
		SET used = TRUE, used_at = $3
		WHERE token = $1 AND kind = $2 AND used = FALSE AND expires_at > $3
		RETURNING user_id`,
		value, string(kind), now).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", autherror.Storage("redeem token", err)
	}

	// The conditional update matched nothing. Work out why, for logs and
	// error kind; the caller-facing error is collapsed upstream anyway.
	var used bool
	var expiresAt time.Time
	err = r.db.QueryRow(ctx, `
		SELECT used, expires_at FROM single_use_tokens
		WHERE token = $1 AND kind = $2 LIMIT 1`,
		value, string(kind)).Scan(&used, &expiresAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", autherror.ErrTokenNotFound
	case err != nil:
		return "", autherror.Storage("classify token", err)
	case used:
		return "", autherror.ErrTokenAlreadyUsed
	case now.After(expiresAt):
		return "", autherror.ErrTokenExpired
	default:
		// Unused and unexpired here means a concurrent redeemer won the
		// conditional update between our two statements.
		return "", autherror.ErrTokenAlreadyUsed
	}
}

func (r *Repository) StoreRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, device_fingerprint, ip_address, user_agent, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		token.ID, token.UserID, token.Token, token.DeviceFingerprint,
		token.IPAddress, token.UserAgent, token.ExpiresAt, token.CreatedAt, token.Revoked)
	if err != nil {
		return autherror.Storage("store refresh token", err)
	}
	return nil
}

func (r *Repository) GetRefreshToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, token, device_fingerprint, ip_address, user_agent,
		       expires_at, created_at, revoked, revoked_at, revoked_reason
		FROM refresh_tokens
		WHERE token = $1 LIMIT 1`, value)

	var t domain.RefreshToken
	var revokedReason *string
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceFingerprint, &t.IPAddress,
		&t.UserAgent, &t.ExpiresAt, &t.CreatedAt, &t.Revoked, &t.RevokedAt, &revokedReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, autherror.Storage("get refresh token", err)
	}
	if revokedReason != nil {
		t.RevokedReason = *revokedReason
	}
	return &t, nil
}

// RevokeRefreshToken is idempotent: an unknown or already-revoked token is
// not an error, and the original revocation reason is preserved.
func (r *Repository) RevokeRefreshToken(ctx context.Context, value, reason string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2, revoked_reason = $3
		WHERE token = $1 AND revoked = FALSE`,
		value, now, reason)
	if err != nil {
		return autherror.Storage("revoke refresh token", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
