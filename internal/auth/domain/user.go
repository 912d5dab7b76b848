package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Activate enables the account. The flag and UpdatedAt change together.
func (u *User) Activate(now time.Time) {
	u.IsActive = true
	u.UpdatedAt = now
}

func (u *User) Deactivate(now time.Time) {
	u.IsActive = false
	u.UpdatedAt = now
}

// MarkVerified records a successful email verification. Verified accounts
// are always activated as well.
func (u *User) MarkVerified(now time.Time) {
	u.IsVerified = true
	u.IsActive = true
	u.UpdatedAt = now
}

func (u *User) RecordLogin(now time.Time) {
	u.LastLoginAt = &now
}

type PasswordHistoryEntry struct {
	ID           string
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}
