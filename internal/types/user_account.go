package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

func ParseUserRole(value string) (UserRole, error) {
	switch value {
	case string(UserRoleAdmin):
		return UserRoleAdmin, nil
	case string(UserRoleUser):
		return UserRoleUser, nil
	default:
		return "", errors.New("invalid user role")
	}
}

// UserAccount is the identity record of the credential subsystem. It is
// mutated exclusively through the functions in internal/db/user_accounts.go.
//
// PasswordHash is nil for passwordless accounts that sign in via login link
// only. PasswordResetToken and PasswordResetExpiresAt are always set and
// cleared together in a single statement.
type UserAccount struct {
	ID                     uuid.UUID  `db:"id"`
	CreatedAt              time.Time  `db:"created_at"`
	Email                  string     `db:"email"`
	Name                   string     `db:"name"`
	Role                   UserRole   `db:"role"`
	PasswordHash           []byte     `db:"password_hash"`
	EmailVerified          bool       `db:"email_verified"`
	MFAEnabled             bool       `db:"mfa_enabled"`
	MFASecret              *string    `db:"mfa_secret"`
	FailedLoginAttempts    int        `db:"failed_login_attempts"`
	LockedUntil            *time.Time `db:"locked_until"`
	PasswordChangedAt      *time.Time `db:"password_changed_at"`
	PasswordResetToken     *string    `db:"password_reset_token"`
	PasswordResetExpiresAt *time.Time `db:"password_reset_expires_at"`
}

func (u *UserAccount) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
