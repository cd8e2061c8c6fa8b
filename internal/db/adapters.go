package db

import (
	"context"
	"time"

	"github.com/deepref-sh/deepref/internal/credentials"
	"github.com/deepref-sh/deepref/internal/session"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/google/uuid"
)

// UserAccountStore adapts the package-level account functions to the
// credentials.AccountStore port. The pgx connection travels in the context,
// so the adapter itself is stateless.
type UserAccountStore struct{}

var _ credentials.AccountStore = UserAccountStore{}
var _ session.AccountGetter = UserAccountStore{}

func (UserAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*types.UserAccount, error) {
	return GetUserAccountByID(ctx, id)
}

func (UserAccountStore) GetByEmail(ctx context.Context, email string) (*types.UserAccount, error) {
	return GetUserAccountByEmail(ctx, email)
}

func (UserAccountStore) GetByResetToken(ctx context.Context, token string) (*types.UserAccount, error) {
	return GetUserAccountByPasswordResetToken(ctx, token)
}

func (UserAccountStore) SetPasswordResetToken(
	ctx context.Context, id uuid.UUID, token string, expiresAt time.Time,
) error {
	return SetUserAccountPasswordResetToken(ctx, id, token, expiresAt)
}

func (UserAccountStore) CompletePasswordReset(
	ctx context.Context, id uuid.UUID, passwordHash []byte,
) error {
	return CompleteUserAccountPasswordReset(ctx, id, passwordHash)
}

func (UserAccountStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	return UpdateUserAccountPassword(ctx, id, passwordHash)
}

func (UserAccountStore) IncrementFailedLoginAttempts(
	ctx context.Context, id uuid.UUID, threshold int, lockoutDuration time.Duration,
) (bool, error) {
	return IncrementUserAccountFailedLoginAttempts(ctx, id, threshold, lockoutDuration)
}

func (UserAccountStore) ResetFailedLoginAttempts(ctx context.Context, id uuid.UUID) error {
	return ResetUserAccountFailedLoginAttempts(ctx, id)
}

// SessionStore adapts the session functions to the session.Store port.
type SessionStore struct{}

var _ session.Store = SessionStore{}

func (SessionStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunTx(ctx, fn)
}

func (SessionStore) Create(ctx context.Context, s *types.Session) error {
	return CreateSession(ctx, s)
}

func (SessionStore) GetByTokenHash(ctx context.Context, tokenHash []byte) (*types.Session, error) {
	return GetSessionByTokenHash(ctx, tokenHash)
}

func (SessionStore) Rotate(ctx context.Context, tokenHash []byte) (*types.Session, error) {
	return RotateSession(ctx, tokenHash)
}

func (SessionStore) ListActive(ctx context.Context, accountID uuid.UUID) ([]types.Session, error) {
	return GetActiveSessions(ctx, accountID)
}

func (SessionStore) Revoke(ctx context.Context, accountID uuid.UUID, sessionID uuid.UUID) error {
	return RevokeSession(ctx, accountID, sessionID)
}

func (SessionStore) RevokeByTokenHash(ctx context.Context, tokenHash []byte) error {
	return RevokeSessionByTokenHash(ctx, tokenHash)
}

func (SessionStore) RevokeFamily(ctx context.Context, familyID uuid.UUID) (int64, error) {
	return RevokeSessionFamily(ctx, familyID)
}

func (SessionStore) RevokeAll(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return RevokeAllSessions(ctx, accountID)
}

func (SessionStore) RevokeOthers(
	ctx context.Context, accountID uuid.UUID, keepSessionID uuid.UUID,
) (int64, error) {
	return RevokeOtherSessions(ctx, accountID, keepSessionID)
}
