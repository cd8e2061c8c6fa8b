// Package credentials implements the password lifecycle: reset-token
// issuance and consumption, authenticated password change and failed-login
// tracking. Storage is behind small ports so the manager runs against the
// pgx adapters in internal/db as well as against in-memory fakes in tests.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/mail"
	"github.com/deepref-sh/deepref/internal/security"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/deepref-sh/deepref/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountStore is the persistence port for UserAccount credential state.
// It is the only component allowed to mutate that state.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*types.UserAccount, error)
	GetByResetToken(ctx context.Context, token string) (*types.UserAccount, error)
	SetPasswordResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	CompletePasswordReset(ctx context.Context, id uuid.UUID, passwordHash []byte) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash []byte) error
	IncrementFailedLoginAttempts(
		ctx context.Context, id uuid.UUID, threshold int, lockoutDuration time.Duration,
	) (locked bool, err error)
	ResetFailedLoginAttempts(ctx context.Context, id uuid.UUID) error
}

// SessionRevoker is implemented by the session manager. Password reset and
// change must invalidate existing refresh tokens.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, accountID uuid.UUID) (int64, error)
	RevokeOthers(ctx context.Context, accountID uuid.UUID, keepSessionID uuid.UUID) (int64, error)
}

type Manager struct {
	accounts AccountStore
	sessions SessionRevoker
	mailer   mail.Mailer
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(
	accounts AccountStore, sessions SessionRevoker, mailer mail.Mailer, logger *zap.Logger,
) *Manager {
	return &Manager{
		accounts: accounts,
		sessions: sessions,
		mailer:   mailer,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestReset issues a reset token for the account behind email and mails
// the reset link. The outcome is indistinguishable for existing and unknown
// addresses so the endpoint cannot be used for account enumeration; only
// the existing-address path persists a token.
func (m *Manager) RequestReset(ctx context.Context, email string) error {
	account, err := m.accounts.GetByEmail(ctx, email)
	if errors.Is(err, apierrors.ErrNotFound) {
		m.logger.Info("password reset requested for unknown email")
		return nil
	} else if err != nil {
		return err
	}

	token, err := security.NewOpaqueToken()
	if err != nil {
		return err
	}
	expiresAt := m.now().Add(env.ResetTokenValidDuration())
	if err := m.accounts.SetPasswordResetToken(ctx, account.ID, token, expiresAt); err != nil {
		return err
	}

	m.sendMail(ctx, mail.NewPasswordResetMail(account.Email, env.Host(), token))
	m.logger.Info("password reset token issued", zap.String("accountId", account.ID.String()))
	return nil
}

// ValidateResetToken checks the token without consuming it. It backs both
// the standalone validation endpoint and the first step of ResetPassword.
func (m *Manager) ValidateResetToken(ctx context.Context, token string) (*types.UserAccount, error) {
	if token == "" {
		return nil, apierrors.ErrInvalidToken
	}
	account, err := m.accounts.GetByResetToken(ctx, token)
	if errors.Is(err, apierrors.ErrNotFound) {
		return nil, apierrors.ErrInvalidToken
	} else if err != nil {
		return nil, err
	}
	if account.PasswordResetExpiresAt == nil {
		return nil, apierrors.ErrInvalidToken
	}
	if account.PasswordResetExpiresAt.Before(m.now()) {
		return nil, apierrors.ErrExpiredToken
	}
	return account, nil
}

// ResetPassword consumes the token and stores the new password. The token
// pair is cleared in the same statement that stores the hash, so a used
// token can never validate again. All sessions of the account are revoked.
func (m *Manager) ResetPassword(ctx context.Context, token string, newPassword string) error {
	account, err := m.ValidateResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}
	if security.PasswordMatchesHash(newPassword, account.PasswordHash) {
		return apierrors.ErrSamePassword
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := m.accounts.CompletePasswordReset(ctx, account.ID, hash); err != nil {
		return err
	}

	count, err := m.sessions.RevokeAll(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions after password reset: %w", err)
	}
	m.logger.Info("password reset completed",
		zap.String("accountId", account.ID.String()),
		zap.Int64("sessionsRevoked", count))

	m.sendMail(ctx, mail.NewPasswordChangedMail(account.Email))
	return nil
}

// ChangePassword is the in-session variant: it requires the current
// password and keeps the calling session alive while revoking every other
// one. This is deliberately different from ResetPassword, which is
// out-of-band and revokes everything.
func (m *Manager) ChangePassword(
	ctx context.Context,
	accountID uuid.UUID,
	currentSessionID uuid.UUID,
	currentPassword string,
	newPassword string,
) error {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if len(account.PasswordHash) == 0 {
		return apierrors.ErrNoPasswordSet
	}
	if err := security.VerifyPassword(*account, currentPassword); err != nil {
		return err
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}
	if newPassword == currentPassword {
		return apierrors.ErrSamePassword
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := m.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}

	count, err := m.sessions.RevokeOthers(ctx, account.ID, currentSessionID)
	if err != nil {
		return fmt.Errorf("failed to revoke other sessions after password change: %w", err)
	}
	m.logger.Info("password changed",
		zap.String("accountId", account.ID.String()),
		zap.Int64("sessionsRevoked", count))

	m.sendMail(ctx, mail.NewPasswordChangedMail(account.Email))
	return nil
}

func (m *Manager) WasRecentlyChanged(
	ctx context.Context, accountID uuid.UUID, within time.Duration,
) (bool, error) {
	account, err := m.accounts.GetByID(ctx, accountID)
	if errors.Is(err, apierrors.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if account.PasswordChangedAt == nil {
		return false, nil
	}
	return m.now().Sub(*account.PasswordChangedAt) <= within, nil
}

// TrackFailedLogin atomically bumps the failed-login counter and reports
// whether the account is now locked out.
func (m *Manager) TrackFailedLogin(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return m.accounts.IncrementFailedLoginAttempts(
		ctx, accountID, env.LoginLockoutThreshold(), env.LoginLockoutDuration())
}

func (m *Manager) ResetFailedLogins(ctx context.Context, accountID uuid.UUID) error {
	return m.accounts.ResetFailedLoginAttempts(ctx, accountID)
}

// sendMail is fire-and-forget: a delivery failure is logged, never
// propagated to the caller.
func (m *Manager) sendMail(ctx context.Context, msg mail.Mail) {
	if err := m.mailer.Send(ctx, msg); err != nil {
		m.logger.Warn("failed to send mail", zap.String("subject", msg.Subject), zap.Error(err))
	}
}
