// Package session manages refresh-token sessions: issuance, single-use
// rotation, revocation and listing. Every refresh token belongs to a family;
// presentation of a token that was already rotated or revoked is treated as
// theft and revokes the whole family.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/auth"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/security"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence port for session rows. InTx runs fn with every
// store call inside one transaction, so rotation and the insert of the
// successor row commit or roll back together.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, session *types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash []byte) (*types.Session, error)
	// Rotate marks the session matching tokenHash as rotated and returns it.
	// It only matches sessions that are active and unexpired; anything else
	// is ErrNotFound.
	Rotate(ctx context.Context, tokenHash []byte) (*types.Session, error)
	ListActive(ctx context.Context, accountID uuid.UUID) ([]types.Session, error)
	Revoke(ctx context.Context, accountID uuid.UUID, sessionID uuid.UUID) error
	RevokeByTokenHash(ctx context.Context, tokenHash []byte) error
	RevokeFamily(ctx context.Context, familyID uuid.UUID) (int64, error)
	RevokeAll(ctx context.Context, accountID uuid.UUID) (int64, error)
	RevokeOthers(ctx context.Context, accountID uuid.UUID, keepSessionID uuid.UUID) (int64, error)
}

// AccountGetter resolves the account during Refresh so the new access token
// reflects the current role and flags rather than the ones at login time.
type AccountGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.UserAccount, error)
}

// Metadata is the client context captured on issuance and refresh.
type Metadata struct {
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// TokenPair is the result of a successful login or refresh. RefreshToken is
// the only place the opaque token ever appears in plaintext.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    uuid.UUID
	ExpiresAt    time.Time
}

type signFunc func(userAccount types.UserAccount, sessionID uuid.UUID, mfaVerified bool) (string, error)

type Manager struct {
	store    Store
	accounts AccountGetter
	logger   *zap.Logger
	sign     signFunc
	now      func() time.Time
}

func NewManager(store Store, accounts AccountGetter, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		accounts: accounts,
		logger:   logger,
		sign:     auth.GenerateAccessToken,
		now:      time.Now,
	}
}

// Issue creates a fresh session family for the account and returns the token
// pair. mfaVerified records whether this login passed the second factor and
// sticks to the session across rotations.
func (m *Manager) Issue(
	ctx context.Context, userAccount *types.UserAccount, meta Metadata, mfaVerified bool,
) (*TokenPair, error) {
	refreshToken, err := security.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	session := &types.Session{
		AccountID:   userAccount.ID,
		FamilyID:    uuid.New(),
		TokenHash:   security.HashToken(refreshToken),
		DeviceName:  meta.DeviceName,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		MFAVerified: mfaVerified,
		ExpiresAt:   m.now().Add(env.RefreshTokenValidDuration()),
	}
	if err := m.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	accessToken, err := m.sign(*userAccount, session.ID, mfaVerified)
	if err != nil {
		return nil, err
	}
	m.logger.Info("session issued",
		zap.String("accountId", userAccount.ID.String()),
		zap.String("sessionId", session.ID.String()))
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    session.ID,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// Refresh exchanges an active refresh token for a new pair. The presented
// token is rotated with a conditional update, so under concurrent use of the
// same token exactly one caller wins. Losers, and any presentation of a token
// that was already rotated or revoked, get ErrInvalidToken and trigger
// family-wide revocation.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, meta Metadata) (*TokenPair, error) {
	tokenHash := security.HashToken(refreshToken)
	var pair *TokenPair
	err := m.store.InTx(ctx, func(ctx context.Context) error {
		rotated, err := m.store.Rotate(ctx, tokenHash)
		if errors.Is(err, apierrors.ErrNotFound) {
			return apierrors.ErrInvalidToken
		} else if err != nil {
			return err
		}

		userAccount, err := m.accounts.GetByID(ctx, rotated.AccountID)
		if err != nil {
			return fmt.Errorf("failed to get account for session: %w", err)
		}

		newToken, err := security.NewOpaqueToken()
		if err != nil {
			return err
		}
		successor := &types.Session{
			AccountID:   rotated.AccountID,
			FamilyID:    rotated.FamilyID,
			TokenHash:   security.HashToken(newToken),
			DeviceName:  rotated.DeviceName,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
			MFAVerified: rotated.MFAVerified,
			ExpiresAt:   m.now().Add(env.RefreshTokenValidDuration()),
		}
		if err := m.store.Create(ctx, successor); err != nil {
			return fmt.Errorf("failed to create successor session: %w", err)
		}
		accessToken, err := m.sign(*userAccount, successor.ID, successor.MFAVerified)
		if err != nil {
			return err
		}
		pair = &TokenPair{
			AccessToken:  accessToken,
			RefreshToken: newToken,
			SessionID:    successor.ID,
			ExpiresAt:    successor.ExpiresAt,
		}
		return nil
	})
	if errors.Is(err, apierrors.ErrInvalidToken) {
		// Outside the transaction: the rollback must not undo the
		// family revocation.
		m.revokeFamilyOnReuse(ctx, tokenHash)
		return nil, apierrors.ErrInvalidToken
	} else if err != nil {
		return nil, err
	}
	return pair, nil
}

func (m *Manager) revokeFamilyOnReuse(ctx context.Context, tokenHash []byte) {
	existing, err := m.store.GetByTokenHash(ctx, tokenHash)
	if errors.Is(err, apierrors.ErrNotFound) {
		// Unknown token, nothing to revoke.
		return
	} else if err != nil {
		m.logger.Error("failed to look up session for reuse detection", zap.Error(err))
		return
	}
	if existing.RotatedAt == nil && existing.RevokedAt == nil {
		return
	}
	count, err := m.store.RevokeFamily(ctx, existing.FamilyID)
	if err != nil {
		m.logger.Error("failed to revoke session family after token reuse", zap.Error(err))
		return
	}
	m.logger.Warn("refresh token reuse detected, session family revoked",
		zap.String("accountId", existing.AccountID.String()),
		zap.String("familyId", existing.FamilyID.String()),
		zap.Int64("sessionsRevoked", count))
}

// Logout revokes the session behind the presented refresh token, or all
// sessions of its account when allDevices is set. It returns the number of
// sessions revoked.
func (m *Manager) Logout(ctx context.Context, refreshToken string, allDevices bool) (int64, error) {
	tokenHash := security.HashToken(refreshToken)
	existing, err := m.store.GetByTokenHash(ctx, tokenHash)
	if errors.Is(err, apierrors.ErrNotFound) {
		return 0, apierrors.ErrInvalidToken
	} else if err != nil {
		return 0, err
	}
	if allDevices {
		return m.store.RevokeAll(ctx, existing.AccountID)
	}
	if err := m.store.RevokeByTokenHash(ctx, tokenHash); err != nil {
		if errors.Is(err, apierrors.ErrNotFound) {
			return 0, apierrors.ErrInvalidToken
		}
		return 0, err
	}
	return 1, nil
}

// ListActive returns the account's active sessions, most recently used
// first.
func (m *Manager) ListActive(ctx context.Context, accountID uuid.UUID) ([]types.Session, error) {
	return m.store.ListActive(ctx, accountID)
}

// Revoke revokes one session by id. Ownership is part of the lookup, so a
// session id belonging to a different account yields ErrSessionNotFound
// rather than leaking its existence.
func (m *Manager) Revoke(ctx context.Context, accountID uuid.UUID, sessionID uuid.UUID) error {
	err := m.store.Revoke(ctx, accountID, sessionID)
	if errors.Is(err, apierrors.ErrNotFound) {
		return apierrors.ErrSessionNotFound
	}
	return err
}

func (m *Manager) RevokeAll(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return m.store.RevokeAll(ctx, accountID)
}

func (m *Manager) RevokeOthers(
	ctx context.Context, accountID uuid.UUID, keepSessionID uuid.UUID,
) (int64, error) {
	return m.store.RevokeOthers(ctx, accountID, keepSessionID)
}
