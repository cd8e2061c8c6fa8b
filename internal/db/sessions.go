package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepref-sh/deepref/internal/apierrors"
	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionOutputExpr = `
	s.id, s.created_at, s.account_id, s.family_id, s.token_hash, s.device_name,
	s.ip_address, s.user_agent, s.mfa_verified, s.last_used_at, s.expires_at,
	s.rotated_at, s.revoked_at `

func CreateSession(ctx context.Context, session *types.Session) error {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`INSERT INTO Session
			(account_id, family_id, token_hash, device_name, ip_address,
			user_agent, mfa_verified, last_used_at, expires_at)
		VALUES
			(@accountId, @familyId, @tokenHash, @deviceName, @ipAddress,
			@userAgent, @mfaVerified, now(), @expiresAt)
		RETURNING id, created_at, last_used_at`,
		pgx.NamedArgs{
			"accountId":   session.AccountID,
			"familyId":    session.FamilyID,
			"tokenHash":   session.TokenHash,
			"deviceName":  session.DeviceName,
			"ipAddress":   session.IPAddress,
			"userAgent":   session.UserAgent,
			"mfaVerified": session.MFAVerified,
			"expiresAt":   session.ExpiresAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to insert Session: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Session])
	if err != nil {
		return fmt.Errorf("failed to insert Session: %w", err)
	}
	session.ID = result.ID
	session.CreatedAt = result.CreatedAt
	session.LastUsedAt = result.LastUsedAt
	return nil
}

// GetSessionByTokenHash returns the row regardless of its state. Callers use
// it after a failed rotation to distinguish an unknown token from a reused
// one.
func GetSessionByTokenHash(ctx context.Context, tokenHash []byte) (*types.Session, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`SELECT`+sessionOutputExpr+`FROM Session s WHERE s.token_hash = @tokenHash`,
		pgx.NamedArgs{"tokenHash": tokenHash},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query Session: %w", err)
	}
	return collectSessionRow(rows)
}

// RotateSession marks the session matching tokenHash as rotated, but only if
// it is still active. Exactly one concurrent caller can win this update; all
// others get ErrNotFound.
func RotateSession(ctx context.Context, tokenHash []byte) (*types.Session, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`UPDATE Session s
		SET rotated_at = now(), last_used_at = now()
		WHERE s.token_hash = @tokenHash
			AND s.rotated_at IS NULL AND s.revoked_at IS NULL
			AND s.expires_at > now()
		RETURNING`+sessionOutputExpr,
		pgx.NamedArgs{"tokenHash": tokenHash},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate Session: %w", err)
	}
	return collectSessionRow(rows)
}

func collectSessionRow(rows pgx.Rows) (*types.Session, error) {
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.Session])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to collect Session: %w", err)
	}
	return &result, nil
}

func GetActiveSessions(ctx context.Context, accountID uuid.UUID) ([]types.Session, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`SELECT`+sessionOutputExpr+`
		FROM Session s
		WHERE s.account_id = @accountId
			AND s.rotated_at IS NULL AND s.revoked_at IS NULL
			AND s.expires_at > now()
		ORDER BY s.last_used_at DESC`,
		pgx.NamedArgs{"accountId": accountID},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query Sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, pgx.RowToStructByName[types.Session])
	if err != nil {
		return nil, fmt.Errorf("failed to collect Sessions: %w", err)
	}
	return sessions, nil
}

// RevokeSession revokes one session of the given account. Ownership is part
// of the WHERE clause: a session id belonging to another account yields
// ErrNotFound rather than leaking its existence.
func RevokeSession(ctx context.Context, accountID uuid.UUID, sessionID uuid.UUID) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE Session SET revoked_at = now()
		WHERE id = @sessionId AND account_id = @accountId AND revoked_at IS NULL`,
		pgx.NamedArgs{"sessionId": sessionID, "accountId": accountID},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke Session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

func RevokeSessionByTokenHash(ctx context.Context, tokenHash []byte) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE Session SET revoked_at = now()
		WHERE token_hash = @tokenHash AND revoked_at IS NULL`,
		pgx.NamedArgs{"tokenHash": tokenHash},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke Session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

func RevokeSessionFamily(ctx context.Context, familyID uuid.UUID) (int64, error) {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE Session SET revoked_at = now()
		WHERE family_id = @familyId AND revoked_at IS NULL`,
		pgx.NamedArgs{"familyId": familyID},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke Session family: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func RevokeAllSessions(ctx context.Context, accountID uuid.UUID) (int64, error) {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE Session SET revoked_at = now()
		WHERE account_id = @accountId AND revoked_at IS NULL AND rotated_at IS NULL`,
		pgx.NamedArgs{"accountId": accountID},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke Sessions: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func RevokeOtherSessions(ctx context.Context, accountID uuid.UUID, keepSessionID uuid.UUID) (int64, error) {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE Session SET revoked_at = now()
		WHERE account_id = @accountId AND id != @keepSessionId
			AND revoked_at IS NULL AND rotated_at IS NULL`,
		pgx.NamedArgs{"accountId": accountID, "keepSessionId": keepSessionID},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke other Sessions: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func DeleteInactiveSessions(ctx context.Context, retention time.Duration) (int64, error) {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`DELETE FROM Session
		WHERE (revoked_at IS NOT NULL OR rotated_at IS NOT NULL OR expires_at < now())
			AND created_at < now() - make_interval(secs => @retentionSeconds)`,
		pgx.NamedArgs{"retentionSeconds": retention.Seconds()},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive Sessions: %w", err)
	}
	return cmd.RowsAffected(), nil
}
