package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepref-sh/deepref/internal/apierrors"
	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func CreateMFAChallenge(ctx context.Context, challenge *types.MFAChallenge) error {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`INSERT INTO MFAChallenge (account_id, method, expires_at)
		VALUES (@accountId, @method, @expiresAt)
		RETURNING id, created_at`,
		pgx.NamedArgs{
			"accountId": challenge.AccountID,
			"method":    challenge.Method,
			"expiresAt": challenge.ExpiresAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to insert MFAChallenge: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.MFAChallenge])
	if err != nil {
		return fmt.Errorf("failed to insert MFAChallenge: %w", err)
	}
	challenge.ID = result.ID
	challenge.CreatedAt = result.CreatedAt
	return nil
}

func GetMFAChallenge(ctx context.Context, id uuid.UUID) (*types.MFAChallenge, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`SELECT id, created_at, account_id, method, expires_at, consumed_at
		FROM MFAChallenge WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query MFAChallenge: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.MFAChallenge])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to collect MFAChallenge: %w", err)
	}
	return &result, nil
}

// ConsumeMFAChallenge marks the challenge as consumed, but only when it is
// still pending and unexpired. A challenge can be consumed at most once.
func ConsumeMFAChallenge(ctx context.Context, id uuid.UUID) (*types.MFAChallenge, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`UPDATE MFAChallenge
		SET consumed_at = now()
		WHERE id = @id AND consumed_at IS NULL AND expires_at > now()
		RETURNING id, created_at, account_id, method, expires_at, consumed_at`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume MFAChallenge: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.MFAChallenge])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to collect MFAChallenge: %w", err)
	}
	return &result, nil
}

func DeleteExpiredMFAChallenges(ctx context.Context) (int64, error) {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`DELETE FROM MFAChallenge WHERE expires_at < now() OR consumed_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired MFAChallenges: %w", err)
	}
	return cmd.RowsAffected(), nil
}
