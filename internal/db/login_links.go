package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepref-sh/deepref/internal/apierrors"
	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/jackc/pgx/v5"
)

func CreateLoginLink(ctx context.Context, link *types.LoginLink) error {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`INSERT INTO LoginLink (account_id, token_hash, expires_at)
		VALUES (@accountId, @tokenHash, @expiresAt)
		RETURNING id, created_at`,
		pgx.NamedArgs{
			"accountId": link.AccountID,
			"tokenHash": link.TokenHash,
			"expiresAt": link.ExpiresAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to insert LoginLink: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.LoginLink])
	if err != nil {
		return fmt.Errorf("failed to insert LoginLink: %w", err)
	}
	link.ID = result.ID
	link.CreatedAt = result.CreatedAt
	return nil
}

// ConsumeLoginLink marks the link consumed if it is still pending and
// unexpired, returning it. Single use is enforced by the WHERE clause.
func ConsumeLoginLink(ctx context.Context, tokenHash []byte) (*types.LoginLink, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`UPDATE LoginLink
		SET consumed_at = now()
		WHERE token_hash = @tokenHash AND consumed_at IS NULL AND expires_at > now()
		RETURNING id, created_at, account_id, token_hash, expires_at, consumed_at`,
		pgx.NamedArgs{"tokenHash": tokenHash},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume LoginLink: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.LoginLink])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to collect LoginLink: %w", err)
	}
	return &result, nil
}

func DeleteExpiredLoginLinks(ctx context.Context) (int64, error) {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`DELETE FROM LoginLink WHERE expires_at < now() OR consumed_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired LoginLinks: %w", err)
	}
	return cmd.RowsAffected(), nil
}
