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

func CreateTrustedDevice(ctx context.Context, device *types.TrustedDevice) error {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`INSERT INTO TrustedDevice
			(account_id, fingerprint_hash, device_name, last_seen_at, expires_at)
		VALUES (@accountId, @fingerprintHash, @deviceName, now(), @expiresAt)
		RETURNING id, created_at, last_seen_at`,
		pgx.NamedArgs{
			"accountId":       device.AccountID,
			"fingerprintHash": device.FingerprintHash,
			"deviceName":      device.DeviceName,
			"expiresAt":       device.ExpiresAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to insert TrustedDevice: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.TrustedDevice])
	if err != nil {
		return fmt.Errorf("failed to insert TrustedDevice: %w", err)
	}
	device.ID = result.ID
	device.CreatedAt = result.CreatedAt
	device.LastSeenAt = result.LastSeenAt
	return nil
}

// GetValidTrustedDevice returns the device and bumps last_seen_at when the
// fingerprint matches an unexpired record of the account.
func GetValidTrustedDevice(
	ctx context.Context, accountID uuid.UUID, fingerprintHash []byte,
) (*types.TrustedDevice, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`UPDATE TrustedDevice
		SET last_seen_at = now()
		WHERE account_id = @accountId AND fingerprint_hash = @fingerprintHash
			AND expires_at > now()
		RETURNING id, created_at, account_id, fingerprint_hash, device_name,
			last_seen_at, expires_at`,
		pgx.NamedArgs{"accountId": accountID, "fingerprintHash": fingerprintHash},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query TrustedDevice: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.TrustedDevice])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to collect TrustedDevice: %w", err)
	}
	return &result, nil
}

func DeleteTrustedDevicesForAccount(ctx context.Context, accountID uuid.UUID) error {
	db := internalctx.GetDb(ctx)
	_, err := db.Exec(ctx,
		`DELETE FROM TrustedDevice WHERE account_id = @accountId`,
		pgx.NamedArgs{"accountId": accountID},
	)
	if err != nil {
		return fmt.Errorf("failed to delete TrustedDevices: %w", err)
	}
	return nil
}

func DeleteExpiredTrustedDevices(ctx context.Context) (int64, error) {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx, `DELETE FROM TrustedDevice WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired TrustedDevices: %w", err)
	}
	return cmd.RowsAffected(), nil
}
