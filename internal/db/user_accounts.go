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
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userAccountOutputExpr = `
	u.id, u.created_at, u.email, u.name, u.role, u.password_hash,
	u.email_verified, u.mfa_enabled, u.mfa_secret, u.failed_login_attempts,
	u.locked_until, u.password_changed_at, u.password_reset_token,
	u.password_reset_expires_at `

func CreateUserAccount(ctx context.Context, userAccount *types.UserAccount) error {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`INSERT INTO UserAccount (email, name, role, password_hash, email_verified)
		VALUES (@email, @name, @role, @passwordHash, @emailVerified)
		RETURNING id, created_at`,
		pgx.NamedArgs{
			"email":         userAccount.Email,
			"name":          userAccount.Name,
			"role":          userAccount.Role,
			"passwordHash":  userAccount.PasswordHash,
			"emailVerified": userAccount.EmailVerified,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to insert UserAccount: %w", err)
	}
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.UserAccount])
	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == pgerrcode.UniqueViolation {
			return apierrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert UserAccount: %w", err)
	}
	userAccount.ID = result.ID
	userAccount.CreatedAt = result.CreatedAt
	return nil
}

func GetUserAccountByID(ctx context.Context, id uuid.UUID) (*types.UserAccount, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`SELECT`+userAccountOutputExpr+`FROM UserAccount u WHERE u.id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query UserAccount: %w", err)
	}
	return collectUserAccountRow(rows)
}

func GetUserAccountByEmail(ctx context.Context, email string) (*types.UserAccount, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`SELECT`+userAccountOutputExpr+`FROM UserAccount u WHERE lower(u.email) = lower(@email)`,
		pgx.NamedArgs{"email": email},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query UserAccount: %w", err)
	}
	return collectUserAccountRow(rows)
}

func GetUserAccountByPasswordResetToken(ctx context.Context, token string) (*types.UserAccount, error) {
	db := internalctx.GetDb(ctx)
	rows, err := db.Query(ctx,
		`SELECT`+userAccountOutputExpr+`FROM UserAccount u WHERE u.password_reset_token = @token`,
		pgx.NamedArgs{"token": token},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query UserAccount: %w", err)
	}
	return collectUserAccountRow(rows)
}

func collectUserAccountRow(rows pgx.Rows) (*types.UserAccount, error) {
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.UserAccount])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to collect UserAccount: %w", err)
	}
	return &result, nil
}

// SetUserAccountPasswordResetToken stores the token and its expiry in a
// single statement. The pair is never written individually.
func SetUserAccountPasswordResetToken(
	ctx context.Context, id uuid.UUID, token string, expiresAt time.Time,
) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE UserAccount
		SET password_reset_token = @token, password_reset_expires_at = @expiresAt
		WHERE id = @id`,
		pgx.NamedArgs{"id": id, "token": token, "expiresAt": expiresAt},
	)
	if err != nil {
		return fmt.Errorf("failed to set password reset token: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

// CompleteUserAccountPasswordReset stores the new hash, clears the reset
// token pair, zeroes the failed-login state and stamps password_changed_at,
// all in one statement so that a consumed token can never remain valid.
func CompleteUserAccountPasswordReset(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE UserAccount
		SET password_hash = @passwordHash,
			password_reset_token = NULL,
			password_reset_expires_at = NULL,
			failed_login_attempts = 0,
			locked_until = NULL,
			password_changed_at = now()
		WHERE id = @id`,
		pgx.NamedArgs{"id": id, "passwordHash": passwordHash},
	)
	if err != nil {
		return fmt.Errorf("failed to complete password reset: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

func UpdateUserAccountPassword(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE UserAccount
		SET password_hash = @passwordHash, password_changed_at = now()
		WHERE id = @id`,
		pgx.NamedArgs{"id": id, "passwordHash": passwordHash},
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

// IncrementUserAccountFailedLoginAttempts bumps the counter and sets the
// lockout timestamp once the threshold is reached, as one conditional
// statement. Concurrent failed attempts therefore never lose increments.
func IncrementUserAccountFailedLoginAttempts(
	ctx context.Context, id uuid.UUID, threshold int, lockoutDuration time.Duration,
) (locked bool, err error) {
	db := internalctx.GetDb(ctx)
	var lockedUntil *time.Time
	err = db.QueryRow(ctx,
		`UPDATE UserAccount
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= @threshold
					THEN now() + make_interval(secs => @lockoutSeconds)
				ELSE locked_until
			END
		WHERE id = @id
		RETURNING locked_until`,
		pgx.NamedArgs{
			"id":             id,
			"threshold":      threshold,
			"lockoutSeconds": lockoutDuration.Seconds(),
		},
	).Scan(&lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apierrors.ErrNotFound
	} else if err != nil {
		return false, fmt.Errorf("failed to track failed login: %w", err)
	}
	return lockedUntil != nil && lockedUntil.After(time.Now()), nil
}

func ResetUserAccountFailedLoginAttempts(ctx context.Context, id uuid.UUID) error {
	db := internalctx.GetDb(ctx)
	_, err := db.Exec(ctx,
		`UPDATE UserAccount SET failed_login_attempts = 0, locked_until = NULL WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to reset failed logins: %w", err)
	}
	return nil
}

func SetUserAccountEmailVerified(ctx context.Context, id uuid.UUID) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE UserAccount SET email_verified = true WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to set email verified: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

func UpdateUserAccountMFASecret(ctx context.Context, id uuid.UUID, secret string) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE UserAccount SET mfa_secret = @secret WHERE id = @id`,
		pgx.NamedArgs{"id": id, "secret": secret},
	)
	if err != nil {
		return fmt.Errorf("failed to save MFA secret: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

func EnableUserAccountMFA(ctx context.Context, id uuid.UUID) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE UserAccount SET mfa_enabled = true WHERE id = @id AND mfa_secret IS NOT NULL`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to enable MFA: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}

func DisableUserAccountMFA(ctx context.Context, id uuid.UUID) error {
	db := internalctx.GetDb(ctx)
	cmd, err := db.Exec(ctx,
		`UPDATE UserAccount SET mfa_enabled = false, mfa_secret = NULL WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to disable MFA: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apierrors.ErrNotFound
	}
	return nil
}
