package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type MFAMethod string

const (
	MFAMethodTOTP         MFAMethod = "totp"
	MFAMethodRecoveryCode MFAMethod = "recovery_code"
)

func ParseMFAMethod(value string) (MFAMethod, error) {
	switch value {
	case string(MFAMethodTOTP):
		return MFAMethodTOTP, nil
	case string(MFAMethodRecoveryCode):
		return MFAMethodRecoveryCode, nil
	default:
		return "", errors.New("invalid mfa method")
	}
}

// MFAChallenge is the ephemeral record created when a login hits an
// MFA-enabled account. It is consumed exactly once on successful
// verification; expired challenges are purged by a cleanup job.
type MFAChallenge struct {
	ID         uuid.UUID  `db:"id"`
	CreatedAt  time.Time  `db:"created_at"`
	AccountID  uuid.UUID  `db:"account_id"`
	Method     MFAMethod  `db:"method"`
	ExpiresAt  time.Time  `db:"expires_at"`
	ConsumedAt *time.Time `db:"consumed_at"`
}
