package types

import (
	"time"

	"github.com/google/uuid"
)

// MFARecoveryCode is a single-use fallback credential generated in a batch
// when MFA is enabled. Codes are stored salted and hashed, never in plain.
type MFARecoveryCode struct {
	ID        uuid.UUID  `db:"id"`
	CreatedAt time.Time  `db:"created_at"`
	AccountID uuid.UUID  `db:"account_id"`
	CodeHash  []byte     `db:"code_hash"`
	CodeSalt  []byte     `db:"code_salt"`
	UsedAt    *time.Time `db:"used_at"`
}
