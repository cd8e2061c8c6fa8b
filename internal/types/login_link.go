package types

import (
	"time"

	"github.com/google/uuid"
)

// LoginLink is a single-use passwordless login token delivered by email.
type LoginLink struct {
	ID         uuid.UUID  `db:"id"`
	CreatedAt  time.Time  `db:"created_at"`
	AccountID  uuid.UUID  `db:"account_id"`
	TokenHash  []byte     `db:"token_hash"`
	ExpiresAt  time.Time  `db:"expires_at"`
	ConsumedAt *time.Time `db:"consumed_at"`
}
