package types

import (
	"time"

	"github.com/google/uuid"
)

// TrustedDevice lets a device skip future MFA challenges until ExpiresAt.
// Its lifetime is independent of any session. The device token handed to the
// client is opaque; only its SHA-256 hash is stored.
type TrustedDevice struct {
	ID              uuid.UUID `db:"id"`
	CreatedAt       time.Time `db:"created_at"`
	AccountID       uuid.UUID `db:"account_id"`
	FingerprintHash []byte    `db:"fingerprint_hash"`
	DeviceName      string    `db:"device_name"`
	LastSeenAt      time.Time `db:"last_seen_at"`
	ExpiresAt       time.Time `db:"expires_at"`
}
