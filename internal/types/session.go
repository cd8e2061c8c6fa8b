package types

import (
	"time"

	"github.com/google/uuid"
)

// Session is one refresh-token row. The opaque refresh token itself is never
// stored, only its SHA-256 hash. A session is active as long as it has been
// neither rotated nor revoked and has not passed its expiry. Rotated rows are
// kept around so that presentation of an already-rotated token can be
// detected and acted upon (the whole FamilyID is revoked in that case).
type Session struct {
	ID          uuid.UUID  `db:"id"`
	CreatedAt   time.Time  `db:"created_at"`
	AccountID   uuid.UUID  `db:"account_id"`
	FamilyID    uuid.UUID  `db:"family_id"`
	TokenHash   []byte     `db:"token_hash"`
	DeviceName  string     `db:"device_name"`
	IPAddress   string     `db:"ip_address"`
	UserAgent   string     `db:"user_agent"`
	MFAVerified bool       `db:"mfa_verified"`
	LastUsedAt  time.Time  `db:"last_used_at"`
	ExpiresAt   time.Time  `db:"expires_at"`
	RotatedAt   *time.Time `db:"rotated_at"`
	RevokedAt   *time.Time `db:"revoked_at"`
}

func (s *Session) Active(now time.Time) bool {
	return s.RotatedAt == nil && s.RevokedAt == nil && s.ExpiresAt.After(now)
}
