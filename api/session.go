package api

import (
	"time"

	"github.com/google/uuid"
)

type SessionResponse struct {
	ID         uuid.UUID `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	DeviceName string    `json:"deviceName,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	// Current marks the session the request was authenticated with.
	Current bool `json:"current"`
}

type RevokeAllSessionsResponse struct {
	SessionsRevoked int64 `json:"sessionsRevoked"`
}
