package mapping

import (
	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/google/uuid"
)

func SessionToResponse(session types.Session, currentSessionID uuid.UUID) api.SessionResponse {
	return api.SessionResponse{
		ID:         session.ID,
		CreatedAt:  session.CreatedAt,
		DeviceName: session.DeviceName,
		IPAddress:  session.IPAddress,
		UserAgent:  session.UserAgent,
		LastUsedAt: session.LastUsedAt,
		ExpiresAt:  session.ExpiresAt,
		Current:    session.ID == currentSessionID,
	}
}

func SessionsToResponse(sessions []types.Session, currentSessionID uuid.UUID) []api.SessionResponse {
	return List(sessions, func(session types.Session) api.SessionResponse {
		return SessionToResponse(session, currentSessionID)
	})
}

func RevokeAllSessionsResponse(count int64) api.RevokeAllSessionsResponse {
	return api.RevokeAllSessionsResponse{SessionsRevoked: count}
}
