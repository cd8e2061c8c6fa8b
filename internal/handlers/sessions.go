package handlers

import (
	"net/http"

	"github.com/deepref-sh/deepref/internal/auth"
	"github.com/deepref-sh/deepref/internal/mapping"
	"github.com/deepref-sh/deepref/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func SessionsRouter(sessionMgr *session.Manager) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", listSessionsHandler(sessionMgr))
		r.Delete("/", revokeAllSessionsHandler(sessionMgr))
		r.Delete("/{sessionId}", revokeSessionHandler(sessionMgr))
	}
}

func listSessionsHandler(sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authn := auth.Require(ctx)
		sessions, err := sessionMgr.ListActive(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondJSON(w, mapping.SessionsToResponse(sessions, authn.SessionID))
	}
}

func revokeAllSessionsHandler(sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authn := auth.Require(ctx)
		count, err := sessionMgr.RevokeAll(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondJSON(w, mapping.RevokeAllSessionsResponse(count))
	}
}

func revokeSessionHandler(sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authn := auth.Require(ctx)
		sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
		if err != nil {
			http.Error(w, "sessionId must be a valid UUID", http.StatusBadRequest)
			return
		}
		if err := sessionMgr.Revoke(ctx, authn.AccountID, sessionID); err != nil {
			RespondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
