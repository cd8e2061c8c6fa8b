package handlers

import (
	"net/http"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/auth"
	"github.com/deepref-sh/deepref/internal/credentials"
	"github.com/go-chi/chi/v5"
)

// PasswordRouter mounts the unauthenticated reset flow. The authenticated
// change endpoint is mounted separately under the session-bearing routes.
func PasswordRouter(credentialsMgr *credentials.Manager) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/reset-request", requestPasswordResetHandler(credentialsMgr))
		r.Post("/reset/validate", validatePasswordResetTokenHandler(credentialsMgr))
		r.Post("/reset", resetPasswordHandler(credentialsMgr))
	}
}

func requestPasswordResetHandler(credentialsMgr *credentials.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := JsonBody[api.PasswordResetRequest](w, r)
		if err != nil {
			return
		}
		// Unknown addresses take the same path shape as known ones.
		if err := credentialsMgr.RequestReset(r.Context(), request.Email); err != nil {
			RespondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func validatePasswordResetTokenHandler(credentialsMgr *credentials.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := JsonBody[api.PasswordResetValidateRequest](w, r)
		if err != nil {
			return
		}
		if _, err := credentialsMgr.ValidateResetToken(r.Context(), request.Token); err != nil {
			RespondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resetPasswordHandler(credentialsMgr *credentials.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := JsonBody[api.PasswordResetCompleteRequest](w, r)
		if err != nil {
			return
		}
		if err := credentialsMgr.ResetPassword(r.Context(), request.Token, request.NewPassword); err != nil {
			RespondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ChangePasswordHandler(credentialsMgr *credentials.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authn := auth.Require(ctx)
		request, err := JsonBody[api.PasswordChangeRequest](w, r)
		if err != nil {
			return
		}
		err = credentialsMgr.ChangePassword(
			ctx, authn.AccountID, authn.SessionID, request.CurrentPassword, request.NewPassword)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
