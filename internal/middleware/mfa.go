package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/auth"
)

// RequireMFA rejects requests whose principal has MFA enabled but did not
// pass the challenge in the session behind this access token. The error kind
// is distinct from a generic 401 so clients can redirect into the challenge
// flow instead of to login.
//
// The mfa-verified flag is read from the access token, not from storage, so
// the gate costs no database round-trip. The flip side is a staleness window
// of at most the access-token lifetime after MFA is enabled or disabled.
func RequireMFA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authn := auth.Require(r.Context())
		if authn.MFAEnabled && !authn.MFAVerified {
			respondError(w, http.StatusForbidden, api.ErrorResponse{
				Error:   api.ErrorKindMFARequired,
				Message: "multi-factor verification required for this session",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondError(w http.ResponseWriter, status int, body api.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
