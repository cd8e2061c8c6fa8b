package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
)

// RateLimitByIP throttles unauthenticated endpoints per client IP.
func RateLimitByIP(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitedHandler(windowLength)),
	)
}

// RateLimitMFAVerification is the dedicated quota for second-factor attempts,
// separate from and stricter than the generic per-endpoint throttling. The
// budget is attached to the challenge, not the client address, so rotating
// source IPs does not buy extra guesses against the same login attempt.
func RateLimitMFAVerification() func(http.Handler) http.Handler {
	windowLength := env.MFAAttemptWindow()
	return httprate.Limit(
		env.MFAAttemptLimit(),
		windowLength,
		httprate.WithKeyFuncs(keyByMFAChallenge),
		httprate.WithLimitHandler(rateLimitedHandler(windowLength)),
	)
}

// keyByMFAChallenge extracts the challenge id from the request body and puts
// the body back for the handler. Requests without a usable challenge id fall
// back to the client IP so malformed payloads still get throttled.
func keyByMFAChallenge(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return httprate.KeyByRealIP(r)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		ChallengeID uuid.UUID `json:"challengeId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.ChallengeID == uuid.Nil {
		return httprate.KeyByRealIP(r)
	}
	return payload.ChallengeID.String(), nil
}

func rateLimitedHandler(windowLength time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		retryAfter := int(windowLength.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respondError(w, http.StatusTooManyRequests, api.ErrorResponse{
			Error:             api.ErrorKindRateLimited,
			Message:           "too many attempts, slow down",
			RetryAfterSeconds: retryAfter,
		})
	}
}
