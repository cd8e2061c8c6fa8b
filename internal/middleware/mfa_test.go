package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/auth"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/middleware"
	"github.com/google/uuid"
	. "github.com/onsi/gomega"
)

func TestRequireMFA(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.RequireMFA(okHandler)

	cases := []struct {
		name           string
		mfaEnabled     bool
		mfaVerified    bool
		expectedStatus int
	}{
		{"mfa disabled", false, false, http.StatusOK},
		{"mfa enabled and verified", true, true, http.StatusOK},
		{"mfa enabled but not verified", true, false, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithT(t)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := auth.ContextWithAuthn(r.Context(), &auth.Authn{
				AccountID:   uuid.New(),
				SessionID:   uuid.New(),
				MFAEnabled:  tc.mfaEnabled,
				MFAVerified: tc.mfaVerified,
			})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r.WithContext(ctx))

			g.Expect(w.Code).To(Equal(tc.expectedStatus))
			if tc.expectedStatus == http.StatusForbidden {
				var body api.ErrorResponse
				g.Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
				g.Expect(body.Error).To(Equal(api.ErrorKindMFARequired))
			}
		})
	}
}

func TestRateLimitByIP(t *testing.T) {
	g := NewWithT(t)
	handler := middleware.RateLimitByIP(2, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	doRequest := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "192.0.2.10:52412"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	g.Expect(doRequest().Code).To(Equal(http.StatusOK))
	g.Expect(doRequest().Code).To(Equal(http.StatusOK))

	limited := doRequest()
	g.Expect(limited.Code).To(Equal(http.StatusTooManyRequests))
	g.Expect(limited.Header().Get("Retry-After")).To(Equal("60"))
	var body api.ErrorResponse
	g.Expect(json.NewDecoder(limited.Body).Decode(&body)).To(Succeed())
	g.Expect(body.Error).To(Equal(api.ErrorKindRateLimited))
	g.Expect(body.RetryAfterSeconds).To(Equal(60))

	// A different client is unaffected.
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "198.51.100.7:41000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	g.Expect(w.Code).To(Equal(http.StatusOK))
}

func TestRateLimitMFAVerification_KeyedByChallenge(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "c2VjcmV0LXNpZ25pbmcta2V5LWZvci10ZXN0cw==")
	t.Setenv("DEEPREF_HOST", "http://localhost:8080")
	t.Setenv("MFA_ATTEMPT_LIMIT", "2")
	env.Initialize()

	var receivedBodies []string
	handler := middleware.RateLimitMFAVerification()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			g.Expect(err).NotTo(HaveOccurred())
			receivedBodies = append(receivedBodies, string(body))
			w.WriteHeader(http.StatusOK)
		}))

	challengeID := uuid.New()
	payload := `{"challengeId":"` + challengeID.String() + `","method":"totp","code":"000000"}`
	doRequest := func(remoteAddr, body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		r.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	g.Expect(doRequest("192.0.2.10:52412", payload).Code).To(Equal(http.StatusOK))
	g.Expect(doRequest("192.0.2.10:52412", payload).Code).To(Equal(http.StatusOK))

	// Rotating the source address does not refresh the budget for the
	// same challenge.
	g.Expect(doRequest("198.51.100.7:41000", payload).Code).To(Equal(http.StatusTooManyRequests))

	// A different challenge has its own budget.
	otherPayload := `{"challengeId":"` + uuid.NewString() + `","method":"totp","code":"000000"}`
	g.Expect(doRequest("192.0.2.10:52412", otherPayload).Code).To(Equal(http.StatusOK))

	// The key func must put the body back for the handler.
	g.Expect(receivedBodies).To(HaveEach(Not(BeEmpty())))
	g.Expect(receivedBodies[0]).To(Equal(payload))

	// Bodies without a challenge id fall back to per-IP throttling.
	g.Expect(doRequest("203.0.113.5:40000", `{not json`).Code).To(Equal(http.StatusOK))
	g.Expect(doRequest("203.0.113.5:40000", `{not json`).Code).To(Equal(http.StatusOK))
	g.Expect(doRequest("203.0.113.5:40000", `{not json`).Code).To(Equal(http.StatusTooManyRequests))
}
