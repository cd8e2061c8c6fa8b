package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/validation"
	. "github.com/onsi/gomega"
)

func TestErrorResponse(t *testing.T) {
	cases := []struct {
		err            error
		expectedStatus int
		expectedKind   string
	}{
		{apierrors.ErrInvalidCredentials, http.StatusUnauthorized, api.ErrorKindInvalidCredentials},
		{apierrors.ErrNoPasswordSet, http.StatusUnauthorized, api.ErrorKindInvalidCredentials},
		{apierrors.ErrAccountLocked, http.StatusForbidden, api.ErrorKindAccountLocked},
		{apierrors.ErrSamePassword, http.StatusBadRequest, api.ErrorKindSamePassword},
		{apierrors.ErrInvalidToken, http.StatusUnauthorized, api.ErrorKindInvalidToken},
		{apierrors.ErrExpiredToken, http.StatusUnauthorized, api.ErrorKindExpiredToken},
		{apierrors.ErrSessionNotFound, http.StatusNotFound, api.ErrorKindSessionNotFound},
		{apierrors.ErrMFARequired, http.StatusForbidden, api.ErrorKindMFARequired},
		{apierrors.ErrNotFound, http.StatusNotFound, api.ErrorKindNotFound},
		{validation.NewValidationFailedError("name is empty"), http.StatusBadRequest,
			api.ErrorKindValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.expectedKind, func(t *testing.T) {
			g := NewWithT(t)
			status, body := errorResponse(tc.err)
			g.Expect(status).To(Equal(tc.expectedStatus))
			g.Expect(body.Error).To(Equal(tc.expectedKind))
		})
	}
}

func TestErrorResponse_PasswordPolicyGetsOwnKind(t *testing.T) {
	g := NewWithT(t)
	err := validation.ValidatePassword("short")
	status, body := errorResponse(err)
	g.Expect(status).To(Equal(http.StatusBadRequest))
	g.Expect(body.Error).To(Equal(api.ErrorKindWeakPassword))
	g.Expect(body.Message).NotTo(BeEmpty())
}

func TestJsonBody(t *testing.T) {
	g := NewWithT(t)
	r := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"email":"alice@example.com"}`))
	w := httptest.NewRecorder()
	body, err := JsonBody[api.PasswordResetRequest](w, r)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(body.Email).To(Equal("alice@example.com"))
}

func TestJsonBody_WeakPasswordPassesDecode(t *testing.T) {
	// The password policy is not enforced at decode time. The lifecycle
	// manager checks it after the token lookup, so a bogus token with a
	// weak password surfaces as invalid_token rather than weak_password.
	g := NewWithT(t)
	r := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"token":"definitely-not-a-valid-token","newPassword":"weak"}`))
	w := httptest.NewRecorder()
	body, err := JsonBody[api.PasswordResetCompleteRequest](w, r)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(body.NewPassword).To(Equal("weak"))
}

func TestJsonBody_ValidationFailure(t *testing.T) {
	g := NewWithT(t)
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	_, err := JsonBody[api.PasswordResetRequest](w, r)
	g.Expect(err).To(HaveOccurred())
	g.Expect(w.Code).To(Equal(http.StatusBadRequest))
}

func TestJsonBody_MalformedBody(t *testing.T) {
	g := NewWithT(t)
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	_, err := JsonBody[api.PasswordResetRequest](w, r)
	g.Expect(err).To(HaveOccurred())
	g.Expect(w.Code).To(Equal(http.StatusBadRequest))
}

func TestDeviceNameFromUserAgent(t *testing.T) {
	g := NewWithT(t)
	g.Expect(deviceNameFromUserAgent("curl/8.5.0")).To(Equal("curl/8.5.0"))
	g.Expect(deviceNameFromUserAgent("Mozilla/5.0 (X11; Linux x86_64)")).To(Equal("Mozilla/5.0"))
	g.Expect(deviceNameFromUserAgent("")).To(BeEmpty())
}
