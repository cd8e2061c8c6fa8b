package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/apierrors"
	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/session"
	"github.com/deepref-sh/deepref/internal/validation"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

var timeNow = time.Now

func requestMetadata(ctx context.Context) session.Metadata {
	userAgent := internalctx.GetRequestUserAgent(ctx)
	return session.Metadata{
		DeviceName: deviceNameFromUserAgent(userAgent),
		IPAddress:  internalctx.GetRequestIPAddress(ctx),
		UserAgent:  userAgent,
	}
}

// deviceNameFromUserAgent keeps the product token as a rough display name,
// e.g. "Mozilla/5.0" or "curl/8.5.0".
func deviceNameFromUserAgent(userAgent string) string {
	if idx := strings.IndexByte(userAgent, ' '); idx > 0 {
		return userAgent[:idx]
	}
	return userAgent
}

func RespondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type validatable interface {
	Validate() error
}

// JsonBody decodes the request body into T and runs its Validate method when
// it has one. On failure it writes the error response itself; callers must
// return without writing anything else.
func JsonBody[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var body T
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondError(w, r, validation.NewValidationFailedError("invalid request body"))
		return body, err
	}
	if v, ok := any(&body).(validatable); ok {
		if err := v.Validate(); err != nil {
			RespondError(w, r, err)
			return body, err
		}
	}
	return body, nil
}

// RespondError maps domain errors onto status codes and stable error kinds.
// Unrecognized errors are treated as internal: logged, reported to sentry
// and surfaced without detail.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		sentry.GetHubFromContext(ctx).CaptureException(err)
		internalctx.GetLogger(ctx).Error("request failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorResponse(err error) (int, api.ErrorResponse) {
	var validationErr *validation.ValidationFailedError
	switch {
	case errors.As(err, &validationErr):
		kind := api.ErrorKindValidationFailed
		// Password policy violations have their own kind so clients can
		// render the rule next to the password field.
		if strings.HasPrefix(validationErr.Message(), "password") {
			kind = api.ErrorKindWeakPassword
		}
		return http.StatusBadRequest, api.ErrorResponse{Error: kind, Message: validationErr.Message()}
	case errors.Is(err, apierrors.ErrInvalidCredentials), errors.Is(err, apierrors.ErrNoPasswordSet):
		// ErrNoPasswordSet folds into invalid credentials so the response
		// does not reveal how the account authenticates.
		return http.StatusUnauthorized, api.ErrorResponse{
			Error: api.ErrorKindInvalidCredentials, Message: "invalid credentials"}
	case errors.Is(err, apierrors.ErrAccountLocked):
		return http.StatusForbidden, api.ErrorResponse{
			Error: api.ErrorKindAccountLocked, Message: "account is temporarily locked"}
	case errors.Is(err, apierrors.ErrSamePassword):
		return http.StatusBadRequest, api.ErrorResponse{
			Error: api.ErrorKindSamePassword, Message: "new password must differ from the current one"}
	case errors.Is(err, apierrors.ErrInvalidToken):
		return http.StatusUnauthorized, api.ErrorResponse{
			Error: api.ErrorKindInvalidToken, Message: "token is invalid or has been used"}
	case errors.Is(err, apierrors.ErrExpiredToken):
		return http.StatusUnauthorized, api.ErrorResponse{
			Error: api.ErrorKindExpiredToken, Message: "token has expired"}
	case errors.Is(err, apierrors.ErrSessionNotFound):
		return http.StatusNotFound, api.ErrorResponse{
			Error: api.ErrorKindSessionNotFound, Message: "session not found"}
	case errors.Is(err, apierrors.ErrMFARequired):
		return http.StatusForbidden, api.ErrorResponse{
			Error: api.ErrorKindMFARequired, Message: "multi-factor verification required"}
	case errors.Is(err, apierrors.ErrAlreadyExists):
		return http.StatusConflict, api.ErrorResponse{
			Error: api.ErrorKindValidationFailed, Message: "already exists"}
	case errors.Is(err, apierrors.ErrNotFound):
		return http.StatusNotFound, api.ErrorResponse{
			Error: api.ErrorKindNotFound, Message: "not found"}
	default:
		return http.StatusInternalServerError, api.ErrorResponse{Error: api.ErrorKindInternal}
	}
}
