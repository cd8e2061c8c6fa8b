package api

// ErrorResponse is the uniform error body. Error is a stable machine-readable
// kind, Message is human-readable and may change.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// RetryAfterSeconds accompanies rate_limited errors.
	RetryAfterSeconds int `json:"retryAfterSeconds,omitempty"`
}

const (
	ErrorKindValidationFailed   = "validation_failed"
	ErrorKindInvalidCredentials = "invalid_credentials"
	ErrorKindAccountLocked      = "account_locked"
	ErrorKindWeakPassword       = "weak_password"
	ErrorKindSamePassword       = "same_password_as_current"
	ErrorKindInvalidToken       = "invalid_token"
	ErrorKindExpiredToken       = "expired_token"
	ErrorKindSessionNotFound    = "session_not_found"
	ErrorKindMFARequired        = "mfa_required"
	ErrorKindRateLimited        = "rate_limited"
	ErrorKindNotFound           = "not_found"
	ErrorKindInternal           = "internal"
)
