package api

import "github.com/deepref-sh/deepref/internal/validation"

type PasswordResetRequest struct {
	Email string `json:"email"`
}

func (r *PasswordResetRequest) Validate() error {
	if r.Email == "" {
		return validation.NewValidationFailedError("email is empty")
	}
	return nil
}

type PasswordResetValidateRequest struct {
	Token string `json:"token"`
}

func (r *PasswordResetValidateRequest) Validate() error {
	if r.Token == "" {
		return validation.NewValidationFailedError("token is empty")
	}
	return nil
}

type PasswordResetCompleteRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r *PasswordResetCompleteRequest) Validate() error {
	if r.Token == "" {
		return validation.NewValidationFailedError("token is empty")
	}
	// Only presence is checked here. The lifecycle manager runs the policy
	// after the token lookup, so an invalid token wins over a weak password.
	if r.NewPassword == "" {
		return validation.NewValidationFailedError("newPassword is empty")
	}
	return nil
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *PasswordChangeRequest) Validate() error {
	if r.CurrentPassword == "" {
		return validation.NewValidationFailedError("currentPassword is empty")
	}
	if r.NewPassword == "" {
		return validation.NewValidationFailedError("newPassword is empty")
	}
	return nil
}
