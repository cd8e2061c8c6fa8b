package api

import (
	"github.com/deepref-sh/deepref/internal/validation"
	"github.com/google/uuid"
)

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// TrustedDeviceToken lets a remembered device skip the MFA challenge.
	TrustedDeviceToken *string `json:"trustedDeviceToken,omitempty"`
}

func (r *AuthLoginRequest) Validate() error {
	if r.Email == "" {
		return validation.NewValidationFailedError("email is empty")
	} else if r.Password == "" {
		return validation.NewValidationFailedError("password is empty")
	}
	return nil
}

type AuthLoginResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	RequiresMFA  bool   `json:"requiresMfa"`
	// ChallengeID is set when RequiresMFA is true and must be echoed back
	// on the verification call.
	ChallengeID *uuid.UUID `json:"challengeId,omitempty"`
}

type AuthRegistrationRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *AuthRegistrationRequest) Validate() error {
	if r.Email == "" {
		return validation.NewValidationFailedError("email is empty")
	} else if err := validation.ValidatePassword(r.Password); err != nil {
		return err
	}
	return nil
}

type AuthRefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *AuthRefreshRequest) Validate() error {
	if r.RefreshToken == "" {
		return validation.NewValidationFailedError("refreshToken is empty")
	}
	return nil
}

type AuthRefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthLogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	AllDevices   bool   `json:"allDevices"`
}

func (r *AuthLogoutRequest) Validate() error {
	if r.RefreshToken == "" {
		return validation.NewValidationFailedError("refreshToken is empty")
	}
	return nil
}

type AuthLogoutResponse struct {
	SessionsRevoked int64 `json:"sessionsRevoked"`
}

type AuthLoginLinkRequest struct {
	Email string `json:"email"`
}

func (r *AuthLoginLinkRequest) Validate() error {
	if r.Email == "" {
		return validation.NewValidationFailedError("email is empty")
	}
	return nil
}

type AuthVerifyEmailRequest struct {
	Token string `json:"token"`
}

func (r *AuthVerifyEmailRequest) Validate() error {
	if r.Token == "" {
		return validation.NewValidationFailedError("token is empty")
	}
	return nil
}

type AuthLoginLinkConsumeRequest struct {
	Token string `json:"token"`
}

func (r *AuthLoginLinkConsumeRequest) Validate() error {
	if r.Token == "" {
		return validation.NewValidationFailedError("token is empty")
	}
	return nil
}
