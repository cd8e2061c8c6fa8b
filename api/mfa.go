package api

import (
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/deepref-sh/deepref/internal/validation"
	"github.com/google/uuid"
)

type SetupMFAResponse struct {
	Secret    string `json:"secret"`
	QRCodeUrl string `json:"qrCodeUrl"`
}

type EnableMFARequest struct {
	Code string `json:"code"`
}

func (r *EnableMFARequest) Validate() error {
	if r.Code == "" {
		return validation.NewValidationFailedError("code is empty")
	}
	return nil
}

type EnableMFAResponse struct {
	RecoveryCodes []string `json:"recoveryCodes"`
}

type DisableMFARequest struct {
	Password string `json:"password"`
}

func (r *DisableMFARequest) Validate() error {
	if r.Password == "" {
		return validation.NewValidationFailedError("password is empty")
	}
	return nil
}

type VerifyMFAChallengeRequest struct {
	ChallengeID uuid.UUID       `json:"challengeId"`
	Method      types.MFAMethod `json:"method"`
	Code        string          `json:"code"`
	// RememberDevice requests a trusted-device token so this device can
	// skip the challenge on future logins.
	RememberDevice bool `json:"rememberDevice"`
}

func (r *VerifyMFAChallengeRequest) Validate() error {
	if r.ChallengeID == uuid.Nil {
		return validation.NewValidationFailedError("challengeId is empty")
	} else if _, err := types.ParseMFAMethod(string(r.Method)); err != nil {
		return validation.NewValidationFailedError("method must be one of totp, recovery_code")
	} else if r.Code == "" {
		return validation.NewValidationFailedError("code is empty")
	}
	return nil
}

type VerifyMFAChallengeResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// TrustedDeviceToken is only present when RememberDevice was requested.
	TrustedDeviceToken *string `json:"trustedDeviceToken,omitempty"`
}

type RegenerateMFARecoveryCodesRequest struct {
	Password string `json:"password"`
}

func (r *RegenerateMFARecoveryCodesRequest) Validate() error {
	if r.Password == "" {
		return validation.NewValidationFailedError("password is empty")
	}
	return nil
}

type RegenerateMFARecoveryCodesResponse struct {
	RecoveryCodes []string `json:"recoveryCodes"`
}

type MFARecoveryCodesStatusResponse struct {
	RemainingCodes int `json:"remainingCodes"`
}
