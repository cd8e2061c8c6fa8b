package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"net/http"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/auth"
	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/db"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/security"
	"github.com/deepref-sh/deepref/internal/session"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/deepref-sh/deepref/internal/util"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

// MFASettingsRouter holds the authenticated management endpoints. Enabling
// and disabling require proof (a valid code or the password), never just a
// bearer token.
func MFASettingsRouter() func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/setup", mfaSetupHandler())
		r.Post("/enable", mfaEnableHandler())
		r.Post("/disable", mfaDisableHandler())
		r.Post("/recovery-codes/regenerate", mfaRegenerateRecoveryCodesHandler())
		r.Get("/recovery-codes/status", mfaRecoveryCodesStatusHandler())
	}
}

func mfaSetupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)
		authn := auth.Require(ctx)

		userAccount, err := db.GetUserAccountByID(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if userAccount.MFAEnabled {
			http.Error(w, "MFA is already enabled", http.StatusBadRequest)
			return
		}

		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "DeepRef",
			AccountName: userAccount.Email,
			Algorithm:   otp.AlgorithmSHA1,
			Digits:      otp.DigitsSix,
			Period:      30,
		})
		if err != nil {
			sentry.GetHubFromContext(ctx).CaptureException(err)
			log.Error("failed to generate TOTP key", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if err := db.UpdateUserAccountMFASecret(ctx, authn.AccountID, key.Secret()); err != nil {
			RespondError(w, r, err)
			return
		}

		img, err := key.Image(200, 200)
		if err != nil {
			sentry.GetHubFromContext(ctx).CaptureException(err)
			log.Error("failed to generate QR code", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			sentry.GetHubFromContext(ctx).CaptureException(err)
			log.Error("failed to encode QR code", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		RespondJSON(w, api.SetupMFAResponse{
			Secret:    key.Secret(),
			QRCodeUrl: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		})
	}
}

func mfaEnableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)
		authn := auth.Require(ctx)

		request, err := JsonBody[api.EnableMFARequest](w, r)
		if err != nil {
			return
		}

		userAccount, err := db.GetUserAccountByID(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if userAccount.MFAEnabled {
			http.Error(w, "MFA is already enabled", http.StatusBadRequest)
			return
		}
		if userAccount.MFASecret == nil {
			http.Error(w, "MFA not set up", http.StatusBadRequest)
			return
		}
		if !totp.Validate(request.Code, *userAccount.MFASecret) {
			http.Error(w, "invalid code", http.StatusBadRequest)
			return
		}

		codes, records, err := newRecoveryCodeRecords()
		if err != nil {
			sentry.GetHubFromContext(ctx).CaptureException(err)
			log.Error("failed to generate recovery codes", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		err = db.RunTx(ctx, func(ctx context.Context) error {
			if err := db.EnableUserAccountMFA(ctx, authn.AccountID); err != nil {
				return err
			}
			return db.CreateMFARecoveryCodes(ctx, authn.AccountID, records)
		})
		if err != nil {
			RespondError(w, r, err)
			return
		}

		log.Info("MFA enabled", zap.String("accountId", authn.AccountID.String()))
		RespondJSON(w, api.EnableMFAResponse{RecoveryCodes: formatRecoveryCodes(codes)})
	}
}

func mfaDisableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)
		authn := auth.Require(ctx)

		request, err := JsonBody[api.DisableMFARequest](w, r)
		if err != nil {
			return
		}

		userAccount, err := db.GetUserAccountByID(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if !userAccount.MFAEnabled {
			http.Error(w, "MFA is not enabled", http.StatusBadRequest)
			return
		}
		if err := security.VerifyPassword(*userAccount, request.Password); err != nil {
			RespondError(w, r, apierrors.ErrInvalidCredentials)
			return
		}

		err = db.RunTx(ctx, func(ctx context.Context) error {
			if err := db.DisableUserAccountMFA(ctx, authn.AccountID); err != nil {
				return err
			}
			if err := db.DeleteAllMFARecoveryCodes(ctx, authn.AccountID); err != nil {
				return err
			}
			return db.DeleteTrustedDevicesForAccount(ctx, authn.AccountID)
		})
		if err != nil {
			RespondError(w, r, err)
			return
		}

		log.Info("MFA disabled", zap.String("accountId", authn.AccountID.String()))
		w.WriteHeader(http.StatusNoContent)
	}
}

func mfaRegenerateRecoveryCodesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)
		authn := auth.Require(ctx)

		request, err := JsonBody[api.RegenerateMFARecoveryCodesRequest](w, r)
		if err != nil {
			return
		}

		userAccount, err := db.GetUserAccountByID(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if !userAccount.MFAEnabled {
			http.Error(w, "MFA is not enabled", http.StatusBadRequest)
			return
		}
		if err := security.VerifyPassword(*userAccount, request.Password); err != nil {
			RespondError(w, r, apierrors.ErrInvalidCredentials)
			return
		}

		codes, records, err := newRecoveryCodeRecords()
		if err != nil {
			sentry.GetHubFromContext(ctx).CaptureException(err)
			log.Error("failed to generate recovery codes", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		err = db.RunTx(ctx, func(ctx context.Context) error {
			if err := db.DeleteAllMFARecoveryCodes(ctx, authn.AccountID); err != nil {
				return err
			}
			return db.CreateMFARecoveryCodes(ctx, authn.AccountID, records)
		})
		if err != nil {
			RespondError(w, r, err)
			return
		}

		RespondJSON(w, api.RegenerateMFARecoveryCodesResponse{RecoveryCodes: formatRecoveryCodes(codes)})
	}
}

func mfaRecoveryCodesStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authn := auth.Require(ctx)

		userAccount, err := db.GetUserAccountByID(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if !userAccount.MFAEnabled {
			http.Error(w, "MFA is not enabled", http.StatusBadRequest)
			return
		}

		count, err := db.CountUnusedMFARecoveryCodes(ctx, authn.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondJSON(w, api.MFARecoveryCodesStatusResponse{RemainingCodes: count})
	}
}

func newRecoveryCodeRecords() ([]string, []types.MFARecoveryCode, error) {
	codes, err := security.GenerateRecoveryCodes()
	if err != nil {
		return nil, nil, err
	}
	records := make([]types.MFARecoveryCode, len(codes))
	for i, code := range codes {
		salt, hash, err := security.HashRecoveryCode(code)
		if err != nil {
			return nil, nil, err
		}
		records[i] = types.MFARecoveryCode{CodeSalt: salt, CodeHash: hash}
	}
	return codes, records, nil
}

func formatRecoveryCodes(codes []string) []string {
	formatted := make([]string, len(codes))
	for i, code := range codes {
		formatted[i] = security.FormatRecoveryCode(code)
	}
	return formatted
}

// VerifyMFAChallengeHandler completes the second login step. The challenge
// is consumed with a conditional update only after the code verifies, so a
// wrong code leaves it usable while concurrent correct answers still have
// exactly one winner.
func VerifyMFAChallengeHandler(sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)

		request, err := JsonBody[api.VerifyMFAChallengeRequest](w, r)
		if err != nil {
			return
		}

		challenge, err := db.GetMFAChallenge(ctx, request.ChallengeID)
		if errors.Is(err, apierrors.ErrNotFound) {
			RespondError(w, r, apierrors.ErrInvalidToken)
			return
		} else if err != nil {
			RespondError(w, r, err)
			return
		}
		if challenge.ConsumedAt != nil {
			RespondError(w, r, apierrors.ErrInvalidToken)
			return
		}
		if !challenge.ExpiresAt.After(timeNow()) {
			RespondError(w, r, apierrors.ErrExpiredToken)
			return
		}

		userAccount, err := db.GetUserAccountByID(ctx, challenge.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if !userAccount.MFAEnabled || userAccount.MFASecret == nil {
			RespondError(w, r, apierrors.ErrInvalidToken)
			return
		}

		switch request.Method {
		case types.MFAMethodTOTP:
			if !totp.Validate(request.Code, *userAccount.MFASecret) {
				RespondError(w, r, apierrors.ErrInvalidCredentials)
				return
			}
		case types.MFAMethodRecoveryCode:
			if !verifyRecoveryCode(ctx, userAccount.ID, request.Code) {
				RespondError(w, r, apierrors.ErrInvalidCredentials)
				return
			}
		default:
			RespondError(w, r, apierrors.ErrInvalidCredentials)
			return
		}

		if _, err := db.ConsumeMFAChallenge(ctx, challenge.ID); err != nil {
			if errors.Is(err, apierrors.ErrNotFound) {
				RespondError(w, r, apierrors.ErrInvalidToken)
				return
			}
			RespondError(w, r, err)
			return
		}

		var trustedDeviceToken *string
		if request.RememberDevice {
			token, err := rememberDevice(ctx, userAccount.ID)
			if err != nil {
				sentry.GetHubFromContext(ctx).CaptureException(err)
				log.Error("failed to create trusted device", zap.Error(err))
			} else {
				trustedDeviceToken = util.PtrTo(token)
			}
		}

		pair, err := sessionMgr.Issue(ctx, userAccount, requestMetadata(ctx), true)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		log.Info("mfa challenge completed",
			zap.String("accountId", userAccount.ID.String()),
			zap.String("method", string(request.Method)))
		RespondJSON(w, api.VerifyMFAChallengeResponse{
			AccessToken:        pair.AccessToken,
			RefreshToken:       pair.RefreshToken,
			TrustedDeviceToken: trustedDeviceToken,
		})
	}
}

func verifyRecoveryCode(ctx context.Context, accountID uuid.UUID, code string) bool {
	log := internalctx.GetLogger(ctx)
	unused, err := db.GetUnusedMFARecoveryCodes(ctx, accountID)
	if err != nil {
		sentry.GetHubFromContext(ctx).CaptureException(err)
		log.Error("failed to load recovery codes", zap.Error(err))
		return false
	}
	for _, record := range unused {
		if security.VerifyRecoveryCode(code, record.CodeSalt, record.CodeHash) {
			if err := db.MarkMFARecoveryCodeAsUsed(ctx, record.ID); err != nil {
				sentry.GetHubFromContext(ctx).CaptureException(err)
				log.Error("failed to mark recovery code as used", zap.Error(err))
				return false
			}
			return true
		}
	}
	return false
}

func rememberDevice(ctx context.Context, accountID uuid.UUID) (string, error) {
	token, err := security.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	device := types.TrustedDevice{
		AccountID:       accountID,
		FingerprintHash: security.HashToken(token),
		DeviceName:      deviceNameFromUserAgent(internalctx.GetRequestUserAgent(ctx)),
		ExpiresAt:       timeNow().Add(env.TrustedDeviceValidDuration()),
	}
	if err := db.CreateTrustedDevice(ctx, &device); err != nil {
		return "", err
	}
	return token, nil
}
