package handlers

import (
	"errors"
	"net/http"

	"github.com/deepref-sh/deepref/api"
	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/auth"
	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/credentials"
	"github.com/deepref-sh/deepref/internal/db"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/mail"
	"github.com/deepref-sh/deepref/internal/security"
	"github.com/deepref-sh/deepref/internal/session"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthRouter mounts the login and token endpoints. Registration is mounted
// by the caller because it carries a stricter quota.
func AuthRouter(credentialsMgr *credentials.Manager, sessionMgr *session.Manager) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/login", loginHandler(credentialsMgr, sessionMgr))
		r.Post("/refresh", refreshHandler(sessionMgr))
		r.Post("/logout", logoutHandler(sessionMgr))
		r.Post("/verify-email", verifyEmailHandler())
		r.Post("/login-link", requestLoginLinkHandler())
		r.Post("/login-link/consume", consumeLoginLinkHandler(sessionMgr))
	}
}

func registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)

		if env.Registration() == env.RegistrationDisabled {
			http.Error(w, "registration is disabled", http.StatusForbidden)
			return
		}

		request, err := JsonBody[api.AuthRegistrationRequest](w, r)
		if err != nil {
			return
		}

		passwordHash, err := security.HashPassword(request.Password)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		userAccount := types.UserAccount{
			Email:        request.Email,
			Name:         request.Name,
			Role:         types.UserRoleUser,
			PasswordHash: passwordHash,
		}
		if err := db.CreateUserAccount(ctx, &userAccount); err != nil {
			RespondError(w, r, err)
			return
		}

		if env.UserEmailVerificationRequired() {
			token, err := auth.GenerateVerifyEmailToken(userAccount)
			if err != nil {
				RespondError(w, r, err)
				return
			}
			mailer := internalctx.GetMailer(ctx)
			if err := mailer.Send(ctx, mail.NewVerifyEmailMail(userAccount.Email, env.Host(), token)); err != nil {
				log.Warn("failed to send verification mail", zap.Error(err))
			}
		}

		log.Info("user account registered", zap.String("accountId", userAccount.ID.String()))
		w.WriteHeader(http.StatusCreated)
	}
}

func loginHandler(credentialsMgr *credentials.Manager, sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)

		request, err := JsonBody[api.AuthLoginRequest](w, r)
		if err != nil {
			return
		}

		userAccount, err := db.GetUserAccountByEmail(ctx, request.Email)
		if errors.Is(err, apierrors.ErrNotFound) {
			// Burn a hash comparison so unknown addresses take as long as
			// wrong passwords.
			security.CompareDummyPassword(request.Password)
			RespondError(w, r, apierrors.ErrInvalidCredentials)
			return
		} else if err != nil {
			RespondError(w, r, err)
			return
		}

		if userAccount.Locked(timeNow()) {
			RespondError(w, r, apierrors.ErrAccountLocked)
			return
		}

		if err := security.VerifyPassword(*userAccount, request.Password); err != nil {
			if errors.Is(err, apierrors.ErrInvalidCredentials) {
				locked, trackErr := credentialsMgr.TrackFailedLogin(ctx, userAccount.ID)
				if trackErr != nil {
					sentry.GetHubFromContext(ctx).CaptureException(trackErr)
					log.Error("failed to track failed login", zap.Error(trackErr))
				} else if locked {
					RespondError(w, r, apierrors.ErrAccountLocked)
					return
				}
			}
			RespondError(w, r, err)
			return
		}

		if err := credentialsMgr.ResetFailedLogins(ctx, userAccount.ID); err != nil {
			sentry.GetHubFromContext(ctx).CaptureException(err)
			log.Error("failed to reset failed logins", zap.Error(err))
		}

		if env.UserEmailVerificationRequired() && !userAccount.EmailVerified {
			http.Error(w, "email address not verified", http.StatusForbidden)
			return
		}

		mfaVerified := false
		if userAccount.MFAEnabled {
			if trusted := trustedDeviceValid(r, request.TrustedDeviceToken, userAccount); trusted {
				mfaVerified = true
			} else {
				challenge := types.MFAChallenge{
					AccountID: userAccount.ID,
					Method:    types.MFAMethodTOTP,
					ExpiresAt: timeNow().Add(env.MFAChallengeValidDuration()),
				}
				if err := db.CreateMFAChallenge(ctx, &challenge); err != nil {
					RespondError(w, r, err)
					return
				}
				RespondJSON(w, api.AuthLoginResponse{
					RequiresMFA: true,
					ChallengeID: &challenge.ID,
				})
				return
			}
		}

		pair, err := sessionMgr.Issue(ctx, userAccount, requestMetadata(ctx), mfaVerified)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondJSON(w, api.AuthLoginResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

func trustedDeviceValid(r *http.Request, token *string, userAccount *types.UserAccount) bool {
	if token == nil || *token == "" {
		return false
	}
	ctx := r.Context()
	device, err := db.GetValidTrustedDevice(ctx, userAccount.ID, security.HashToken(*token))
	if errors.Is(err, apierrors.ErrNotFound) {
		return false
	} else if err != nil {
		internalctx.GetLogger(ctx).Error("failed to check trusted device", zap.Error(err))
		return false
	}
	internalctx.GetLogger(ctx).Info("mfa challenge skipped for trusted device",
		zap.String("accountId", userAccount.ID.String()),
		zap.String("deviceId", device.ID.String()))
	return true
}

func refreshHandler(sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		request, err := JsonBody[api.AuthRefreshRequest](w, r)
		if err != nil {
			return
		}
		pair, err := sessionMgr.Refresh(ctx, request.RefreshToken, requestMetadata(ctx))
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondJSON(w, api.AuthRefreshResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

func logoutHandler(sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		request, err := JsonBody[api.AuthLogoutRequest](w, r)
		if err != nil {
			return
		}
		count, err := sessionMgr.Logout(ctx, request.RefreshToken, request.AllDevices)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondJSON(w, api.AuthLogoutResponse{SessionsRevoked: count})
	}
}

func verifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		request, err := JsonBody[api.AuthVerifyEmailRequest](w, r)
		if err != nil {
			return
		}
		accountID, err := auth.VerifyEmailToken(request.Token)
		if err != nil {
			RespondError(w, r, apierrors.ErrInvalidToken)
			return
		}
		if err := db.SetUserAccountEmailVerified(ctx, accountID); err != nil {
			RespondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requestLoginLinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := internalctx.GetLogger(ctx)
		request, err := JsonBody[api.AuthLoginLinkRequest](w, r)
		if err != nil {
			return
		}

		// Same response regardless of whether the address exists.
		userAccount, err := db.GetUserAccountByEmail(ctx, request.Email)
		if errors.Is(err, apierrors.ErrNotFound) {
			log.Info("login link requested for unknown email")
			w.WriteHeader(http.StatusNoContent)
			return
		} else if err != nil {
			RespondError(w, r, err)
			return
		}

		token, err := security.NewOpaqueToken()
		if err != nil {
			RespondError(w, r, err)
			return
		}
		link := types.LoginLink{
			AccountID: userAccount.ID,
			TokenHash: security.HashToken(token),
			ExpiresAt: timeNow().Add(env.LoginLinkValidDuration()),
		}
		if err := db.CreateLoginLink(ctx, &link); err != nil {
			RespondError(w, r, err)
			return
		}
		mailer := internalctx.GetMailer(ctx)
		if err := mailer.Send(ctx, mail.NewLoginLinkMail(userAccount.Email, env.Host(), token)); err != nil {
			log.Warn("failed to send login link mail", zap.Error(err))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func consumeLoginLinkHandler(sessionMgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		request, err := JsonBody[api.AuthLoginLinkConsumeRequest](w, r)
		if err != nil {
			return
		}

		link, err := db.ConsumeLoginLink(ctx, security.HashToken(request.Token))
		if errors.Is(err, apierrors.ErrNotFound) {
			RespondError(w, r, apierrors.ErrInvalidToken)
			return
		} else if err != nil {
			RespondError(w, r, err)
			return
		}

		userAccount, err := db.GetUserAccountByID(ctx, link.AccountID)
		if err != nil {
			RespondError(w, r, err)
			return
		}

		// A login link proves mailbox access, which also covers email
		// verification.
		if !userAccount.EmailVerified {
			if err := db.SetUserAccountEmailVerified(ctx, userAccount.ID); err != nil {
				RespondError(w, r, err)
				return
			}
		}

		if userAccount.MFAEnabled {
			challenge := types.MFAChallenge{
				AccountID: userAccount.ID,
				Method:    types.MFAMethodTOTP,
				ExpiresAt: timeNow().Add(env.MFAChallengeValidDuration()),
			}
			if err := db.CreateMFAChallenge(ctx, &challenge); err != nil {
				RespondError(w, r, err)
				return
			}
			RespondJSON(w, api.AuthLoginResponse{RequiresMFA: true, ChallengeID: &challenge.ID})
			return
		}

		pair, err := sessionMgr.Issue(ctx, userAccount, requestMetadata(ctx), false)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondJSON(w, api.AuthLoginResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}
