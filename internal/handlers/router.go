package handlers

import (
	"net/http"
	"time"

	"github.com/deepref-sh/deepref/internal/auth"
	"github.com/deepref-sh/deepref/internal/credentials"
	"github.com/deepref-sh/deepref/internal/mail"
	"github.com/deepref-sh/deepref/internal/middleware"
	"github.com/deepref-sh/deepref/internal/session"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NewRouter wires the full HTTP surface. Quotas follow the shape of the
// endpoints: unauthenticated credential endpoints get strict per-IP limits,
// second-factor verification gets its own dedicated quota.
func NewRouter(
	logger *zap.Logger,
	pool *pgxpool.Pool,
	mailer mail.Mailer,
	credentialsMgr *credentials.Manager,
	sessionMgr *session.Manager,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		middleware.LoggerCtxMiddleware(logger),
		chimiddleware.Recoverer,
		sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle,
		middleware.DbCtxMiddleware(pool),
		middleware.MailerCtxMiddleware(mailer),
		middleware.ClientInfoCtxMiddleware,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(10, time.Minute))
				r.With(middleware.RateLimitByIP(5, 15*time.Minute)).
					Post("/register", registerHandler())
				AuthRouter(credentialsMgr, sessionMgr)(r)
			})
			r.With(middleware.RateLimitMFAVerification()).
				Post("/mfa/verify", VerifyMFAChallengeHandler(sessionMgr))
		})

		r.Route("/password", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(5, 15*time.Minute))
				PasswordRouter(credentialsMgr)(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.Verifier(), auth.Authenticator, middleware.RequireMFA)
				r.Post("/change", ChangePasswordHandler(credentialsMgr))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Verifier(), auth.Authenticator)
			r.Route("/sessions", func(r chi.Router) {
				r.Use(middleware.RequireMFA)
				SessionsRouter(sessionMgr)(r)
			})
			r.Route("/settings/mfa", MFASettingsRouter())
		})
	})

	return r
}
