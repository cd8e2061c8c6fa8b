package middleware

import (
	"net"
	"net/http"
	"strings"

	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/mail"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// LoggerCtxMiddleware makes the logger available via the request context,
// tagged with the request id when present.
func LoggerCtxMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestLogger := logger
			if requestID := middleware.GetReqID(r.Context()); requestID != "" {
				requestLogger = logger.With(zap.String("requestId", requestID))
			}
			ctx := internalctx.WithLogger(r.Context(), requestLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func DbCtxMiddleware(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := internalctx.WithDb(r.Context(), pool)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func MailerCtxMiddleware(mailer mail.Mailer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := internalctx.WithMailer(r.Context(), mailer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientInfoCtxMiddleware records the caller's IP address and user agent for
// session bookkeeping.
func ClientInfoCtxMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := internalctx.WithRequestIPAddress(r.Context(), clientIP(r))
		ctx = internalctx.WithRequestUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop is the client when the proxy appends.
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
