package context

import (
	"context"

	"github.com/deepref-sh/deepref/internal/db/queryable"
	"github.com/deepref-sh/deepref/internal/mail"
	"go.uber.org/zap"
)

func GetDb(ctx context.Context) queryable.Queryable {
	val := ctx.Value(ctxKeyDb)
	if db, ok := val.(queryable.Queryable); ok {
		if db != nil {
			return db
		}
	}
	panic("db not contained in context")
}

func WithDb(ctx context.Context, db queryable.Queryable) context.Context {
	return context.WithValue(ctx, ctxKeyDb, db)
}

func GetLogger(ctx context.Context) *zap.Logger {
	val := ctx.Value(ctxKeyLogger)
	if logger, ok := val.(*zap.Logger); ok {
		if logger != nil {
			return logger
		}
	}
	panic("logger not contained in context")
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

func GetMailer(ctx context.Context) mail.Mailer {
	val := ctx.Value(ctxKeyMailer)
	if mailer, ok := val.(mail.Mailer); ok {
		if mailer != nil {
			return mailer
		}
	}
	panic("mailer not contained in context")
}

func WithMailer(ctx context.Context, mailer mail.Mailer) context.Context {
	return context.WithValue(ctx, ctxKeyMailer, mailer)
}

func GetRequestIPAddress(ctx context.Context) string {
	if val, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return val
	}
	panic("no IP address in context")
}

func WithRequestIPAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, address)
}

func GetRequestUserAgent(ctx context.Context) string {
	if val, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return val
	}
	return ""
}

func WithRequestUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}
