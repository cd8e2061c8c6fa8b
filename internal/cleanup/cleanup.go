// Package cleanup holds the periodic purge jobs for rows that only exist for
// their retention window. Each function is registered as a cron job by the
// service registry.
package cleanup

import (
	"context"

	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/db"
	"github.com/deepref-sh/deepref/internal/env"
	"go.uber.org/zap"
)

// RunSessionCleanup deletes rotated, revoked and expired sessions past the
// retention window. Rows inside the window are kept for reuse detection and
// audit.
func RunSessionCleanup(ctx context.Context) error {
	count, err := db.DeleteInactiveSessions(ctx, env.SessionRetention())
	if err != nil {
		return err
	}
	internalctx.GetLogger(ctx).Info("deleted inactive sessions", zap.Int64("count", count))
	return nil
}

func RunMFAChallengeCleanup(ctx context.Context) error {
	count, err := db.DeleteExpiredMFAChallenges(ctx)
	if err != nil {
		return err
	}
	internalctx.GetLogger(ctx).Info("deleted expired MFA challenges", zap.Int64("count", count))
	return nil
}

func RunTrustedDeviceCleanup(ctx context.Context) error {
	count, err := db.DeleteExpiredTrustedDevices(ctx)
	if err != nil {
		return err
	}
	internalctx.GetLogger(ctx).Info("deleted expired trusted devices", zap.Int64("count", count))
	return nil
}

func RunLoginLinkCleanup(ctx context.Context) error {
	count, err := db.DeleteExpiredLoginLinks(ctx)
	if err != nil {
		return err
	}
	internalctx.GetLogger(ctx).Info("deleted expired login links", zap.Int64("count", count))
	return nil
}
