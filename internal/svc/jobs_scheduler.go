package svc

import (
	"github.com/deepref-sh/deepref/internal/cleanup"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/jobs"
)

func registerCleanupJobs(scheduler *jobs.Scheduler) error {
	if cron := env.CleanupSessionCron(); cron != nil {
		err := scheduler.RegisterCronJob(
			*cron,
			jobs.NewJob("SessionCleanup", cleanup.RunSessionCleanup, env.CleanupSessionTimeout()),
		)
		if err != nil {
			return err
		}
	}

	if cron := env.CleanupMFAChallengeCron(); cron != nil {
		err := scheduler.RegisterCronJob(
			*cron,
			jobs.NewJob(
				"MFAChallengeCleanup",
				cleanup.RunMFAChallengeCleanup,
				env.CleanupMFAChallengeTimeout(),
			),
		)
		if err != nil {
			return err
		}
	}

	if cron := env.CleanupTrustedDeviceCron(); cron != nil {
		err := scheduler.RegisterCronJob(
			*cron,
			jobs.NewJob(
				"TrustedDeviceCleanup",
				cleanup.RunTrustedDeviceCleanup,
				env.CleanupTrustedDeviceTimeout(),
			),
		)
		if err != nil {
			return err
		}
	}

	if cron := env.CleanupLoginLinkCron(); cron != nil {
		err := scheduler.RegisterCronJob(
			*cron,
			jobs.NewJob("LoginLinkCleanup", cleanup.RunLoginLinkCleanup, env.CleanupLoginLinkTimeout()),
		)
		if err != nil {
			return err
		}
	}

	return nil
}
