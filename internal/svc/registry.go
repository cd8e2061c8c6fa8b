// Package svc builds and owns the service singletons: database pool, mailer,
// managers, job scheduler. Everything is created once from the environment
// and torn down in reverse order on shutdown.
package svc

import (
	"context"
	"fmt"

	"github.com/deepref-sh/deepref/internal/credentials"
	"github.com/deepref-sh/deepref/internal/db"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/jobs"
	"github.com/deepref-sh/deepref/internal/mail"
	"github.com/deepref-sh/deepref/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type Registry struct {
	logger             *zap.Logger
	dbPool             *pgxpool.Pool
	mailer             mail.Mailer
	credentialsManager *credentials.Manager
	sessionManager     *session.Manager
	jobsScheduler      *jobs.Scheduler
}

func NewDefault(ctx context.Context, logger *zap.Logger) (*Registry, error) {
	r := Registry{logger: logger}

	pool, err := db.NewPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	r.dbPool = pool

	if r.mailer, err = createMailer(logger); err != nil {
		return nil, err
	}

	r.sessionManager = session.NewManager(
		db.SessionStore{}, db.UserAccountStore{}, logger.Named("session"))
	r.credentialsManager = credentials.NewManager(
		db.UserAccountStore{}, r.sessionManager, r.mailer, logger.Named("credentials"))

	if r.jobsScheduler, err = r.createJobsScheduler(); err != nil {
		return nil, err
	}

	return &r, nil
}

func createMailer(logger *zap.Logger) (mail.Mailer, error) {
	config := env.GetMailerConfig()
	switch config.Type {
	case env.MailerTypeSMTP:
		return mail.NewSMTPMailer(config)
	default:
		return mail.NewNoopMailer(logger.Named("mail")), nil
	}
}

func (r *Registry) GetLogger() *zap.Logger                          { return r.logger }
func (r *Registry) GetDbPool() *pgxpool.Pool                        { return r.dbPool }
func (r *Registry) GetMailer() mail.Mailer                          { return r.mailer }
func (r *Registry) GetCredentialsManager() *credentials.Manager     { return r.credentialsManager }
func (r *Registry) GetSessionManager() *session.Manager             { return r.sessionManager }
func (r *Registry) GetJobsScheduler() *jobs.Scheduler               { return r.jobsScheduler }

func (r *Registry) Shutdown() {
	if err := r.jobsScheduler.Shutdown(); err != nil {
		r.logger.Warn("failed to shut down job scheduler", zap.Error(err))
	}
	r.dbPool.Close()
}

func (r *Registry) createJobsScheduler() (*jobs.Scheduler, error) {
	scheduler, err := jobs.NewScheduler(r.logger, r.dbPool, r.mailer, otel.GetTracerProvider())
	if err != nil {
		return nil, err
	}
	if err := registerCleanupJobs(scheduler); err != nil {
		return nil, err
	}
	return scheduler, nil
}
