package db

import (
	"context"
	"errors"
	"fmt"

	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(env.DatabaseUrl())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns := env.DatabaseMaxConns(); maxConns != nil {
		config.MaxConns = int32(*maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// RunTx runs f inside a transaction, replacing the Queryable in the context
// with the transaction handle. When the context already carries a
// transaction, f joins it instead of opening a nested one.
func RunTx(ctx context.Context, f func(ctx context.Context) error) error {
	q := internalctx.GetDb(ctx)
	switch db := q.(type) {
	case pgx.Tx:
		return f(ctx)
	case *pgxpool.Pool:
		return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
			return f(internalctx.WithDb(ctx, tx))
		})
	default:
		return errors.New("unsupported queryable type")
	}
}
