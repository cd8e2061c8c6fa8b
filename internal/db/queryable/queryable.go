package queryable

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryable is the part of pgx shared by *pgxpool.Pool and pgx.Tx. All
// functions in internal/db operate on whichever of the two the request
// context carries, so code inside db.RunTx transparently joins the
// surrounding transaction.
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
