package store

import (
	"context"
	"database/sql"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/zeebo/errs"
)

// Error is the error class for subscription store failures. A mutation that
// matches no row is not an Error.
var Error = errs.Class("store")

//go:embed migrations/*.sql
var migrations embed.FS

func Migrate(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return Error.Wrap(err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(goose.Up(db, "migrations"))
}

func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, Error.Wrap(err)
	}
	return dbpool, nil
}
