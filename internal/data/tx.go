package data

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/target/track-analysis-api/internal/data/pgxutil"
)

// querier is the subset of pgx shared by *pgx.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

// InTx reports whether ctx carries a transaction opened by Transactor.
func InTx(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

// withQuerier runs fn against the transaction carried by ctx, or a pooled connection otherwise.
func withQuerier(ctx context.Context, db *sql.DB, fn func(q querier) error) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(tx)
	}
	return pgxutil.WithPgxConn(ctx, db, func(conn *pgx.Conn) error {
		return fn(conn)
	})
}

// Transactor opens transactions that repositories join through the context.
type Transactor struct {
	DB *sql.DB
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{DB: db}
}

// WithinTx runs fn in a read-committed transaction. A nested call joins the outer transaction.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	return pgxutil.WithPgxTx(ctx, t.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			return fn(withTx(ctx, tx))
		},
	})
}
