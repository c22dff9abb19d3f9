package postgres

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

type txKey struct{}

var errNoTx = errors.New("advisory lock requires a transaction")

// conn returns the transaction carried by ctx, or db outside one.
func conn(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}

type txRunner struct {
	db *bun.DB
}

// WithinTx joins an enclosing transaction when ctx already carries one.
func (r txRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Lock takes a transaction-scoped advisory lock on key. Outside a
// transaction the lock would be released immediately, so ctx must carry one.
func (r txRunner) Lock(ctx context.Context, key string) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); !ok {
		return errNoTx
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key)
	return err
}
