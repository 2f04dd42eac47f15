package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type ctxKeyType struct{}

var ctxTxKey ctxKeyType

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx so store methods
// run against whichever the context carries
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Provider owns the database handle and the transaction boundary.
// Transact begins a transaction, stores it in the context passed to fn,
// and commits or rolls back depending on fn's result. Store methods
// called with that context join the transaction transparently.
type Provider struct {
	db *sqlx.DB
}

// NewProvider wraps an open database handle
func NewProvider(db *sqlx.DB) *Provider {
	return &Provider{db: db}
}

// Transact runs fn inside a single transaction
func (p *Provider) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(context.WithValue(ctx, ctxTxKey, tx))
	return err
}

// runner returns the transaction bound to ctx, or the bare handle
func (p *Provider) runner(ctx context.Context) queryer {
	if tx, ok := ctx.Value(ctxTxKey).(*sqlx.Tx); ok {
		return tx
	}
	return p.db
}

// notFound normalizes the no-rows sentinel
func notFound(err error) bool {
	return err == sql.ErrNoRows
}
