package store

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
)

type txCtxKey struct{}

// WithTx returns a context carrying the given transaction. Repositories that
// find a transaction in the context join it instead of opening their own.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// TxFrom extracts the transaction carried by the context, if any.
func TxFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(*sql.Tx)
	return tx, ok
}

// TxManager opens database transactions and exposes them to repositories
// through the context. It is the explicit transaction boundary the two-phase
// outbox protocol hangs on: the before-commit phase runs inside WithinTx, the
// after-commit phase runs only once WithinTx has returned without error.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn inside a single database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "WithinTx")
	defer span.End()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := fn(WithTx(ctx, tx)); err != nil {
		span.RecordError(err)
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		tx.Rollback()
		return err
	}

	return nil
}
