package main

import (
	"context"
	"database/sql"
	"time"

	fraudstore "tenderwatch/internal/fraud/store"
	dErrors "tenderwatch/pkg/domain-errors"
)

const defaultFraudTxTimeout = 30 * time.Second

// fraudPostgresTx runs a detection run's writes inside one transaction so a
// failed run leaves no partial rows behind.
type fraudPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newFraudPostgresTx(db *sql.DB) *fraudPostgresTx {
	return &fraudPostgresTx{db: db}
}

func (t *fraudPostgresTx) RunInTx(ctx context.Context, fn func(tx fraudstore.TxStore) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultFraudTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(fraudstore.NewPostgres(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
