package rdb

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

var ErrTxDone = errors.New("transaction already finished")

// Tx 一次写请求独占的事务；Close 在未提交时回滚，用 defer 调用
type Tx struct {
	tx       *sql.Tx
	observer *Observer
	done     bool
}

func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	return &Tx{tx: tx, observer: d.observer}, nil
}

// WithTx fn 返回 nil 时提交一次，否则回滚
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return errors.Wrap(t.tx.Commit(), "commit")
}

func (t *Tx) Close() error {
	if t.done {
		return nil
	}
	t.done = true
	return errors.Wrap(t.tx.Rollback(), "rollback")
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := t.observer.observe(ctx, "exec", query, func(ctx context.Context) error {
		var err error
		res, err = t.tx.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := t.observer.observe(ctx, "query", query, func(ctx context.Context) error {
		var err error
		rows, err = t.tx.QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}
