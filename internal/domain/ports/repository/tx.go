package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle; nil means "no transaction".
type Tx interface{}

// NoTX runs a repository call directly on the pool.
var NoTX Tx

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// Repositories that receive a live tx take row locks (SELECT ... FOR UPDATE)
// and run their conditional writes on it; with NoTX they run on the pool.
//
// The concrete type of `tx` is infra-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
