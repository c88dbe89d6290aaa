package repositories

import "context"

// TxFn is the body of a transaction. Repository calls made with the ctx it
// receives join the transaction.
type TxFn func(ctx context.Context) error

// TransactionManager runs multi-statement document operations atomically,
// e.g. deleting a note and creating a replacement.
type TransactionManager interface {
	// ExecTx commits when fn returns nil and rolls back otherwise.
	ExecTx(ctx context.Context, fn TxFn) error
}
