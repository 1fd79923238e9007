package storage

import (
	"context"
	"fmt"

	"finsync/internal/core"
)

// Ports for the local record store. Batch saves are atomic: every record in
// the batch is committed or none is.
type (
	TransactionStore interface {
		AllTransactions(ctx context.Context) ([]core.Transaction, error)
		// TransactionsByIDs returns the stored transactions whose id is in ids,
		// resolved with a single query.
		TransactionsByIDs(ctx context.Context, ids []string) ([]core.Transaction, error)
		SaveTransactions(ctx context.Context, txs []core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	BudgetStore interface {
		AllBudgets(ctx context.Context) ([]core.Budget, error)
		BudgetsByCategories(ctx context.Context, categories []core.Category) ([]core.Budget, error)
		SaveBudgets(ctx context.Context, budgets []core.Budget) error
		DeleteBudget(ctx context.Context, category core.Category) error
	}

	// Store is the full local cache consumed by the sync engine.
	Store interface {
		TransactionStore
		BudgetStore
		// Clear drops all cached records (bulk cache clear).
		Clear(ctx context.Context) error
		Close() error
	}
)

// InvalidStateError reports a cached record that can no longer be mapped back
// to the domain shape, e.g. a malformed stored amount.
type InvalidStateError struct {
	Kind string // "transaction" or "budget"
	Key  string
	Err  error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid local state for %s %q: %v", e.Kind, e.Key, e.Err)
}

func (e *InvalidStateError) Unwrap() error {
	return e.Err
}
