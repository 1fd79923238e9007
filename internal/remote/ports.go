package remote

import (
	"context"
	"time"
)

// Records returned by the remote service. They arrive domain-shaped but
// untrusted: amounts are decimal strings and categories are free text until
// the converter has vetted them.
type (
	RemoteTransaction struct {
		ID          string    `json:"id"`
		Amount      string    `json:"amount"`
		Date        time.Time `json:"date"`
		Category    string    `json:"category"`
		AccountID   string    `json:"accountId"`
		Description string    `json:"description"`
		Pending     bool      `json:"pending"`
	}

	RemoteBudget struct {
		Category       string  `json:"category"`
		MonthlyLimit   string  `json:"monthlyLimit"`
		CurrentSpent   string  `json:"currentSpent"`
		AlertThreshold float64 `json:"alertThreshold"`
	}
)

// Ports for the remote source adapter. An empty slice with a nil error means
// the remote has nothing; it is never an error condition.
type (
	TransactionSource interface {
		FetchTransactions(ctx context.Context) ([]RemoteTransaction, error)
	}

	BudgetSource interface {
		FetchBudgets(ctx context.Context) ([]RemoteBudget, error)
	}

	// Source is the full remote collaborator consumed by the synchronizer.
	Source interface {
		TransactionSource
		BudgetSource
	}
)
