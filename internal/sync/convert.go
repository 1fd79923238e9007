package sync

import (
	"fmt"

	"github.com/shopspring/decimal"

	"finsync/internal/core"
	"finsync/internal/remote"
)

// ConvertTransaction maps a remote transaction record to the domain shape.
// The amount sign convention is carried through unchanged: positive stays a
// debit, non-positive stays a credit/refund.
func ConvertTransaction(r remote.RemoteTransaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", r.Amount, err)
	}

	t := core.Transaction{
		ID:          r.ID,
		Amount:      amount,
		Date:        r.Date,
		Category:    core.Category(r.Category),
		AccountID:   r.AccountID,
		Description: r.Description,
		Pending:     r.Pending,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction %q: %w", r.ID, err)
	}

	return t, nil
}

// ConvertBudget maps a remote budget record to the domain shape. The spend
// value arrives remote-computed, so provenance flags are stamped later at
// merge time.
func ConvertBudget(r remote.RemoteBudget) (core.Budget, error) {
	limit, err := decimal.NewFromString(r.MonthlyLimit)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse monthly limit %q: %w", r.MonthlyLimit, err)
	}

	spent, err := decimal.NewFromString(r.CurrentSpent)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse current spent %q: %w", r.CurrentSpent, err)
	}

	b := core.Budget{
		Category:       core.Category(r.Category),
		MonthlyLimit:   limit,
		CurrentSpent:   spent,
		AlertThreshold: r.AlertThreshold,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("invalid budget %q: %w", r.Category, err)
	}

	return b, nil
}
