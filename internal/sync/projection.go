package sync

import (
	"sort"
	stdsync "sync"

	"finsync/internal/core"
)

// Snapshot is the consistent view handed to the UI layer: transactions
// newest-first, budgets, and the last sync error, all replaced only after a
// successful or fallback-completed cycle.
type Snapshot struct {
	Transactions []core.Transaction
	Budgets      []core.Budget
	LastError    error
}

// Projection holds the in-memory snapshot. Writers replace whole record sets
// atomically; a reader never observes a partially merged state.
type Projection struct {
	mu           stdsync.RWMutex
	transactions []core.Transaction
	budgets      []core.Budget
	lastErr      error
}

func NewProjection() *Projection {
	return &Projection{}
}

// SetTransactions replaces the transaction set, sorted by date descending.
func (p *Projection) SetTransactions(txs []core.Transaction) {
	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactions = sorted
}

// SetBudgets replaces the budget set. Consumers re-sort as needed.
func (p *Projection) SetBudgets(budgets []core.Budget) {
	copied := make([]core.Budget, len(budgets))
	copy(copied, budgets)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.budgets = copied
}

// SetLastError records the most recent cycle's error, nil to clear it.
func (p *Projection) SetLastError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

// Snapshot returns a copy of the current view.
func (p *Projection) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	txs := make([]core.Transaction, len(p.transactions))
	copy(txs, p.transactions)
	budgets := make([]core.Budget, len(p.budgets))
	copy(budgets, p.budgets)

	return Snapshot{
		Transactions: txs,
		Budgets:      budgets,
		LastError:    p.lastErr,
	}
}
