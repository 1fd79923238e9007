package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/core"
	"finsync/internal/storage"
)

// DefaultFreshnessWindow is how long a remote-sourced spend value is trusted
// over local recomputation.
const DefaultFreshnessWindow = time.Hour

// Aggregator recomputes each budget's current-period spend from the
// reconciled transaction set. All budget writes in the process go through its
// Save method, which is the single critical section for budget rows.
type Aggregator struct {
	store  storage.Store
	window time.Duration
	now    func() time.Time

	// mu serializes budget writes between local recomputation and the
	// budget sync commit.
	mu sync.Mutex
}

func NewAggregator(store storage.Store, window time.Duration) *Aggregator {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Aggregator{
		store:  store,
		window: window,
		now:    time.Now,
	}
}

// Recompute returns the budgets with CurrentSpent set to the sum of debit
// transactions in their category for the calendar month containing ref.
// Budgets whose remote-sourced spend is still fresh are returned untouched.
// Budgets with no matching transactions get zero spend; no budget is created
// for a category that has none.
func (a *Aggregator) Recompute(txs []core.Transaction, budgets []core.Budget, ref time.Time) []core.Budget {
	now := a.now()
	out := make([]core.Budget, len(budgets))
	for i, b := range budgets {
		if a.isFresh(b, now) {
			out[i] = b
			continue
		}
		b.CurrentSpent = SpendForMonth(txs, b.Category, ref)
		b.FromBackend = false
		out[i] = b
	}
	return out
}

// RecomputeForCategories reloads the budgets for the given categories,
// recomputes their spend from the stored transaction set, and persists the
// result in a single batched save. Fresh remote-sourced budgets are skipped
// entirely: not recomputed, not rewritten. The budget write lock is held
// across the whole read, freshness check, and save, so a budget sync commit
// can never land inside the window and get overwritten with stale spend.
func (a *Aggregator) RecomputeForCategories(ctx context.Context, categories []core.Category, ref time.Time) error {
	if len(categories) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	budgets, err := a.store.BudgetsByCategories(ctx, categories)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil
	}

	txs, err := a.store.AllTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	now := a.now()
	toSave := make([]core.Budget, 0, len(budgets))
	skipped := 0
	for _, b := range budgets {
		if a.isFresh(b, now) {
			skipped++
			continue
		}
		b.CurrentSpent = SpendForMonth(txs, b.Category, ref)
		b.FromBackend = false
		toSave = append(toSave, b)
	}

	if err := a.saveLocked(ctx, toSave); err != nil {
		return fmt.Errorf("save recomputed budgets: %w", err)
	}

	slog.InfoContext(ctx, "Budget spend recomputed",
		"recomputed", len(toSave),
		"skipped_fresh", skipped)

	return nil
}

// ApplyTransaction applies a single newly created transaction to its budget
// without a full recompute. The contribution rule is the same as
// SpendForMonth: debits only, current calendar month only. Fresh
// remote-sourced budgets are left untouched.
func (a *Aggregator) ApplyTransaction(ctx context.Context, t core.Transaction) error {
	now := a.now()
	if !contributes(t, t.Category, now) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	budgets, err := a.store.BudgetsByCategories(ctx, []core.Category{t.Category})
	if err != nil {
		return fmt.Errorf("load budget: %w", err)
	}
	if len(budgets) == 0 {
		return nil
	}

	b := budgets[0]
	if a.isFresh(b, now) {
		return nil
	}

	b.CurrentSpent = b.CurrentSpent.Add(t.Amount)
	b.FromBackend = false

	if err := a.saveLocked(ctx, []core.Budget{b}); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	return nil
}

// Save persists budgets in one batched store save while holding the budget
// write lock. Budget sync commits use this same path so a concurrent sync and
// recompute never interleave on budget rows.
func (a *Aggregator) Save(ctx context.Context, budgets []core.Budget) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveLocked(ctx, budgets)
}

// saveLocked is the write half of the critical section. Callers hold mu.
func (a *Aggregator) saveLocked(ctx context.Context, budgets []core.Budget) error {
	if len(budgets) == 0 {
		return nil
	}
	return a.store.SaveBudgets(ctx, budgets)
}

func (a *Aggregator) isFresh(b core.Budget, now time.Time) bool {
	return b.FromBackend &&
		b.BackendSyncedAt != nil &&
		now.Sub(*b.BackendSyncedAt) < a.window
}

// SpendForMonth sums debit transaction amounts for a category within the
// calendar month containing ref.
func SpendForMonth(txs []core.Transaction, category core.Category, ref time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		if contributes(t, category, ref) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}

// contributes is the single spend-contribution rule: same category, debit
// amount, date in the calendar month of ref. Credits and refunds never count.
func contributes(t core.Transaction, category core.Category, ref time.Time) bool {
	return t.Category == category && t.IsDebit() && core.SameMonth(t.Date, ref)
}
