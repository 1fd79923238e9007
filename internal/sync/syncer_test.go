package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/budget"
	"finsync/internal/core"
	"finsync/internal/remote"
	"finsync/internal/storage"
)

// fakeSource is a scripted remote.Source.
type fakeSource struct {
	mu           stdsync.Mutex
	transactions []remote.RemoteTransaction
	budgets      []remote.RemoteBudget
	txErr        error
	budgetErr    error
	fetches      int
}

func (f *fakeSource) FetchTransactions(context.Context) ([]remote.RemoteTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.transactions, f.txErr
}

func (f *fakeSource) FetchBudgets(context.Context) ([]remote.RemoteBudget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.budgets, f.budgetErr
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeSource) setTransactions(records []remote.RemoteTransaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = records
}

func newTestSyncer(source *fakeSource, store storage.Store) *Syncer {
	agg := budget.NewAggregator(store, budget.DefaultFreshnessWindow)
	return NewSyncer(source, store, agg, time.Second)
}

func seedDiningBudget(t *testing.T, store storage.Store) {
	t.Helper()
	err := store.SaveBudgets(context.Background(), []core.Budget{{
		Category:       core.CategoryDining,
		MonthlyLimit:   decimal.NewFromInt(100),
		CurrentSpent:   decimal.Zero,
		AlertThreshold: 0.8,
	}})
	if err != nil {
		t.Fatalf("seed budget: %v", err)
	}
}

func TestSyncTransactions_CommitsAndRecomputes(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDiningBudget(t, store)

	source := &fakeSource{transactions: []remote.RemoteTransaction{{
		ID:        "t1",
		Amount:    "12.34",
		Date:      time.Now(),
		Category:  "dining",
		AccountID: "acc-1",
	}}}
	s := newTestSyncer(source, store)

	oc := s.SyncTransactions(context.Background())
	if oc.State != StateDone || oc.Err != nil {
		t.Fatalf("outcome = %+v, want clean done", oc)
	}
	if !oc.Succeeded() {
		t.Error("cycle should count as succeeded")
	}
	if oc.Fetched != 1 || oc.Converted != 1 || oc.Created != 1 || oc.Updated != 0 {
		t.Errorf("counts = %+v, want fetched/converted/created 1", oc)
	}

	stored, err := store.AllTransactions(context.Background())
	if err != nil {
		t.Fatalf("AllTransactions: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != "t1" {
		t.Fatalf("store holds %v, want the single synced transaction", stored)
	}
	if stored[0].SourceSyncedAt == nil {
		t.Error("committed transaction missing sync timestamp")
	}

	budgets, err := store.AllBudgets(context.Background())
	if err != nil {
		t.Fatalf("AllBudgets: %v", err)
	}
	if !budgets[0].CurrentSpent.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("CurrentSpent = %s, want 12.34 after recompute", budgets[0].CurrentSpent)
	}

	snap := s.Projection().Snapshot()
	if len(snap.Transactions) != 1 || snap.LastError != nil {
		t.Errorf("projection = %+v, want one transaction and no error", snap)
	}
}

func TestSyncTransactions_FetchFailureFallsBackToCache(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	cached := make([]core.Transaction, 5)
	for i := range cached {
		cached[i] = core.Transaction{
			ID:        fmt.Sprintf("cached-%d", i),
			Amount:    decimal.NewFromInt(int64(i + 1)),
			Date:      time.Now().Add(-time.Duration(i) * time.Hour),
			Category:  core.CategoryGroceries,
			AccountID: "acc-1",
		}
	}
	if err := store.SaveTransactions(ctx, cached); err != nil {
		t.Fatalf("seed: %v", err)
	}

	source := &fakeSource{txErr: remote.NewFetchError(remote.FetchNetwork, errors.New("connection refused"))}
	s := newTestSyncer(source, store)

	oc := s.SyncTransactions(ctx)
	if oc.State != StateDone || !oc.Fallback {
		t.Fatalf("outcome = %+v, want fallback done", oc)
	}
	var fetchErr *FetchFailedError
	if !errors.As(oc.Err, &fetchErr) {
		t.Fatalf("Err = %v, want FetchFailedError", oc.Err)
	}
	var remoteErr *remote.FetchError
	if !errors.As(oc.Err, &remoteErr) || remoteErr.Kind != remote.FetchNetwork {
		t.Errorf("Err = %v, want wrapped network fetch error", oc.Err)
	}

	snap := s.Projection().Snapshot()
	if len(snap.Transactions) != 5 {
		t.Errorf("projection holds %d transactions, want the 5 cached ones", len(snap.Transactions))
	}
	if snap.LastError == nil {
		t.Error("projection should surface the fetch failure")
	}
}

func TestSyncTransactions_EmptyRemoteNeverDeletesCache(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	seeded := core.Transaction{
		ID:        "keep-me",
		Amount:    decimal.NewFromInt(9),
		Date:      time.Now(),
		Category:  core.CategoryTravel,
		AccountID: "acc-1",
	}
	if err := store.SaveTransactions(ctx, []core.Transaction{seeded}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := newTestSyncer(&fakeSource{}, store)

	oc := s.SyncTransactions(ctx)
	if !oc.Fallback || oc.Err != nil || oc.State != StateDone {
		t.Fatalf("outcome = %+v, want benign fallback", oc)
	}

	stored, _ := store.AllTransactions(ctx)
	if len(stored) != 1 || stored[0].ID != "keep-me" {
		t.Errorf("cache was modified by an empty remote response: %v", stored)
	}
	snap := s.Projection().Snapshot()
	if len(snap.Transactions) != 1 || snap.LastError != nil {
		t.Errorf("projection = %+v, want the cached record and no error", snap)
	}
}

func TestSyncTransactions_AllConversionsFailedFallsBack(t *testing.T) {
	store := storage.NewMemoryStore()

	source := &fakeSource{transactions: []remote.RemoteTransaction{
		{ID: "t1", Amount: "not-a-number", Date: time.Now(), Category: "dining"},
		{ID: "t2", Amount: "10", Date: time.Now(), Category: "yachts"},
	}}
	s := newTestSyncer(source, store)

	oc := s.SyncTransactions(context.Background())
	if !oc.Fallback || oc.State != StateDone {
		t.Fatalf("outcome = %+v, want fallback done", oc)
	}
	var convErr *ConversionError
	if !errors.As(oc.Err, &convErr) || !convErr.AllFailed() {
		t.Fatalf("Err = %v, want all-failed conversion error", oc.Err)
	}

	stored, _ := store.AllTransactions(context.Background())
	if len(stored) != 0 {
		t.Errorf("store gained %d records from an unconvertible batch", len(stored))
	}
}

func TestSyncTransactions_PartialConversionFailureWarns(t *testing.T) {
	store := storage.NewMemoryStore()

	source := &fakeSource{transactions: []remote.RemoteTransaction{
		{ID: "good-1", Amount: "5", Date: time.Now(), Category: "dining", AccountID: "acc-1"},
		{ID: "bad", Amount: "??", Date: time.Now(), Category: "dining", AccountID: "acc-1"},
		{ID: "good-2", Amount: "7", Date: time.Now(), Category: "dining", AccountID: "acc-1"},
	}}
	s := newTestSyncer(source, store)

	oc := s.SyncTransactions(context.Background())
	if oc.State != StateDone || oc.Err != nil || oc.Fallback {
		t.Fatalf("outcome = %+v, want clean done", oc)
	}
	if oc.Converted != 2 || oc.ConversionFailures != 1 {
		t.Errorf("converted/failures = %d/%d, want 2/1", oc.Converted, oc.ConversionFailures)
	}
	var convErr *ConversionError
	if !errors.As(oc.Warning, &convErr) || convErr.AllFailed() {
		t.Fatalf("Warning = %v, want partial conversion error", oc.Warning)
	}

	stored, _ := store.AllTransactions(context.Background())
	if len(stored) != 2 {
		t.Errorf("store holds %d records, want the 2 convertible ones", len(stored))
	}
}

func TestSyncTransactions_Idempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDiningBudget(t, store)

	source := &fakeSource{transactions: []remote.RemoteTransaction{{
		ID:        "t1",
		Amount:    "12.34",
		Date:      time.Now(),
		Category:  "dining",
		AccountID: "acc-1",
	}}}
	s := newTestSyncer(source, store)
	ctx := context.Background()

	first := s.SyncTransactions(ctx)
	second := s.SyncTransactions(ctx)

	if first.Created != 1 || second.Created != 0 || second.Updated != 1 {
		t.Errorf("created/updated = %d,%d then %d,%d; re-syncing the same batch must update, not duplicate",
			first.Created, first.Updated, second.Created, second.Updated)
	}

	stored, _ := store.AllTransactions(ctx)
	if len(stored) != 1 {
		t.Fatalf("store holds %d records after two identical syncs, want 1", len(stored))
	}
	budgets, _ := store.AllBudgets(ctx)
	if !budgets[0].CurrentSpent.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("CurrentSpent = %s after re-sync, want unchanged 12.34", budgets[0].CurrentSpent)
	}
}

func TestSyncTransactions_PersistenceFailureLeavesProjection(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	source := &fakeSource{transactions: []remote.RemoteTransaction{{
		ID: "t1", Amount: "5", Date: time.Now(), Category: "dining", AccountID: "acc-1",
	}}}
	s := newTestSyncer(source, store)

	// Establish a committed projection first.
	if oc := s.SyncTransactions(ctx); oc.Err != nil {
		t.Fatalf("initial sync: %+v", oc)
	}
	before := s.Projection().Snapshot()

	store.FailSaves = true
	source.setTransactions([]remote.RemoteTransaction{{
		ID: "t2", Amount: "99", Date: time.Now(), Category: "shopping", AccountID: "acc-1",
	}})

	oc := s.SyncTransactions(ctx)
	if oc.State != StateErrored {
		t.Fatalf("outcome = %+v, want errored", oc)
	}
	var persErr *PersistenceError
	if !errors.As(oc.Err, &persErr) {
		t.Fatalf("Err = %v, want PersistenceError", oc.Err)
	}

	after := s.Projection().Snapshot()
	if len(after.Transactions) != len(before.Transactions) ||
		after.Transactions[0].ID != before.Transactions[0].ID {
		t.Error("projection record set changed despite a failed commit")
	}
	if after.LastError == nil {
		t.Error("projection should surface the persistence failure")
	}
}

func TestSyncTransactions_RecomputeFailureSurfacesOnProjection(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDiningBudget(t, store)

	source := &fakeSource{transactions: []remote.RemoteTransaction{{
		ID: "t1", Amount: "12.34", Date: time.Now(), Category: "dining", AccountID: "acc-1",
	}}}
	s := newTestSyncer(source, store)

	// Transactions commit, then the budget recompute save fails.
	store.FailBudgetSaves = true

	oc := s.SyncTransactions(context.Background())
	if oc.State != StateDone || oc.Err != nil {
		t.Fatalf("outcome = %+v, recompute failure must not fail the cycle", oc)
	}
	if oc.Warning == nil {
		t.Fatal("outcome carries no warning for the failed recompute")
	}

	snap := s.Projection().Snapshot()
	if len(snap.Transactions) != 1 {
		t.Errorf("projection holds %d transactions, want the committed one", len(snap.Transactions))
	}
	if snap.LastError == nil {
		t.Error("projection should surface the recompute failure")
	}
}

func TestSyncBudgets_CommitsWithProvenance(t *testing.T) {
	store := storage.NewMemoryStore()

	source := &fakeSource{budgets: []remote.RemoteBudget{{
		Category:       "dining",
		MonthlyLimit:   "100",
		CurrentSpent:   "40",
		AlertThreshold: 0.8,
	}}}
	s := newTestSyncer(source, store)

	oc := s.SyncBudgets(context.Background())
	if oc.State != StateDone || oc.Err != nil || oc.Fallback {
		t.Fatalf("outcome = %+v, want clean done", oc)
	}
	if oc.Created != 1 {
		t.Errorf("Created = %d, want 1", oc.Created)
	}

	budgets, _ := store.AllBudgets(context.Background())
	if len(budgets) != 1 {
		t.Fatalf("store holds %d budgets, want 1", len(budgets))
	}
	b := budgets[0]
	if !b.FromBackend || b.BackendSyncedAt == nil {
		t.Errorf("budget %+v missing backend provenance", b)
	}
	if !b.CurrentSpent.Equal(decimal.NewFromInt(40)) {
		t.Errorf("CurrentSpent = %s, want remote value 40", b.CurrentSpent)
	}

	snap := s.Projection().Snapshot()
	if len(snap.Budgets) != 1 {
		t.Errorf("projection holds %d budgets, want 1", len(snap.Budgets))
	}
}

func TestSyncBudgets_FetchFailureFallsBackToCache(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDiningBudget(t, store)

	source := &fakeSource{budgetErr: remote.NewFetchError(remote.FetchTimeout, context.DeadlineExceeded)}
	s := newTestSyncer(source, store)

	oc := s.SyncBudgets(context.Background())
	if !oc.Fallback || oc.State != StateDone {
		t.Fatalf("outcome = %+v, want fallback done", oc)
	}
	var fetchErr *FetchFailedError
	if !errors.As(oc.Err, &fetchErr) || fetchErr.Entity != EntityBudgets {
		t.Fatalf("Err = %v, want budget fetch error", oc.Err)
	}

	snap := s.Projection().Snapshot()
	if len(snap.Budgets) != 1 {
		t.Errorf("projection holds %d budgets, want the cached one", len(snap.Budgets))
	}
}
