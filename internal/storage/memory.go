package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"finsync/internal/core"
)

var errSaveFailed = errors.New("batch save failed")

// MemoryStore is an in-memory Store used by tests and the "memory" backend.
// It honors the same uniqueness and atomicity guarantees as the SQLite store.
type MemoryStore struct {
	mu           sync.Mutex
	transactions map[string]core.Transaction
	budgets      map[core.Category]core.Budget

	// FailSaves makes every batch save fail, for exercising persistence
	// failure paths. FailBudgetSaves fails only budget saves.
	FailSaves       bool
	FailBudgetSaves bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]core.Transaction),
		budgets:      make(map[core.Category]core.Budget),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

// AllTransactions implements TransactionStore. Results are ordered by date
// descending like the SQLite store.
func (s *MemoryStore) AllTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// TransactionsByIDs implements TransactionStore.
func (s *MemoryStore) TransactionsByIDs(_ context.Context, ids []string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, id := range ids {
		if t, ok := s.transactions[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// SaveTransactions implements TransactionStore.
func (s *MemoryStore) SaveTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSaves {
		return errSaveFailed
	}
	for _, t := range txs {
		s.transactions[t.ID] = t
	}
	return nil
}

// DeleteTransaction implements TransactionStore.
func (s *MemoryStore) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.transactions, id)
	return nil
}

// AllBudgets implements BudgetStore.
func (s *MemoryStore) AllBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// BudgetsByCategories implements BudgetStore.
func (s *MemoryStore) BudgetsByCategories(_ context.Context, categories []core.Category) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Budget
	for _, c := range categories {
		if b, ok := s.budgets[c]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// SaveBudgets implements BudgetStore.
func (s *MemoryStore) SaveBudgets(_ context.Context, budgets []core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSaves || s.FailBudgetSaves {
		return errSaveFailed
	}
	for _, b := range budgets {
		s.budgets[b.Category] = b
	}
	return nil
}

// DeleteBudget implements BudgetStore.
func (s *MemoryStore) DeleteBudget(_ context.Context, category core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.budgets, category)
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = make(map[string]core.Transaction)
	s.budgets = make(map[core.Category]core.Budget)
	return nil
}
