package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finsync/internal/amqp"
	"finsync/internal/budget"
	"finsync/internal/core"
	"finsync/internal/storage"
	syncpkg "finsync/internal/sync"
)

// LedgerService orchestrates local transaction and budget edits. Local writes
// land in the store first; budget spend is kept consistent through the
// aggregator, and a sync request is published so the next cycle reconciles
// the remote view.
type LedgerService struct {
	store      storage.Store
	aggregator *budget.Aggregator
	amqpClient *amqp.Client
}

func NewLedgerService(store storage.Store, aggregator *budget.Aggregator, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		store:      store,
		aggregator: aggregator,
		amqpClient: amqpClient,
	}
}

// CreateTransaction saves a locally entered transaction and applies it to its
// category budget incrementally. A transaction without an ID gets a generated
// local one; local records never carry a remote sync timestamp.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if t.ID == "" {
		t.ID = core.NewLocalID()
	}
	t.SourceSyncedAt = nil

	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}

	if err := s.store.SaveTransactions(ctx, []core.Transaction{t}); err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	if err := s.aggregator.ApplyTransaction(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to apply transaction to budget",
			"id", t.ID, "category", t.Category, "error", err)
		// The transaction is saved; the next recompute heals the budget.
	}

	s.publishSyncRequest(ctx, syncpkg.EntityTransactions, "local_create")

	return t.ID, nil
}

// UpdateTransaction overwrites a stored transaction and recomputes the spend
// of every category the edit touches.
func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	existing, err := s.store.TransactionsByIDs(ctx, []string{t.ID})
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if len(existing) == 0 {
		return fmt.Errorf("transaction %s not found", t.ID)
	}

	if err := s.store.SaveTransactions(ctx, []core.Transaction{t}); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	categories := []core.Category{t.Category}
	if old := existing[0].Category; old != t.Category {
		categories = append(categories, old)
	}
	if err := s.aggregator.RecomputeForCategories(ctx, categories, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Failed to recompute budgets after update",
			"id", t.ID, "error", err)
	}

	s.publishSyncRequest(ctx, syncpkg.EntityTransactions, "local_update")

	return nil
}

// DeleteTransaction removes a transaction and recomputes its category budget.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	existing, err := s.store.TransactionsByIDs(ctx, []string{id})
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if len(existing) == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	if err := s.aggregator.RecomputeForCategories(ctx, []core.Category{existing[0].Category}, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Failed to recompute budget after delete",
			"id", id, "error", err)
	}

	s.publishSyncRequest(ctx, syncpkg.EntityTransactions, "local_delete")

	return nil
}

// SetBudget creates or replaces a locally managed budget and computes its
// current spend from the stored transactions.
func (s *LedgerService) SetBudget(ctx context.Context, b core.Budget) error {
	b.FromBackend = false
	b.BackendSyncedAt = nil

	if err := b.Validate(); err != nil {
		return fmt.Errorf("validate budget: %w", err)
	}

	if err := s.aggregator.Save(ctx, []core.Budget{b}); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	if err := s.aggregator.RecomputeForCategories(ctx, []core.Category{b.Category}, time.Now()); err != nil {
		return fmt.Errorf("recompute budget spend: %w", err)
	}

	return nil
}

// RemoveBudget deletes a budget row. Transactions in its category are kept.
func (s *LedgerService) RemoveBudget(ctx context.Context, category core.Category) error {
	if !category.IsValid() {
		return fmt.Errorf("remove budget: %w", core.ErrInvalidCategory)
	}
	if err := s.store.DeleteBudget(ctx, category); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// ClearCache wipes all locally cached records. The next sync cycle repopulates
// them from the remote source.
func (s *LedgerService) ClearCache(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	slog.InfoContext(ctx, "Local cache cleared")
	s.publishSyncRequest(ctx, syncpkg.EntityTransactions, "cache_cleared")
	s.publishSyncRequest(ctx, syncpkg.EntityBudgets, "cache_cleared")

	return nil
}

func (s *LedgerService) publishSyncRequest(ctx context.Context, entity syncpkg.Entity, reason string) {
	if s.amqpClient == nil {
		return
	}

	msg := amqp.NewSyncRequestMessage(entity, reason)
	if err := s.amqpClient.PublishSyncRequest(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync request",
			"entity", entity, "reason", reason, "error", err)
		// Local state is already committed; the periodic sync still runs.
	}
}

// Close closes the storage and AMQP connections.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
