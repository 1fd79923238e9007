package sync

import (
	"context"
	"fmt"
	"time"

	"finsync/internal/core"
	"finsync/internal/storage"
)

type mergeStats struct {
	created int
	updated int
}

// mergeTransactions resolves which incoming records already exist and applies
// create-or-merge semantics. Existing records are fetched with a single
// id-set query, never one lookup per record. The incoming remote values win
// every field conflict; local-only edits on a remotely updated id are
// overwritten.
func mergeTransactions(ctx context.Context, store storage.TransactionStore, incoming []core.Transaction, syncedAt time.Time) ([]core.Transaction, mergeStats, error) {
	var stats mergeStats

	// Last occurrence wins if the remote batch repeats an id, so one cycle
	// can never produce duplicate rows.
	deduped := make([]core.Transaction, 0, len(incoming))
	seen := make(map[string]int, len(incoming))
	for _, t := range incoming {
		if i, ok := seen[t.ID]; ok {
			deduped[i] = t
			continue
		}
		seen[t.ID] = len(deduped)
		deduped = append(deduped, t)
	}

	ids := make([]string, len(deduped))
	for i, t := range deduped {
		ids[i] = t.ID
	}

	existing, err := store.TransactionsByIDs(ctx, ids)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve existing transactions: %w", err)
	}
	existingByID := make(map[string]core.Transaction, len(existing))
	for _, t := range existing {
		existingByID[t.ID] = t
	}

	merged := make([]core.Transaction, 0, len(deduped))
	for _, in := range deduped {
		if ex, ok := existingByID[in.ID]; ok {
			merged = append(merged, mergeTransaction(ex, in, syncedAt))
			stats.updated++
			continue
		}
		in.SourceSyncedAt = &syncedAt
		merged = append(merged, in)
		stats.created++
	}

	return merged, stats, nil
}

// mergeTransaction overwrites the remotely-authoritative fields of an
// existing record and stamps provenance. The account reference survives when
// the remote record omits it.
func mergeTransaction(existing, incoming core.Transaction, syncedAt time.Time) core.Transaction {
	merged := existing
	merged.Amount = incoming.Amount
	merged.Date = incoming.Date
	merged.Category = incoming.Category
	merged.Description = incoming.Description
	merged.Pending = incoming.Pending
	if incoming.AccountID != "" {
		merged.AccountID = incoming.AccountID
	}
	merged.SourceSyncedAt = &syncedAt
	return merged
}

// mergeBudgets resolves incoming budgets against the store by category, the
// unique budget key. Remote values win; the spend arrives remote-computed so
// every merged budget is stamped as backend-sourced.
func mergeBudgets(ctx context.Context, store storage.BudgetStore, incoming []core.Budget, syncedAt time.Time) ([]core.Budget, mergeStats, error) {
	var stats mergeStats

	deduped := make([]core.Budget, 0, len(incoming))
	seen := make(map[core.Category]int, len(incoming))
	for _, b := range incoming {
		if i, ok := seen[b.Category]; ok {
			deduped[i] = b
			continue
		}
		seen[b.Category] = len(deduped)
		deduped = append(deduped, b)
	}

	categories := make([]core.Category, len(deduped))
	for i, b := range deduped {
		categories[i] = b.Category
	}

	existing, err := store.BudgetsByCategories(ctx, categories)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve existing budgets: %w", err)
	}
	existingByCategory := make(map[core.Category]struct{}, len(existing))
	for _, b := range existing {
		existingByCategory[b.Category] = struct{}{}
	}

	merged := make([]core.Budget, 0, len(deduped))
	for _, in := range deduped {
		in.FromBackend = true
		in.BackendSyncedAt = &syncedAt
		if _, ok := existingByCategory[in.Category]; ok {
			stats.updated++
		} else {
			stats.created++
		}
		merged = append(merged, in)
	}

	return merged, stats, nil
}
