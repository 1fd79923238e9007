package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"finsync/internal/budget"
	"finsync/internal/core"
	"finsync/internal/remote"
	"finsync/internal/storage"
)

// DefaultFetchTimeout bounds the remote fetch step of a cycle. Past the
// fetch, a cycle always runs to completion.
const DefaultFetchTimeout = 30 * time.Second

// Syncer runs one sync cycle per entity type: fetch, fallback decision,
// convert, upsert, commit, recompute trigger. The in-memory projection is
// replaced only after a successful commit or a completed fallback, never
// partially.
type Syncer struct {
	source       remote.Source
	store        storage.Store
	aggregator   *budget.Aggregator
	projection   *Projection
	fetchTimeout time.Duration
	now          func() time.Time
}

func NewSyncer(source remote.Source, store storage.Store, aggregator *budget.Aggregator, fetchTimeout time.Duration) *Syncer {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Syncer{
		source:       source,
		store:        store,
		aggregator:   aggregator,
		projection:   NewProjection(),
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// Projection returns the snapshot view exposed to callers.
func (s *Syncer) Projection() *Projection {
	return s.projection
}

// SyncTransactions runs one transaction sync cycle.
func (s *Syncer) SyncTransactions(ctx context.Context) Outcome {
	oc := Outcome{Entity: EntityTransactions, State: StateFetching, StartedAt: s.now()}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	records, err := s.source.FetchTransactions(fetchCtx)
	cancel()
	if err != nil {
		slog.WarnContext(ctx, "Transaction fetch failed, falling back to local cache", "error", err)
		return s.fallbackTransactions(ctx, oc, &FetchFailedError{Entity: EntityTransactions, Err: err})
	}
	oc.Fetched = len(records)

	// An empty remote response never deletes local data; the cache is
	// trusted as-is.
	if len(records) == 0 {
		slog.InfoContext(ctx, "Remote returned no transactions, trusting local cache")
		return s.fallbackTransactions(ctx, oc, nil)
	}

	oc.State = StateConverting
	converted := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		t, err := ConvertTransaction(r)
		if err != nil {
			oc.ConversionFailures++
			slog.WarnContext(ctx, "Skipping unconvertible transaction record",
				"id", r.ID, "error", err)
			continue
		}
		converted = append(converted, t)
	}
	oc.Converted = len(converted)

	if len(converted) == 0 {
		convErr := &ConversionError{Entity: EntityTransactions, Failed: oc.ConversionFailures, Total: len(records)}
		slog.ErrorContext(ctx, "Every fetched transaction failed conversion", "total", len(records))
		return s.fallbackTransactions(ctx, oc, convErr)
	}
	if oc.ConversionFailures > 0 {
		oc.Warning = &ConversionError{Entity: EntityTransactions, Failed: oc.ConversionFailures, Total: len(records)}
	}

	oc.State = StateUpserting
	syncedAt := s.now()
	upserts, stats, err := mergeTransactions(ctx, s.store, converted, syncedAt)
	if err != nil {
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityTransactions, Err: err})
	}
	oc.Created, oc.Updated = stats.created, stats.updated

	oc.State = StateCommitting
	if err := s.store.SaveTransactions(ctx, upserts); err != nil {
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityTransactions, Err: err})
	}

	committed, err := s.store.AllTransactions(ctx)
	if err != nil {
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityTransactions, Err: err})
	}
	s.projection.SetTransactions(committed)
	s.projection.SetLastError(oc.Warning)

	oc.State = StateRecomputeTriggered
	if err := s.aggregator.RecomputeForCategories(ctx, affectedCategories(upserts), s.now()); err != nil {
		slog.ErrorContext(ctx, "Budget recompute after transaction sync failed", "error", err)
		oc.Warning = joinWarnings(oc.Warning, err)
		s.projection.SetLastError(oc.Warning)
	}

	oc.State = StateDone
	return s.finish(ctx, oc)
}

// SyncBudgets runs one budget sync cycle. Remote budgets already carry their
// spend, so no recompute is triggered.
func (s *Syncer) SyncBudgets(ctx context.Context) Outcome {
	oc := Outcome{Entity: EntityBudgets, State: StateFetching, StartedAt: s.now()}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	records, err := s.source.FetchBudgets(fetchCtx)
	cancel()
	if err != nil {
		slog.WarnContext(ctx, "Budget fetch failed, falling back to local cache", "error", err)
		return s.fallbackBudgets(ctx, oc, &FetchFailedError{Entity: EntityBudgets, Err: err})
	}
	oc.Fetched = len(records)

	if len(records) == 0 {
		slog.InfoContext(ctx, "Remote returned no budgets, trusting local cache")
		return s.fallbackBudgets(ctx, oc, nil)
	}

	oc.State = StateConverting
	converted := make([]core.Budget, 0, len(records))
	for _, r := range records {
		b, err := ConvertBudget(r)
		if err != nil {
			oc.ConversionFailures++
			slog.WarnContext(ctx, "Skipping unconvertible budget record",
				"category", r.Category, "error", err)
			continue
		}
		converted = append(converted, b)
	}
	oc.Converted = len(converted)

	if len(converted) == 0 {
		convErr := &ConversionError{Entity: EntityBudgets, Failed: oc.ConversionFailures, Total: len(records)}
		slog.ErrorContext(ctx, "Every fetched budget failed conversion", "total", len(records))
		return s.fallbackBudgets(ctx, oc, convErr)
	}
	if oc.ConversionFailures > 0 {
		oc.Warning = &ConversionError{Entity: EntityBudgets, Failed: oc.ConversionFailures, Total: len(records)}
	}

	oc.State = StateUpserting
	syncedAt := s.now()
	upserts, stats, err := mergeBudgets(ctx, s.store, converted, syncedAt)
	if err != nil {
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityBudgets, Err: err})
	}
	oc.Created, oc.Updated = stats.created, stats.updated

	// Budget rows are a shared critical section with the aggregator; the
	// commit goes through its batched-save path.
	oc.State = StateCommitting
	if err := s.aggregator.Save(ctx, upserts); err != nil {
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityBudgets, Err: err})
	}

	committed, err := s.store.AllBudgets(ctx)
	if err != nil {
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityBudgets, Err: err})
	}
	s.projection.SetBudgets(committed)
	s.projection.SetLastError(oc.Warning)

	oc.State = StateDone
	return s.finish(ctx, oc)
}

// fallbackTransactions serves the cached transaction set. cause is nil for
// the benign empty-remote case.
func (s *Syncer) fallbackTransactions(ctx context.Context, oc Outcome, cause error) Outcome {
	cached, err := s.store.AllTransactions(ctx)
	if err != nil {
		// Even the cache is unreadable; the previous projection stays.
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityTransactions, Err: err})
	}
	s.projection.SetTransactions(cached)
	s.projection.SetLastError(cause)

	oc.Fallback = true
	oc.Err = cause
	oc.State = StateDone
	return s.finish(ctx, oc)
}

func (s *Syncer) fallbackBudgets(ctx context.Context, oc Outcome, cause error) Outcome {
	cached, err := s.store.AllBudgets(ctx)
	if err != nil {
		return s.errored(ctx, oc, &PersistenceError{Entity: EntityBudgets, Err: err})
	}
	s.projection.SetBudgets(cached)
	s.projection.SetLastError(cause)

	oc.Fallback = true
	oc.Err = cause
	oc.State = StateDone
	return s.finish(ctx, oc)
}

// errored terminates the cycle without touching the projection's record sets.
func (s *Syncer) errored(ctx context.Context, oc Outcome, cause error) Outcome {
	oc.State = StateErrored
	oc.Err = cause
	s.projection.SetLastError(cause)
	return s.finish(ctx, oc)
}

func (s *Syncer) finish(ctx context.Context, oc Outcome) Outcome {
	oc.Duration = s.now().Sub(oc.StartedAt)

	attrs := []any{
		"entity", oc.Entity,
		"state", oc.State,
		"fallback", oc.Fallback,
		"fetched", oc.Fetched,
		"converted", oc.Converted,
		"conversion_failures", oc.ConversionFailures,
		"created", oc.Created,
		"updated", oc.Updated,
		"duration_ms", oc.Duration.Milliseconds(),
	}
	switch {
	case oc.Err != nil:
		slog.WarnContext(ctx, "Sync cycle finished with error", append(attrs, "error", oc.Err)...)
	case oc.Warning != nil:
		slog.WarnContext(ctx, "Sync cycle finished with warning", append(attrs, "warning", oc.Warning)...)
	default:
		slog.InfoContext(ctx, "Sync cycle finished", attrs...)
	}

	return oc
}

func affectedCategories(txs []core.Transaction) []core.Category {
	seen := make(map[core.Category]struct{}, len(txs))
	var out []core.Category
	for _, t := range txs {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	return out
}

func joinWarnings(a, b error) error {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return errors.Join(a, b)
}
