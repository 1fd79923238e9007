package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the persistent local cache. Amounts are stored as decimal
// text to avoid float drift; dates are stored as RFC 3339 text.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const transactionColumns = "id, amount, date, category, account_id, description, pending, source_synced_at"

// AllTransactions implements TransactionStore.
func (s *SQLiteStore) AllTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions ORDER BY date DESC")
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// TransactionsByIDs implements TransactionStore. The lookup is a single
// `id IN (...)` query regardless of batch size.
func (s *SQLiteStore) TransactionsByIDs(ctx context.Context, ids []string) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE id IN (" +
		strings.Join(placeholders, ",") + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions by ids: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// SaveTransactions implements TransactionStore. The whole batch is upserted
// inside one database transaction.
func (s *SQLiteStore) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, amount, date, category, account_id, description, pending, source_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			date = excluded.date,
			category = excluded.category,
			account_id = excluded.account_id,
			description = excluded.description,
			pending = excluded.pending,
			source_synced_at = excluded.source_synced_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		var syncedAt any
		if t.SourceSyncedAt != nil {
			syncedAt = t.SourceSyncedAt.UTC().Format(time.RFC3339Nano)
		}
		_, err := stmt.ExecContext(ctx,
			t.ID,
			t.Amount.String(),
			t.Date.UTC().Format(time.RFC3339Nano),
			string(t.Category),
			t.AccountID,
			t.Description,
			boolToInt(t.Pending),
			syncedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}

	slog.DebugContext(ctx, "Transactions batch saved", "count", len(txs))
	return nil
}

// DeleteTransaction implements TransactionStore.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

const budgetColumns = "category, monthly_limit, current_spent, alert_threshold, backend_synced_at, is_from_backend"

// AllBudgets implements BudgetStore.
func (s *SQLiteStore) AllBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+budgetColumns+" FROM budgets")
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	return scanBudgets(rows)
}

// BudgetsByCategories implements BudgetStore.
func (s *SQLiteStore) BudgetsByCategories(ctx context.Context, categories []core.Category) ([]core.Budget, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(categories))
	args := make([]any, len(categories))
	for i, c := range categories {
		placeholders[i] = "?"
		args[i] = string(c)
	}

	query := "SELECT " + budgetColumns + " FROM budgets WHERE category IN (" +
		strings.Join(placeholders, ",") + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query budgets by categories: %w", err)
	}
	defer rows.Close()

	return scanBudgets(rows)
}

// SaveBudgets implements BudgetStore. The whole batch is upserted inside one
// database transaction, keyed by category.
func (s *SQLiteStore) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	if len(budgets) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO budgets (category, monthly_limit, current_spent, alert_threshold, backend_synced_at, is_from_backend)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			monthly_limit = excluded.monthly_limit,
			current_spent = excluded.current_spent,
			alert_threshold = excluded.alert_threshold,
			backend_synced_at = excluded.backend_synced_at,
			is_from_backend = excluded.is_from_backend`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range budgets {
		var syncedAt any
		if b.BackendSyncedAt != nil {
			syncedAt = b.BackendSyncedAt.UTC().Format(time.RFC3339Nano)
		}
		_, err := stmt.ExecContext(ctx,
			string(b.Category),
			b.MonthlyLimit.String(),
			b.CurrentSpent.String(),
			b.AlertThreshold,
			syncedAt,
			boolToInt(b.FromBackend),
		)
		if err != nil {
			return fmt.Errorf("upsert budget %s: %w", b.Category, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit budgets: %w", err)
	}

	slog.DebugContext(ctx, "Budgets batch saved", "count", len(budgets))
	return nil
}

// DeleteBudget implements BudgetStore.
func (s *SQLiteStore) DeleteBudget(ctx context.Context, category core.Category) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM budgets WHERE category = ?", string(category)); err != nil {
		return fmt.Errorf("delete budget %s: %w", category, err)
	}
	return nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, "DELETE FROM transactions"); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	if _, err := dbTx.ExecContext(ctx, "DELETE FROM budgets"); err != nil {
		return fmt.Errorf("clear budgets: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}

	slog.InfoContext(ctx, "Local cache cleared")
	return nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		var (
			t        core.Transaction
			amount   string
			date     string
			category string
			pending  int
			syncedAt sql.NullString
		)
		if err := rows.Scan(&t.ID, &amount, &date, &category, &t.AccountID, &t.Description, &pending, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		parsedAmount, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, &InvalidStateError{Kind: "transaction", Key: t.ID, Err: err}
		}
		t.Amount = parsedAmount

		parsedDate, err := time.Parse(time.RFC3339Nano, date)
		if err != nil {
			return nil, &InvalidStateError{Kind: "transaction", Key: t.ID, Err: err}
		}
		t.Date = parsedDate

		t.Category = core.Category(category)
		t.Pending = pending != 0

		if syncedAt.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, syncedAt.String)
			if err != nil {
				return nil, &InvalidStateError{Kind: "transaction", Key: t.ID, Err: err}
			}
			t.SourceSyncedAt = &parsed
		}

		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func scanBudgets(rows *sql.Rows) ([]core.Budget, error) {
	var budgets []core.Budget
	for rows.Next() {
		var (
			b           core.Budget
			category    string
			limit       string
			spent       string
			fromBackend int
			syncedAt    sql.NullString
		)
		if err := rows.Scan(&category, &limit, &spent, &b.AlertThreshold, &syncedAt, &fromBackend); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}

		b.Category = core.Category(category)

		parsedLimit, err := decimal.NewFromString(limit)
		if err != nil {
			return nil, &InvalidStateError{Kind: "budget", Key: category, Err: err}
		}
		b.MonthlyLimit = parsedLimit

		parsedSpent, err := decimal.NewFromString(spent)
		if err != nil {
			return nil, &InvalidStateError{Kind: "budget", Key: category, Err: err}
		}
		b.CurrentSpent = parsedSpent

		b.FromBackend = fromBackend != 0

		if syncedAt.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, syncedAt.String)
			if err != nil {
				return nil, &InvalidStateError{Kind: "budget", Key: category, Err: err}
			}
			b.BackendSyncedAt = &parsed
		}

		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return budgets, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
