package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CategoryDining        Category = "dining"
	CategoryGroceries     Category = "groceries"
	CategoryShopping      Category = "shopping"
	CategoryTransport     Category = "transport"
	CategoryEntertainment Category = "entertainment"
	CategoryUtilities     Category = "utilities"
	CategoryHealth        Category = "health"
	CategoryTravel        Category = "travel"
	CategoryOther         Category = "other"
)

type (
	// Category is the closed set of spending categories. Budgets are keyed by it.
	Category string

	// Transaction is a single financial record. Amount sign convention:
	// positive = debit (counts toward budget spend), non-positive = credit/refund.
	Transaction struct {
		ID          string
		Amount      decimal.Decimal
		Date        time.Time
		Category    Category
		AccountID   string
		Description string
		Pending     bool

		// SourceSyncedAt is set when the record's current state was written by a
		// remote sync. Nil means the last write was a local edit.
		SourceSyncedAt *time.Time
	}

	// Budget caps monthly spend for one category. At most one Budget exists per
	// category in the store.
	Budget struct {
		Category       Category
		MonthlyLimit   decimal.Decimal
		CurrentSpent   decimal.Decimal
		AlertThreshold float64

		// BackendSyncedAt is the last time remote-computed spend was written.
		// FromBackend marks whether CurrentSpent came from a remote sync rather
		// than local recomputation.
		BackendSyncedAt *time.Time
		FromBackend     bool
	}
)

var (
	ErrEmptyID          = errors.New("empty transaction id")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidLimit     = errors.New("monthly limit must be positive")
	ErrInvalidThreshold = errors.New("alert threshold must be in [0,1]")
	ErrEmptyAccount     = errors.New("empty account id")
)

// Categories returns all valid categories.
func Categories() []Category {
	return []Category{
		CategoryDining,
		CategoryGroceries,
		CategoryShopping,
		CategoryTransport,
		CategoryEntertainment,
		CategoryUtilities,
		CategoryHealth,
		CategoryTravel,
		CategoryOther,
	}
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryDining, CategoryGroceries, CategoryShopping, CategoryTransport,
		CategoryEntertainment, CategoryUtilities, CategoryHealth, CategoryTravel,
		CategoryOther:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// NewLocalID generates an identifier for a transaction created locally,
// before the remote source has ever seen it.
func NewLocalID() string {
	return uuid.NewString()
}

// IsDebit reports whether the transaction counts toward budget spend.
// Credits and refunds (amount <= 0) never contribute.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsPositive()
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if !t.Category.IsValid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccount
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !b.MonthlyLimit.IsPositive() {
		return ErrInvalidLimit
	}
	if b.AlertThreshold < 0 || b.AlertThreshold > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

// SameMonth reports whether two instants fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
