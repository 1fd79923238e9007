package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTransaction() Transaction {
	return Transaction{
		ID:          "t1",
		Amount:      decimal.NewFromFloat(12.34),
		Date:        time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Category:    CategoryDining,
		AccountID:   "acc-1",
		Description: "lunch",
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{
			name:    "valid",
			mutate:  func(tx *Transaction) {},
			wantErr: nil,
		},
		{
			name:    "empty id",
			mutate:  func(tx *Transaction) { tx.ID = "  " },
			wantErr: ErrEmptyID,
		},
		{
			name:    "zero date",
			mutate:  func(tx *Transaction) { tx.Date = time.Time{} },
			wantErr: ErrZeroDate,
		},
		{
			name:    "unknown category",
			mutate:  func(tx *Transaction) { tx.Category = "yachts" },
			wantErr: ErrInvalidCategory,
		},
		{
			name:    "empty account",
			mutate:  func(tx *Transaction) { tx.AccountID = "" },
			wantErr: ErrEmptyAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_IsDebit(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   bool
	}{
		{"positive is debit", "12.34", true},
		{"negative is refund", "-20.00", false},
		{"zero is not a debit", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tx.Amount = decimal.RequireFromString(tt.amount)
			if got := tx.IsDebit(); got != tt.want {
				t.Errorf("IsDebit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		budget  Budget
		wantErr error
	}{
		{
			name: "valid",
			budget: Budget{
				Category:       CategoryDining,
				MonthlyLimit:   decimal.NewFromInt(100),
				AlertThreshold: 0.8,
			},
			wantErr: nil,
		},
		{
			name: "invalid category",
			budget: Budget{
				Category:     "nope",
				MonthlyLimit: decimal.NewFromInt(100),
			},
			wantErr: ErrInvalidCategory,
		},
		{
			name: "zero limit",
			budget: Budget{
				Category: CategoryDining,
			},
			wantErr: ErrInvalidLimit,
		},
		{
			name: "threshold above one",
			budget: Budget{
				Category:       CategoryDining,
				MonthlyLimit:   decimal.NewFromInt(100),
				AlertThreshold: 1.5,
			},
			wantErr: ErrInvalidThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.budget.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCategory_IsValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.IsValid() {
			t.Errorf("Categories() returned invalid category %q", c)
		}
	}
	if Category("unknown").IsValid() {
		t.Error("unknown category should not be valid")
	}
}

func TestNewLocalID_Unique(t *testing.T) {
	a, b := NewLocalID(), NewLocalID()
	if a == "" || a == b {
		t.Errorf("NewLocalID() produced %q and %q, want distinct non-empty ids", a, b)
	}
}

func TestSameMonth(t *testing.T) {
	a := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	c := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	d := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	if !SameMonth(a, b) {
		t.Error("first and last day of June should be the same month")
	}
	if SameMonth(b, c) {
		t.Error("June and July should not be the same month")
	}
	if SameMonth(a, d) {
		t.Error("same month in different years should not match")
	}
}
