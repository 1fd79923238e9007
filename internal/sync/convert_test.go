package sync

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/core"
	"finsync/internal/remote"
)

func remoteTx(id, amount, category string) remote.RemoteTransaction {
	return remote.RemoteTransaction{
		ID:        id,
		Amount:    amount,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Category:  category,
		AccountID: "acc-1",
	}
}

func TestConvertTransaction(t *testing.T) {
	got, err := ConvertTransaction(remoteTx("t1", "12.34", "dining"))
	if err != nil {
		t.Fatalf("ConvertTransaction: %v", err)
	}
	if got.ID != "t1" || got.Category != core.CategoryDining {
		t.Errorf("unexpected transaction %+v", got)
	}
	if !got.Amount.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("Amount = %s, want 12.34", got.Amount)
	}
	if got.SourceSyncedAt != nil {
		t.Error("converter must not stamp provenance; that happens at merge time")
	}
}

func TestConvertTransaction_SignNeverInverted(t *testing.T) {
	refund, err := ConvertTransaction(remoteTx("t1", "-20.00", "shopping"))
	if err != nil {
		t.Fatalf("ConvertTransaction: %v", err)
	}
	if !refund.Amount.IsNegative() {
		t.Errorf("Amount = %s, refund sign was inverted", refund.Amount)
	}
	if refund.IsDebit() {
		t.Error("refund must not be a debit")
	}
}

func TestConvertTransaction_Failures(t *testing.T) {
	tests := []struct {
		name   string
		record remote.RemoteTransaction
	}{
		{"malformed amount", remoteTx("t1", "12,34", "dining")},
		{"unknown category", remoteTx("t1", "10", "yachts")},
		{"empty id", remoteTx("", "10", "dining")},
		{
			"zero date",
			remote.RemoteTransaction{ID: "t1", Amount: "10", Category: "dining", AccountID: "acc-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ConvertTransaction(tt.record); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}

func TestConvertBudget(t *testing.T) {
	got, err := ConvertBudget(remote.RemoteBudget{
		Category:       "dining",
		MonthlyLimit:   "100",
		CurrentSpent:   "12.34",
		AlertThreshold: 0.8,
	})
	if err != nil {
		t.Fatalf("ConvertBudget: %v", err)
	}
	if got.Category != core.CategoryDining || !got.MonthlyLimit.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected budget %+v", got)
	}
	if got.FromBackend {
		t.Error("converter must not stamp provenance; that happens at merge time")
	}
}

func TestConvertBudget_Failures(t *testing.T) {
	tests := []struct {
		name   string
		record remote.RemoteBudget
	}{
		{"malformed limit", remote.RemoteBudget{Category: "dining", MonthlyLimit: "abc", CurrentSpent: "0"}},
		{"malformed spent", remote.RemoteBudget{Category: "dining", MonthlyLimit: "100", CurrentSpent: "abc"}},
		{"unknown category", remote.RemoteBudget{Category: "yachts", MonthlyLimit: "100", CurrentSpent: "0"}},
		{"non-positive limit", remote.RemoteBudget{Category: "dining", MonthlyLimit: "0", CurrentSpent: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ConvertBudget(tt.record); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}
