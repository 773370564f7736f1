package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
)

func tx(id string, typ core.TransactionType, amount int64) core.Transaction {
	return core.Transaction{ID: id, Date: core.NewDate(2024, 4, 1), Amount: decimal.NewFromInt(amount), Type: typ}
}

func TestMirrorOperations(t *testing.T) {
	ctx := context.Background()
	m := New()

	for _, x := range []core.Transaction{tx("1", core.Income, 10), tx("2", core.Expense, 5), tx("3", core.Expense, 7)} {
		if err := m.Upsert(ctx, x); err != nil {
			t.Fatalf("Upsert(%s) error = %v", x.ID, err)
		}
	}

	if err := m.Upsert(ctx, tx("1", core.Income, 99)); err != nil {
		t.Fatal(err)
	}
	rows := m.Rows()
	if len(rows) != 3 || !rows[0].Amount.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("upsert should replace in place, got %+v", rows)
	}

	if err := m.ClearType(ctx, core.Expense); err != nil {
		t.Fatal(err)
	}
	if got := len(m.Rows()); got != 1 {
		t.Fatalf("rows after clear = %d, want 1", got)
	}

	if err := m.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing row should not fail: %v", err)
	}
	if err := m.Delete(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if got := len(m.Rows()); got != 0 {
		t.Fatalf("rows after delete = %d, want 0", got)
	}
}

func TestMirrorRejectsInvalidTransaction(t *testing.T) {
	if err := New().Upsert(context.Background(), core.Transaction{ID: "x"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestMirrorReset(t *testing.T) {
	ctx := context.Background()
	m := New()
	_ = m.Upsert(ctx, tx("1", core.Income, 1))
	_ = m.Reset(ctx)
	if len(m.Rows()) != 0 {
		t.Error("reset should drop every row")
	}
}
