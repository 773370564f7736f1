package google

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "", nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sheet-id", "", nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")

	_, err := New(context.Background(), "sheet-id", "", nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRowValues(t *testing.T) {
	tx := core.Transaction{
		ID: "tx-1", Date: core.NewDate(2024, 4, 2), Amount: decimal.RequireFromString("12.34"),
		Type: core.Expense, Category: "Gasolina", Description: "Posto",
	}
	row := rowValues(tx)
	if len(row) != 6 {
		t.Fatalf("row has %d cells, want 6", len(row))
	}
	if row[0] != "tx-1" || row[1] != "2024-04-02" || row[2] != "EXPENSE" || row[4] != "Gasolina" || row[5] != "Posto" {
		t.Errorf("unexpected row: %v", row)
	}
	if row[3] != 12.34 {
		t.Errorf("amount cell = %v, want 12.34", row[3])
	}
}

func TestFindRowsSkipsHeader(t *testing.T) {
	cells := column([][]interface{}{{"ID"}, {"a"}, {}, {" b "}, {"a"}})
	rows := findRows(cells, func(v string) bool { return v == "a" || v == "b" })
	want := []int64{1, 3, 4}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("rows = %v, want %v", rows, want)
		}
	}

	if got := findRows([]string{"ID"}, func(string) bool { return true }); len(got) != 0 {
		t.Errorf("header must never match, got %v", got)
	}
}

func TestDeleteRequestsAreBottomUp(t *testing.T) {
	reqs := deleteRequests(42, []int64{2, 7, 4})
	if len(reqs) != 3 {
		t.Fatalf("got %d requests", len(reqs))
	}
	var starts []int64
	for _, r := range reqs {
		rng := r.DeleteDimension.Range
		if rng.SheetId != 42 || rng.Dimension != "ROWS" || rng.EndIndex != rng.StartIndex+1 {
			t.Errorf("unexpected range: %+v", rng)
		}
		starts = append(starts, rng.StartIndex)
	}
	if starts[0] != 7 || starts[1] != 4 || starts[2] != 2 {
		t.Errorf("start indexes = %v, want [7 4 2]", starts)
	}
}
