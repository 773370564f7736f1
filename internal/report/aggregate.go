// Package report aggregates transactions into totals, daily chart series and
// category breakdowns. Every function here is pure.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
)

type (
	Totals struct {
		Income      decimal.Decimal `json:"income"`
		Expenses    decimal.Decimal `json:"expenses"`
		Investments decimal.Decimal `json:"investments"`
		NetProfit   decimal.Decimal `json:"netProfit"`
	}

	// DailyPoint is one day of the chart series. Date holds the dd/MM label.
	DailyPoint struct {
		Date       string          `json:"date"`
		FullDate   core.Date       `json:"fullDate"`
		Income     decimal.Decimal `json:"income"`
		Expense    decimal.Decimal `json:"expense"`
		Investment decimal.Decimal `json:"investment"`
		Profit     decimal.Decimal `json:"profit"`
	}

	CategorySlice struct {
		Name    string          `json:"name"`
		Value   decimal.Decimal `json:"value"`
		Percent decimal.Decimal `json:"percent"`
	}
)

// CalculateTotals sums amounts per transaction type.
func CalculateTotals(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		case core.Expense:
			t.Expenses = t.Expenses.Add(tx.Amount)
		case core.Investment:
			t.Investments = t.Investments.Add(tx.Amount)
		}
	}
	t.NetProfit = t.Income.Sub(t.Expenses).Sub(t.Investments)
	return t
}

// FilterTransactions keeps transactions dated within [start, end], both days
// included. Order is preserved.
func FilterTransactions(txs []core.Transaction, start, end core.Date) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.Within(start, end) {
			out = append(out, tx)
		}
	}
	return out
}

// GroupTransactionsByDate returns one zero-filled point per calendar day in
// [start, end], in chronological order. Transactions outside the range are
// ignored.
func GroupTransactionsByDate(txs []core.Transaction, start, end core.Date) []DailyPoint {
	days := core.DateRange{Start: start, End: end}.Days()
	points := make([]DailyPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		d := start.AddDays(i)
		points[i] = DailyPoint{Date: d.Label(), FullDate: d}
		index[d.String()] = i
	}

	for _, tx := range txs {
		i, ok := index[tx.Date.String()]
		if !ok {
			continue
		}
		p := &points[i]
		switch tx.Type {
		case core.Income:
			p.Income = p.Income.Add(tx.Amount)
			p.Profit = p.Profit.Add(tx.Amount)
		case core.Expense:
			p.Expense = p.Expense.Add(tx.Amount)
			p.Profit = p.Profit.Sub(tx.Amount)
		case core.Investment:
			p.Investment = p.Investment.Add(tx.Amount)
			p.Profit = p.Profit.Sub(tx.Amount)
		}
	}
	return points
}

// GroupExpensesByCategory sums EXPENSE transactions per category, largest
// first. Equal values are ordered by name so the output is stable.
func GroupExpensesByCategory(txs []core.Transaction) []CategorySlice {
	sums := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		name := tx.CategoryOrDefault()
		sums[name] = sums[name].Add(tx.Amount)
		total = total.Add(tx.Amount)
	}

	out := make([]CategorySlice, 0, len(sums))
	for name, value := range sums {
		out = append(out, CategorySlice{
			Name:    name,
			Value:   value,
			Percent: core.Percent(value, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
