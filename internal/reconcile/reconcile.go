// Package reconcile turns incoming row batches into the table the UI renders.
//
// A batch is always a complete snapshot of its mode, so applying one is a
// full replace: the result holds exactly the batch's tickers, one row each.
package reconcile

import (
	"github.com/lotas/tradersecho/internal/types"
)

// Table is an immutable ordered mapping of ticker to Row. The zero value is
// an empty table.
type Table struct {
	order []string
	rows  map[string]types.Row
}

// Empty returns a table with no rows.
func Empty() Table { return Table{} }

// Apply returns the table for incoming. Nothing from current survives: rows
// are never merged field by field, and tickers missing from the batch are
// dropped. Order follows first appearance in incoming; a later row
// for the same ticker replaces the earlier one in place.
func Apply(current Table, incoming []types.Row) Table {
	t := Table{
		order: make([]string, 0, len(incoming)),
		rows:  make(map[string]types.Row, len(incoming)),
	}
	for _, r := range incoming {
		if _, seen := t.rows[r.Ticker]; !seen {
			t.order = append(t.order, r.Ticker)
		}
		t.rows[r.Ticker] = r
	}
	return t
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.order) }

// Get returns the row for ticker.
func (t Table) Get(ticker string) (types.Row, bool) {
	r, ok := t.rows[ticker]
	return r, ok
}

// Tickers returns the tickers in table order.
func (t Table) Tickers() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Rows returns the rows in table order.
func (t Table) Rows() []types.Row {
	out := make([]types.Row, 0, len(t.order))
	for _, tk := range t.order {
		out = append(out, t.rows[tk])
	}
	return out
}

// Equal reports whether both tables hold the same rows in the same order.
func (t Table) Equal(o Table) bool {
	if len(t.order) != len(o.order) {
		return false
	}
	for i, tk := range t.order {
		if o.order[i] != tk || !rowEqual(t.rows[tk], o.rows[tk]) {
			return false
		}
	}
	return true
}
