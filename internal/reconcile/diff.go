package reconcile

import (
	"fmt"
	"strings"

	"github.com/lotas/tradersecho/internal/types"
)

// Change is one ticker that differs between two tables. Before is the zero
// Row for an added ticker, After is the zero Row for a removed one.
type Change struct {
	Ticker string
	Before types.Row
	After  types.Row
}

// Changes holds the result of comparing two tables.
type Changes struct {
	Added   []Change // in next but not in prev
	Removed []Change // in prev but not in next
	Changed []Change // in both with different values
}

// Empty reports whether the tables were identical row for row.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Touched returns the set of tickers that were added or changed, for
// highlighting in the rendered table.
func (c Changes) Touched() map[string]bool {
	out := make(map[string]bool, len(c.Added)+len(c.Changed))
	for _, ch := range c.Added {
		out[ch.Ticker] = true
	}
	for _, ch := range c.Changed {
		out[ch.Ticker] = true
	}
	return out
}

// Diff compares prev against next by ticker. Added and Changed follow next's
// order, Removed follows prev's.
func Diff(prev, next Table) Changes {
	var c Changes
	for _, tk := range next.order {
		after := next.rows[tk]
		before, ok := prev.rows[tk]
		switch {
		case !ok:
			c.Added = append(c.Added, Change{Ticker: tk, After: after})
		case !rowEqual(before, after):
			c.Changed = append(c.Changed, Change{Ticker: tk, Before: before, After: after})
		}
	}
	for _, tk := range prev.order {
		if _, ok := next.rows[tk]; !ok {
			c.Removed = append(c.Removed, Change{Ticker: tk, Before: prev.rows[tk]})
		}
	}
	return c
}

// Format returns a human-readable summary of c.
func Format(c Changes) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Added: %d  Removed: %d  Changed: %d\n", len(c.Added), len(c.Removed), len(c.Changed))

	if len(c.Added) > 0 {
		sb.WriteString("\n+ Added:\n")
		for _, ch := range c.Added {
			fmt.Fprintf(&sb, "  + %-6s interest %.2f  mentions %d\n", ch.Ticker, ch.After.InterestScore, ch.After.Mentions)
		}
	}
	if len(c.Removed) > 0 {
		sb.WriteString("\n- Removed:\n")
		for _, ch := range c.Removed {
			fmt.Fprintf(&sb, "  - %s\n", ch.Ticker)
		}
	}
	if len(c.Changed) > 0 {
		sb.WriteString("\n~ Changed:\n")
		for _, ch := range c.Changed {
			fmt.Fprintf(&sb, "  ~ %-6s interest %.2f -> %.2f  mentions %d -> %d  sentiment %+.2f -> %+.2f\n",
				ch.Ticker,
				ch.Before.InterestScore, ch.After.InterestScore,
				ch.Before.Mentions, ch.After.Mentions,
				ch.Before.Sentiment, ch.After.Sentiment)
		}
	}
	if c.Empty() {
		sb.WriteString("\nNo changes.\n")
	}
	return sb.String()
}

func rowEqual(a, b types.Row) bool {
	return a.Ticker == b.Ticker &&
		a.InterestScore == b.InterestScore &&
		a.Mentions == b.Mentions &&
		a.Sentiment == b.Sentiment &&
		a.ChangeVsAvg == b.ChangeVsAvg &&
		a.Date == b.Date &&
		floatPtrEqual(a.ZScore, b.ZScore) &&
		intPtrEqual(a.Pos, b.Pos) &&
		intPtrEqual(a.Neg, b.Neg) &&
		intPtrEqual(a.Neu, b.Neu)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
