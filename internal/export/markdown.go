package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lotas/tradersecho/internal/types"
)

// Markdown formats a table as a markdown document with one table row per
// ticker. Daily rollup columns are included when any row carries them.
func Markdown(mode string, rows []types.Row, at time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Social interest (%s)\n", mode)
	fmt.Fprintf(&b, "> Exported %s, %s %s\n", at.Format("2006-01-02 15:04"), humanize.Comma(int64(len(rows))), plural(len(rows), "ticker", "tickers"))

	if len(rows) == 0 {
		b.WriteString("\nNo rows.\n")
		return b.String()
	}

	daily := false
	for _, r := range rows {
		if r.Date != "" || r.ZScore != nil {
			daily = true
			break
		}
	}

	b.WriteString("\n")
	if daily {
		b.WriteString("| Ticker | Date | Interest | Mentions | Sentiment | Z | Pos | Neg | Neu |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|---:|\n")
	} else {
		b.WriteString("| Ticker | Interest | Mentions | Sentiment | vs avg |\n")
		b.WriteString("|---|---:|---:|---:|---:|\n")
	}
	for _, r := range rows {
		if daily {
			fmt.Fprintf(&b, "| %s | %s | %.2f | %s | %+.2f | %s | %s | %s | %s |\n",
				r.Ticker, r.Date, r.InterestScore, humanize.Comma(int64(r.Mentions)), r.Sentiment,
				optFloat(r.ZScore), optInt(r.Pos), optInt(r.Neg), optInt(r.Neu))
			continue
		}
		fmt.Fprintf(&b, "| %s | %.2f | %s | %+.2f | %+.0f%% |\n",
			r.Ticker, r.InterestScore, humanize.Comma(int64(r.Mentions)), r.Sentiment, r.ChangeVsAvg*100)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *f)
}

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return humanize.Comma(int64(*n))
}
