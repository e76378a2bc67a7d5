package export

import (
	"strings"
	"testing"
	"time"

	"github.com/lotas/tradersecho/internal/types"
)

func TestMarkdown_LiveTable(t *testing.T) {
	rows := []types.Row{
		{Ticker: "NVDA", InterestScore: 3.25, Mentions: 12345, Sentiment: 0.4, ChangeVsAvg: 0.5},
		{Ticker: "AMD", InterestScore: 0.5, Mentions: 7, Sentiment: -0.1, ChangeVsAvg: -0.2},
	}
	result := Markdown("pro", rows, time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC))

	if !strings.Contains(result, "# Social interest (pro)") {
		t.Errorf("missing header, got:\n%s", result)
	}
	if !strings.Contains(result, "> Exported 2024-05-02 09:30, 2 tickers") {
		t.Errorf("missing export line, got:\n%s", result)
	}
	if !strings.Contains(result, "| Ticker | Interest | Mentions | Sentiment | vs avg |") {
		t.Errorf("missing live header, got:\n%s", result)
	}
	if !strings.Contains(result, "| NVDA | 3.25 | 12,345 | +0.40 | +50% |") {
		t.Errorf("missing NVDA row, got:\n%s", result)
	}
	if !strings.Contains(result, "| AMD | 0.50 | 7 | -0.10 | -20% |") {
		t.Errorf("missing AMD row, got:\n%s", result)
	}
}

func TestMarkdown_DailyColumns(t *testing.T) {
	z := -0.5
	pos, neg, neu := 1, 2, 3
	rows := []types.Row{{Ticker: "AAPL", Date: "2024-05-01", InterestScore: 1, Mentions: 6, ZScore: &z, Pos: &pos, Neg: &neg, Neu: &neu}}
	result := Markdown("free", rows, time.Now())

	if !strings.Contains(result, "| Ticker | Date |") {
		t.Errorf("missing daily header, got:\n%s", result)
	}
	if !strings.Contains(result, "| AAPL | 2024-05-01 | 1.00 | 6 | +0.00 | -0.50 | 1 | 2 | 3 |") {
		t.Errorf("missing AAPL row, got:\n%s", result)
	}
	if !strings.Contains(result, "1 ticker\n") {
		t.Errorf("singular noun, got:\n%s", result)
	}
}

func TestMarkdown_Empty(t *testing.T) {
	result := Markdown("free", nil, time.Now())
	if !strings.Contains(result, "No rows.") {
		t.Errorf("got:\n%s", result)
	}
}
