package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lotas/tradersecho/internal/types"
)

func TestJSON_Rows(t *testing.T) {
	z := 1.8
	pos := 12
	rows := []types.Row{
		{Ticker: "TSLA", Date: "2024-05-01", InterestScore: 2.1, Mentions: 40, ZScore: &z, Pos: &pos},
		{Ticker: "AAPL", Date: "2024-05-01", InterestScore: 1.4, Mentions: 25},
	}
	at := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	result, err := JSON("free", rows, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\noutput:\n%s", err, result)
	}
	if parsed.Mode != "free" || parsed.Count != 2 || !parsed.ExportedAt.Equal(at) {
		t.Errorf("header = %+v", parsed)
	}
	if len(parsed.Rows) != 2 || parsed.Rows[0].Ticker != "TSLA" || parsed.Rows[1].Ticker != "AAPL" {
		t.Fatalf("rows out of order: %+v", parsed.Rows)
	}
	if parsed.Rows[0].ZScore == nil || *parsed.Rows[0].ZScore != 1.8 {
		t.Errorf("zscore = %v", parsed.Rows[0].ZScore)
	}
	if parsed.Rows[1].ZScore != nil || parsed.Rows[1].Pos != nil {
		t.Error("absent optional fields should stay absent")
	}
}

func TestJSON_EmptyTable(t *testing.T) {
	result, err := JSON("pro", nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Rows == nil || len(parsed.Rows) != 0 {
		t.Errorf("rows = %v, want empty array", parsed.Rows)
	}
}

func TestRecordsRoundTripKeepsOptionalFields(t *testing.T) {
	neg := 3
	in := []types.Row{{Ticker: "GME", Sentiment: -0.4, ChangeVsAvg: 0.25, Neg: &neg}}
	out := Rows(Records(in))
	if len(out) != 1 || out[0].Ticker != "GME" || out[0].Sentiment != -0.4 || out[0].ChangeVsAvg != 0.25 {
		t.Fatalf("out = %+v", out)
	}
	if out[0].Neg == nil || *out[0].Neg != 3 || out[0].Pos != nil {
		t.Errorf("optional fields = %+v", out[0])
	}
}
