package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/tradersecho/internal/types"
)

// Record is the JSON form of a row, shared by exports and stored snapshots.
type Record struct {
	Ticker        string   `json:"ticker"`
	Date          string   `json:"date,omitempty"`
	InterestScore float64  `json:"interest_score"`
	Mentions      int      `json:"mentions"`
	Sentiment     float64  `json:"sentiment"`
	ChangeVsAvg   float64  `json:"change_vs_avg"`
	ZScore        *float64 `json:"zscore,omitempty"`
	Pos           *int     `json:"pos,omitempty"`
	Neg           *int     `json:"neg,omitempty"`
	Neu           *int     `json:"neu,omitempty"`
}

type jsonExport struct {
	Mode       string    `json:"mode"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Rows       []Record  `json:"rows"`
}

// Records converts rows to their JSON form, keeping order.
func Records(rows []types.Row) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			Ticker:        r.Ticker,
			Date:          r.Date,
			InterestScore: r.InterestScore,
			Mentions:      r.Mentions,
			Sentiment:     r.Sentiment,
			ChangeVsAvg:   r.ChangeVsAvg,
			ZScore:        r.ZScore,
			Pos:           r.Pos,
			Neg:           r.Neg,
			Neu:           r.Neu,
		})
	}
	return out
}

// Rows converts records back to rows.
func Rows(recs []Record) []types.Row {
	out := make([]types.Row, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.Row{
			Ticker:        r.Ticker,
			Date:          r.Date,
			InterestScore: r.InterestScore,
			Mentions:      r.Mentions,
			Sentiment:     r.Sentiment,
			ChangeVsAvg:   r.ChangeVsAvg,
			ZScore:        r.ZScore,
			Pos:           r.Pos,
			Neg:           r.Neg,
			Neu:           r.Neu,
		})
	}
	return out
}

// JSON formats a table as a JSON document.
func JSON(mode string, rows []types.Row, at time.Time) (string, error) {
	out := jsonExport{
		Mode:       mode,
		ExportedAt: at,
		Count:      len(rows),
		Rows:       Records(rows),
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
