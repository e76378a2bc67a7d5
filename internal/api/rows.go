package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotas/tradersecho/internal/types"
)

// wireRow is a row as the backend sends it. Daily rows carry date, zscore
// and pos/neg/neu; pro rows carry change_vs_avg. Older servers send
// "interest" instead of "interest_score".
type wireRow struct {
	Ticker        string   `json:"ticker"`
	InterestScore *float64 `json:"interest_score"`
	Interest      *float64 `json:"interest"`
	Mentions      int      `json:"mentions"`
	Sentiment     float64  `json:"sentiment"`
	ChangeVsAvg   float64  `json:"change_vs_avg"`
	Date          string   `json:"date"`
	ZScore        *float64 `json:"zscore"`
	Pos           *int     `json:"pos"`
	Neg           *int     `json:"neg"`
	Neu           *int     `json:"neu"`
}

// ErrMalformedBatch is wrapped by DecodeRows when a row is invalid.
var ErrMalformedBatch = errors.New("malformed batch")

// DecodeRows parses a JSON array of rows. A batch holding any invalid row
// (empty ticker or negative mentions) is rejected whole, as is a null body.
func DecodeRows(data []byte) ([]types.Row, error) {
	var wire []wireRow
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if wire == nil {
		return nil, fmt.Errorf("%w: null", ErrMalformedBatch)
	}
	rows := make([]types.Row, 0, len(wire))
	for i, w := range wire {
		if w.Ticker == "" {
			return nil, fmt.Errorf("%w: row %d has no ticker", ErrMalformedBatch, i)
		}
		if w.Mentions < 0 {
			return nil, fmt.Errorf("%w: row %d (%s) has negative mentions", ErrMalformedBatch, i, w.Ticker)
		}
		r := types.Row{
			Ticker:      w.Ticker,
			Mentions:    w.Mentions,
			Sentiment:   w.Sentiment,
			ChangeVsAvg: w.ChangeVsAvg,
			Date:        w.Date,
			ZScore:      w.ZScore,
			Pos:         w.Pos,
			Neg:         w.Neg,
			Neu:         w.Neu,
		}
		switch {
		case w.InterestScore != nil:
			r.InterestScore = *w.InterestScore
		case w.Interest != nil:
			r.InterestScore = *w.Interest
		}
		rows = append(rows, r)
	}
	return rows, nil
}
