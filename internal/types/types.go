package types

import (
	"strings"
)

// Row is one ticker's social-interest reading. The server always sends
// complete rows; optional fields are nil when the mode does not carry them.
type Row struct {
	Ticker        string
	InterestScore float64
	Mentions      int
	Sentiment     float64 // -1..1
	ChangeVsAvg   float64 // fractional, e.g. 0.25 = +25%

	// Free (daily rollup) mode only.
	Date   string
	ZScore *float64
	Pos    *int
	Neg    *int
	Neu    *int
}

// Tier is the entitlement level of an identity.
type Tier int

const (
	TierAnonymous Tier = iota
	TierFree
	TierPro
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPro:
		return "pro"
	default:
		return "anonymous"
	}
}

// SortKey controls the ordering requested from the free daily endpoint.
type SortKey string

const (
	SortInterest SortKey = "interest_score"
	SortMentions SortKey = "mentions"
	SortZScore   SortKey = "zscore"
	SortPos      SortKey = "pos"
	SortNeg      SortKey = "neg"
	SortNeu      SortKey = "neu"
	SortTicker   SortKey = "ticker"
	SortDay      SortKey = "day"
)

// SortKeys lists the keys in picker order.
var SortKeys = []SortKey{SortInterest, SortMentions, SortZScore, SortPos, SortNeg, SortNeu, SortTicker, SortDay}

// ParseSortKey maps user input to a SortKey. "interest" is accepted as an
// alias; unknown values fall back to SortInterest.
func ParseSortKey(s string) SortKey {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "interest" {
		return SortInterest
	}
	for _, k := range SortKeys {
		if string(k) == s {
			return k
		}
	}
	return SortInterest
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Filter is the client-local query for the free channel.
type Filter struct {
	Tickers  []string
	Limit    int
	Sort     SortKey
	DateFrom string // YYYY-MM-DD, optional
	DateTo   string
	Page     int
}

// DefaultFilter returns the filter the free list starts with.
func DefaultFilter() Filter {
	return Filter{Limit: DefaultLimit, Sort: SortInterest}
}

// Normalize returns a copy with tickers upper-cased and de-duplicated, the
// limit clamped to 1..MaxLimit and an unknown sort key replaced.
func (f Filter) Normalize() Filter {
	out := f
	out.Tickers = ParseTickers(strings.Join(f.Tickers, ","))
	switch {
	case out.Limit <= 0:
		out.Limit = DefaultLimit
	case out.Limit > MaxLimit:
		out.Limit = MaxLimit
	}
	out.Sort = ParseSortKey(string(f.Sort))
	if out.Page < 0 {
		out.Page = 0
	}
	return out
}

// Equal reports whether two normalized filters request the same data.
func (f Filter) Equal(o Filter) bool {
	if f.Limit != o.Limit || f.Sort != o.Sort || f.DateFrom != o.DateFrom || f.DateTo != o.DateTo || f.Page != o.Page {
		return false
	}
	if len(f.Tickers) != len(o.Tickers) {
		return false
	}
	for i := range f.Tickers {
		if f.Tickers[i] != o.Tickers[i] {
			return false
		}
	}
	return true
}

// ParseTickers splits a comma or space separated list like "aapl, $TSLA".
func ParseTickers(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		t := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(f), "$"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
