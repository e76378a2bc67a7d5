package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lotas/tradersecho/internal/api"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/reconcile"
	"github.com/lotas/tradersecho/internal/types"
)

// echoSource returns one row per requested ticker, or err.
type echoSource struct {
	err   error
	calls int
}

func (s *echoSource) FreeDaily(_ context.Context, _ string, f types.Filter) ([]types.Row, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	rows := make([]types.Row, 0, len(f.Tickers))
	for _, tk := range f.Tickers {
		rows = append(rows, types.Row{Ticker: tk, Mentions: f.Limit})
	}
	return rows, nil
}

func runCmd(t *testing.T, cmd event.Cmd) event.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return cmd(context.Background())
}

func TestFreeLastRequestWins(t *testing.T) {
	f := NewFree(&echoSource{}, types.Filter{Tickers: []string{"AAPL"}})
	first := f.Activate("")
	second := f.Load(types.Filter{Tickers: []string{"TSLA"}})
	third := f.Load(types.Filter{Tickers: []string{"GME", "NVDA"}})

	// Resolve out of order: third, first, second.
	m3 := runCmd(t, third).(FreeLoaded)
	m1 := runCmd(t, first).(FreeLoaded)
	m2 := runCmd(t, second).(FreeLoaded)

	table := reconcile.Empty()
	for _, m := range []FreeLoaded{m3, m1, m2} {
		if rows, ok := f.Handle(m); ok {
			table = reconcile.Apply(table, rows)
		}
	}
	got := table.Tickers()
	if len(got) != 2 || got[0] != "GME" || got[1] != "NVDA" {
		t.Errorf("table = %v, want result of last load only", got)
	}
	if f.Loading() {
		t.Error("still loading after newest result")
	}
}

func TestFreeFailureKeepsRows(t *testing.T) {
	src := &echoSource{}
	f := NewFree(src, types.Filter{Tickers: []string{"AAPL"}})
	rows, ok := f.Handle(runCmd(t, f.Activate("")).(FreeLoaded))
	if !ok {
		t.Fatal("initial load dropped")
	}
	table := reconcile.Apply(reconcile.Empty(), rows)

	src.err = &api.TransportError{Op: "free daily", Status: 502, Err: errors.New("bad gateway")}
	if _, ok := f.Handle(runCmd(t, f.Refresh()).(FreeLoaded)); ok {
		t.Error("failed load should not apply")
	}
	if table.Len() != 1 {
		t.Error("table lost rows")
	}
	if !api.IsTransport(f.Err()) {
		t.Errorf("Err = %v, want soft transport error", f.Err())
	}

	src.err = nil
	if _, ok := f.Handle(runCmd(t, f.Refresh()).(FreeLoaded)); !ok || f.Err() != nil {
		t.Errorf("recovery: err = %v", f.Err())
	}
}

func TestFreeDeactivateIsBarrier(t *testing.T) {
	f := NewFree(&echoSource{}, types.Filter{Tickers: []string{"AAPL"}})
	inflight := f.Activate("t1")
	f.Deactivate()

	if _, ok := f.Handle(runCmd(t, inflight).(FreeLoaded)); ok {
		t.Error("load from previous activation applied")
	}
	if f.Load(types.DefaultFilter()) != nil || f.Refresh() != nil {
		t.Error("inactive channel should not issue loads")
	}

	// A new activation does not resurrect old results either.
	next := f.Activate("t1")
	if _, ok := f.Handle(runCmd(t, inflight).(FreeLoaded)); ok {
		t.Error("old activation applied after re-activation")
	}
	if _, ok := f.Handle(runCmd(t, next).(FreeLoaded)); !ok {
		t.Error("current activation dropped")
	}
}

func TestFreeDeactivateCancelsRequest(t *testing.T) {
	block := &ctxSource{}
	f := NewFree(block, types.DefaultFilter())
	cmd := f.Activate("")
	f.Deactivate()
	msg := runCmd(t, cmd).(FreeLoaded)
	if !errors.Is(msg.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", msg.Err)
	}
}

// ctxSource blocks until its context ends.
type ctxSource struct{}

func (ctxSource) FreeDaily(ctx context.Context, _ string, _ types.Filter) ([]types.Row, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// An anonymous caller asks for AAPL and TSLA by mentions; the table holds
// exactly the two returned rows.
func TestFreeAnonymousLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tickers") != "AAPL,TSLA" || q.Get("limit") != "10" || q.Get("sort") != "mentions" {
			t.Errorf("query = %v", q)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("anonymous load sent a credential")
		}
		w.Write([]byte(`[
			{"date":"2024-05-01","ticker":"TSLA","mentions":40,"interest_score":2.1},
			{"date":"2024-05-01","ticker":"AAPL","mentions":25,"interest_score":1.4}
		]`))
	}))
	defer srv.Close()

	f := NewFree(api.New(srv.URL, nil), types.Filter{Tickers: []string{"AAPL", "TSLA"}, Limit: 10, Sort: types.SortMentions})
	rows, ok := f.Handle(runCmd(t, f.Activate("")).(FreeLoaded))
	if !ok {
		t.Fatalf("load dropped: %v", f.Err())
	}
	table := reconcile.Apply(reconcile.Empty(), rows)
	if table.Len() != 2 {
		t.Fatalf("len = %d", table.Len())
	}
	if r, _ := table.Get("TSLA"); r.Mentions != 40 || r.InterestScore != 2.1 {
		t.Errorf("TSLA = %+v", r)
	}
	if r, _ := table.Get("AAPL"); r.Mentions != 25 {
		t.Errorf("AAPL = %+v", r)
	}
	if f.UpdatedAt().IsZero() {
		t.Error("UpdatedAt not set")
	}
}
