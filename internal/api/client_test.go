package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lotas/tradersecho/internal/types"
)

func TestLoginFormEncoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "pw" {
			t.Errorf("form = %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "t1", "token_type": "bearer"})
	}))
	defer srv.Close()

	tok, err := New(srv.URL, nil).Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok != "t1" {
		t.Errorf("token = %q, want t1", tok)
	}
}

func TestSignupJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/signup" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["username"] != "bob" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Username already exists"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Signup(context.Background(), "bob", "pw")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if ae.Detail != "Username already exists" || ae.Error() != "Username already exists" {
		t.Errorf("detail = %q", ae.Detail)
	}
}

func TestLoginValidationDetailList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","username"],"msg":"field required"}]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Login(context.Background(), "", "")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Detail != "field required" {
		t.Errorf("err = %v", err)
	}
}

func TestLoginServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Login(context.Background(), "a", "b")
	if !IsTransport(err) {
		t.Errorf("err = %v, want TransportError", err)
	}
}

func TestMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"username":"alice","pro":true}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Could not validate credentials"}`))
		}
	}))
	defer srv.Close()
	c := New(srv.URL, nil)

	me, err := c.Me(context.Background(), "good")
	if err != nil || !me.Pro || me.Username != "alice" {
		t.Errorf("Me(good) = %+v, %v", me, err)
	}

	_, err = c.Me(context.Background(), "bad")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized {
		t.Errorf("Me(bad) err = %v", err)
	}
}

func TestDailyQuery(t *testing.T) {
	q := DailyQuery(types.Filter{Tickers: []string{"aapl", "$tsla", "AAPL"}, Limit: 500, Sort: "zscore", DateFrom: "2024-01-01", Page: 2})
	if got := q.Get("tickers"); got != "AAPL,TSLA" {
		t.Errorf("tickers = %q", got)
	}
	if q.Get("limit") != "100" {
		t.Errorf("limit = %q, want clamped 100", q.Get("limit"))
	}
	if q.Get("sort") != "zscore" || q.Get("date_from") != "2024-01-01" || q.Get("page") != "2" {
		t.Errorf("query = %v", q)
	}
	if q.Has("date_to") {
		t.Error("empty date_to should be omitted")
	}

	empty := DailyQuery(types.DefaultFilter())
	if empty.Has("tickers") || empty.Get("limit") != "10" || empty.Get("sort") != "interest_score" {
		t.Errorf("default query = %v", empty)
	}
}

func TestFreeDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/free/daily" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("anonymous request should carry no Authorization header")
		}
		w.Write([]byte(`[{"date":"2024-05-01","ticker":"AAPL","mentions":12,"interest_score":3.5,"zscore":1.2,"pos":5,"neg":2,"neu":5}]`))
	}))
	defer srv.Close()

	rows, err := New(srv.URL, nil).FreeDaily(context.Background(), "", types.DefaultFilter())
	if err != nil {
		t.Fatalf("FreeDaily: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r.Ticker != "AAPL" || r.InterestScore != 3.5 || r.Date != "2024-05-01" || r.ZScore == nil || *r.Pos != 5 {
		t.Errorf("row = %+v", r)
	}
}

func TestProSnapshotEntitlement(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("window") != "5m" {
				t.Errorf("window = %q", r.URL.Query().Get("window"))
			}
			w.WriteHeader(status)
			w.Write([]byte(`{"detail":"Upgrade to Pro to access this endpoint"}`))
		}))
		_, err := New(srv.URL, nil).ProSnapshot(context.Background(), "t", "5m")
		srv.Close()
		if !IsEntitlement(err) {
			t.Errorf("status %d: err = %v, want EntitlementError", status, err)
		}
	}
}

func TestProSnapshotMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker":"AAPL","mentions":1},{"ticker":"","mentions":2}]`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ProSnapshot(context.Background(), "t", "5m")
	if !IsTransport(err) || !errors.Is(err, ErrMalformedBatch) {
		t.Errorf("err = %v, want transport error wrapping ErrMalformedBatch", err)
	}
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantURL string
		wantErr string
	}{
		{"url", 200, `{"url":"https://pay.example/s/1"}`, "https://pay.example/s/1", ""},
		{"null url", 200, `{"url":null}`, "", "checkout unavailable"},
		{"detail", 400, `{"detail":"Stripe not configured"}`, "", "Stripe not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.Header.Get("Authorization") != "Bearer t" {
					t.Errorf("unexpected request %s auth=%q", r.Method, r.Header.Get("Authorization"))
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			u, err := New(srv.URL, nil).Checkout(context.Background(), "t")
			if u != tt.wantURL {
				t.Errorf("url = %q, want %q", u, tt.wantURL)
			}
			if tt.wantErr == "" && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"time":"2024-05-01T12:00:00"}`))
	}))
	defer srv.Close()

	h, err := New(srv.URL+"/", nil).Health(context.Background())
	if err != nil || !h.OK {
		t.Errorf("Health = %+v, %v", h, err)
	}
}

func TestRequestCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, nil).FreeDaily(ctx, "", types.DefaultFilter())
	if !IsTransport(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want transport error wrapping context.Canceled", err)
	}
}
