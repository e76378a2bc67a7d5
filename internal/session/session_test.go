package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lotas/tradersecho/internal/api"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/tokenstore"
	"github.com/lotas/tradersecho/internal/types"
)

// fakeBackend answers from maps keyed by token or username.
type fakeBackend struct {
	tokens   map[string]string // username -> token
	me       map[string]api.Me // token -> identity
	meErr    error
	checkout string
}

func (f *fakeBackend) Login(_ context.Context, user, _ string) (string, error) {
	if tok, ok := f.tokens[user]; ok {
		return tok, nil
	}
	return "", &api.AuthError{Status: 400, Detail: "Incorrect username or password"}
}

func (f *fakeBackend) Signup(ctx context.Context, user, pass string) (string, error) {
	return f.Login(ctx, user, pass)
}

func (f *fakeBackend) Me(_ context.Context, token string) (api.Me, error) {
	if f.meErr != nil {
		return api.Me{}, f.meErr
	}
	me, ok := f.me[token]
	if !ok {
		return api.Me{}, &api.AuthError{Status: 401, Detail: "Could not validate credentials"}
	}
	return me, nil
}

func (f *fakeBackend) Checkout(context.Context, string) (string, error) {
	if f.checkout == "" {
		return "", api.ErrCheckoutUnavailable
	}
	return f.checkout, nil
}

func run(t *testing.T, cmd event.Cmd) event.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return cmd(context.Background())
}

func TestNewAnonymous(t *testing.T) {
	c := New(&tokenstore.Memory{}, &fakeBackend{})
	if c.State() != Anonymous || c.Start() != nil {
		t.Errorf("state = %v", c.State())
	}
	if c.Identity().Tier != types.TierAnonymous {
		t.Errorf("tier = %v", c.Identity().Tier)
	}
}

func TestStoredCredentialResolvesPro(t *testing.T) {
	store := &tokenstore.Memory{}
	store.Set("t-pro")
	c := New(store, &fakeBackend{me: map[string]api.Me{"t-pro": {Username: "alice", Pro: true}}})
	if c.State() != Pending {
		t.Fatalf("state = %v, want pending", c.State())
	}
	if !c.HandleResolved(run(t, c.Start()).(Resolved)) {
		t.Fatal("result should apply")
	}
	if c.State() != Pro || c.Identity().Tier != types.TierPro || c.Subject() != "alice" {
		t.Errorf("state = %v subject = %q", c.State(), c.Subject())
	}
}

// Login with access_token t1, /me says pro:false.
func TestLoginResolvesFree(t *testing.T) {
	store := &tokenstore.Memory{}
	c := New(store, &fakeBackend{
		tokens: map[string]string{"bob": "t1"},
		me:     map[string]api.Me{"t1": {Username: "bob", Pro: false}},
	})

	applied, next := c.HandleAuth(run(t, c.Login("bob", "pw")).(AuthResult))
	if !applied {
		t.Fatal("auth result dropped")
	}
	if store.Get() != "t1" {
		t.Errorf("store = %q, want t1 written before resolution", store.Get())
	}
	if c.State() != Pending {
		t.Errorf("state = %v, want pending", c.State())
	}
	c.HandleResolved(run(t, next).(Resolved))
	if c.State() != Free {
		t.Errorf("state = %v, want free", c.State())
	}
}

func TestLoginFailureDetailVerbatim(t *testing.T) {
	c := New(&tokenstore.Memory{}, &fakeBackend{})
	applied, next := c.HandleAuth(run(t, c.Login("nobody", "pw")).(AuthResult))
	if !applied || next != nil {
		t.Fatalf("applied=%v next=%v", applied, next != nil)
	}
	if c.State() != Anonymous {
		t.Errorf("state = %v", c.State())
	}
	if c.AuthErr() == nil || c.AuthErr().Error() != "Incorrect username or password" {
		t.Errorf("AuthErr = %v", c.AuthErr())
	}
}

func TestLoginRequiresFields(t *testing.T) {
	c := New(&tokenstore.Memory{}, &fakeBackend{})
	if c.Login("", "pw") != nil {
		t.Error("expected nil command for empty username")
	}
	if !errors.Is(c.AuthErr(), ErrMissingCredentials) {
		t.Errorf("AuthErr = %v", c.AuthErr())
	}
}

func TestStaleAuthResultDropped(t *testing.T) {
	c := New(&tokenstore.Memory{}, &fakeBackend{tokens: map[string]string{"a": "ta", "b": "tb"}})
	first := c.Login("a", "pw")
	second := c.Login("b", "pw")

	if applied, _ := c.HandleAuth(run(t, first).(AuthResult)); applied {
		t.Error("superseded login applied")
	}
	if applied, _ := c.HandleAuth(run(t, second).(AuthResult)); !applied {
		t.Error("latest login dropped")
	}
	if c.Credential() != "tb" {
		t.Errorf("credential = %q, want tb", c.Credential())
	}
}

func TestResolutionAfterLogoutDiscarded(t *testing.T) {
	store := &tokenstore.Memory{}
	store.Set("t1")
	c := New(store, &fakeBackend{me: map[string]api.Me{"t1": {Pro: true}}})
	inflight := c.Start()

	c.Logout()
	if store.Get() != "" {
		t.Error("logout must clear the store")
	}
	if c.HandleResolved(run(t, inflight).(Resolved)) {
		t.Error("resolution for logged-out credential applied")
	}
	if c.State() != Anonymous {
		t.Errorf("state = %v, want anonymous", c.State())
	}
}

func TestResolutionForOldCredentialDiscarded(t *testing.T) {
	store := &tokenstore.Memory{}
	store.Set("old")
	c := New(store, &fakeBackend{
		tokens: map[string]string{"u": "new"},
		me:     map[string]api.Me{"old": {Pro: true}, "new": {Pro: false}},
	})
	oldResolve := c.Start()
	c.Logout()
	_, newResolve := c.HandleAuth(run(t, c.Login("u", "pw")).(AuthResult))

	if c.HandleResolved(run(t, oldResolve).(Resolved)) {
		t.Error("old credential resolution applied")
	}
	c.HandleResolved(run(t, newResolve).(Resolved))
	if c.State() != Free {
		t.Errorf("state = %v, want free", c.State())
	}
}

func TestOlderRefreshDiscarded(t *testing.T) {
	store := &tokenstore.Memory{}
	store.Set("t1")
	be := &fakeBackend{me: map[string]api.Me{"t1": {Pro: false}}}
	c := New(store, be)
	older := c.Start()
	olderMsg := run(t, older).(Resolved)

	be.me["t1"] = api.Me{Pro: true}
	newer := run(t, c.Refresh()).(Resolved)

	c.HandleResolved(newer)
	if c.HandleResolved(olderMsg) {
		t.Error("older request applied after newer")
	}
	if c.State() != Pro {
		t.Errorf("state = %v, want pro", c.State())
	}
}

func TestResolveFailureRendersFree(t *testing.T) {
	store := &tokenstore.Memory{}
	store.Set("t1")
	c := New(store, &fakeBackend{meErr: &api.TransportError{Op: "me", Err: errors.New("connection refused")}})
	c.HandleResolved(run(t, c.Start()).(Resolved))

	if c.State() != Pending || !c.ResolveFailed() {
		t.Errorf("state = %v failed = %v", c.State(), c.ResolveFailed())
	}
	if c.ViewState() != Free || c.Identity().Tier != types.TierFree {
		t.Errorf("view state = %v, want free", c.ViewState())
	}
}

func TestRefreshTransportFailureKeepsTier(t *testing.T) {
	store := &tokenstore.Memory{}
	store.Set("t1")
	be := &fakeBackend{me: map[string]api.Me{"t1": {Pro: true}}}
	c := New(store, be)
	c.HandleResolved(run(t, c.Start()).(Resolved))

	be.meErr = &api.TransportError{Op: "me", Err: errors.New("timeout")}
	c.HandleResolved(run(t, c.Refresh()).(Resolved))
	if c.State() != Pro {
		t.Errorf("state = %v, want pro kept", c.State())
	}

	be.meErr = &api.AuthError{Status: 401}
	c.HandleResolved(run(t, c.Refresh()).(Resolved))
	if c.ViewState() != Free {
		t.Errorf("view state = %v, want free after rejected credential", c.ViewState())
	}
}

func TestDemoteInvalidatesInflightResolve(t *testing.T) {
	store := &tokenstore.Memory{}
	store.Set("t1")
	c := New(store, &fakeBackend{me: map[string]api.Me{"t1": {Pro: true}}})
	c.HandleResolved(run(t, c.Start()).(Resolved))
	inflight := c.Refresh()

	if c.Demote(c.Generation() + 1) {
		t.Error("demote for another generation applied")
	}
	if !c.Demote(c.Generation()) {
		t.Fatal("demote dropped")
	}
	if c.State() != Free {
		t.Errorf("state = %v, want free", c.State())
	}
	if c.HandleResolved(run(t, inflight).(Resolved)) {
		t.Error("pre-demotion /me re-promoted the identity")
	}
	if c.Demote(c.Generation()) {
		t.Error("demote from free should be a no-op")
	}
}

func TestCheckout(t *testing.T) {
	store := &tokenstore.Memory{}
	c := New(store, &fakeBackend{})
	if c.Checkout() != nil {
		t.Error("anonymous checkout should be nil")
	}
	store.Set("t1")
	c = New(store, &fakeBackend{checkout: "https://pay.example/1"})
	res := run(t, c.Checkout()).(CheckoutResult)
	if res.URL != "https://pay.example/1" || res.Err != nil || res.Gen != c.Generation() {
		t.Errorf("result = %+v", res)
	}
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "carol",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	claims, ok := ParseClaims(tok)
	if !ok {
		t.Fatal("expected JWT to parse")
	}
	if claims.Subject != "carol" || !claims.Expires.Equal(exp) {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.Expired(time.Now()) {
		t.Error("expected expired")
	}

	if _, ok := ParseClaims("opaque-token"); ok {
		t.Error("opaque token should not parse")
	}

	store := &tokenstore.Memory{}
	store.Set(tok)
	if got := New(store, &fakeBackend{}).Subject(); got != "carol" {
		t.Errorf("Subject = %q, want carol from claims", got)
	}
}
