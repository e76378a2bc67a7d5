// Package session owns the credential lifecycle and the identity state
// machine: Anonymous, Pending, Free and Pro.
//
// Every credential change bumps a generation counter and every /me request
// gets a sequence number. A resolution result is applied only when both
// still match, so answers for an old credential, or an older request for the
// current one, are discarded.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/lotas/tradersecho/internal/api"
	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/tokenstore"
	"github.com/lotas/tradersecho/internal/types"
)

// State is the identity state.
type State int

const (
	Anonymous State = iota
	Pending
	Free
	Pro
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Free:
		return "free"
	case Pro:
		return "pro"
	default:
		return "anonymous"
	}
}

// Backend is the part of the REST client the controller needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (string, error)
	Signup(ctx context.Context, username, password string) (string, error)
	Me(ctx context.Context, token string) (api.Me, error)
	Checkout(ctx context.Context, token string) (string, error)
}

// ErrMissingCredentials is recorded when login is attempted with an empty
// username or password.
var ErrMissingCredentials = errors.New("username and password are required")

// AuthResult is the outcome of a Login or Signup command.
type AuthResult struct {
	Seq    uint64
	Signup bool
	Token  string
	Err    error
}

// Resolved is the outcome of a /me request issued for credential generation
// Gen.
type Resolved struct {
	Gen uint64
	Seq uint64
	Me  api.Me
	Err error
}

// CheckoutResult is the outcome of a Checkout command.
type CheckoutResult struct {
	Gen uint64
	URL string
	Err error
}

// Identity is the derived tier plus the credential it was derived from.
type Identity struct {
	Tier       types.Tier
	Credential string
}

// Controller is the session state machine. It is not safe for concurrent
// use; all methods run on the event loop, and the commands they return do
// only IO.
type Controller struct {
	store   tokenstore.Store
	backend Backend
	timeout time.Duration

	token string
	state State

	gen        uint64
	resolveSeq uint64
	authSeq    uint64

	username      string
	authErr       error
	resolveErr    error
	resolveFailed bool
}

// New reads the credential from store once. A stored credential starts the
// controller in Pending; call Start to resolve it.
func New(store tokenstore.Store, backend Backend) *Controller {
	c := &Controller{store: store, backend: backend}
	c.token = store.Get()
	if c.token != "" {
		c.state = Pending
	}
	return c
}

// SetRequestTimeout bounds login, signup and checkout requests. Zero means
// unbounded.
func (c *Controller) SetRequestTimeout(d time.Duration) {
	c.timeout = d
}

// Start returns the initial resolution command, or nil when anonymous.
func (c *Controller) Start() event.Cmd {
	if c.state != Pending {
		return nil
	}
	return c.resolve()
}

// State returns the raw state.
func (c *Controller) State() State { return c.state }

// ViewState is the state used for rendering: a Pending identity whose
// resolution failed is shown as Free, never Pro.
func (c *Controller) ViewState() State {
	if c.state == Pending && c.resolveFailed {
		return Free
	}
	return c.state
}

// ResolveFailed reports whether the last resolution of the current
// credential failed.
func (c *Controller) ResolveFailed() bool { return c.resolveFailed }

// Generation returns the credential generation.
func (c *Controller) Generation() uint64 { return c.gen }

// Credential returns the cached credential, or "".
func (c *Controller) Credential() string { return c.token }

// Identity returns the current identity.
func (c *Controller) Identity() Identity {
	id := Identity{Credential: c.token}
	switch c.ViewState() {
	case Pro:
		id.Tier = types.TierPro
	case Free, Pending:
		id.Tier = types.TierFree
	default:
		id.Tier = types.TierAnonymous
	}
	return id
}

// AuthErr is the last login or signup failure, cleared on the next attempt.
func (c *Controller) AuthErr() error { return c.authErr }

// ResolveErr is the last /me failure for the current credential.
func (c *Controller) ResolveErr() error { return c.resolveErr }

// Subject returns a display name: the username reported by /me, else the
// subject claim of the credential.
func (c *Controller) Subject() string {
	if c.username != "" {
		return c.username
	}
	if claims, ok := ParseClaims(c.token); ok {
		return claims.Subject
	}
	return ""
}

// Login returns the login command. It returns nil when already signed in
// or when username or password is empty.
func (c *Controller) Login(username, password string) event.Cmd {
	return c.authenticate(username, password, false)
}

// Signup returns the signup command, with the same rules as Login.
func (c *Controller) Signup(username, password string) event.Cmd {
	return c.authenticate(username, password, true)
}

func (c *Controller) authenticate(username, password string, signup bool) event.Cmd {
	if c.state != Anonymous {
		return nil
	}
	if username == "" || password == "" {
		c.authErr = ErrMissingCredentials
		return nil
	}
	c.authErr = nil
	c.authSeq++
	seq := c.authSeq
	backend, timeout := c.backend, c.timeout
	return func(ctx context.Context) event.Msg {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		var tok string
		var err error
		if signup {
			tok, err = backend.Signup(ctx, username, password)
		} else {
			tok, err = backend.Login(ctx, username, password)
		}
		return AuthResult{Seq: seq, Signup: signup, Token: tok, Err: err}
	}
}

// HandleAuth applies a login or signup result. A result for a superseded
// attempt, or one arriving after the state left Anonymous, is dropped. On
// success the credential is stored before the state moves to Pending, and
// the returned command resolves it.
func (c *Controller) HandleAuth(r AuthResult) (applied bool, next event.Cmd) {
	if r.Seq != c.authSeq || c.state != Anonymous {
		applog.Info("session.auth.stale", "seq", r.Seq, "current", c.authSeq, "state", c.state)
		return false, nil
	}
	op := "session.login"
	if r.Signup {
		op = "session.signup"
	}
	if r.Err != nil {
		c.authErr = r.Err
		applog.Error(op, r.Err)
		return true, nil
	}
	applog.Info(op, "token", applog.Mask(r.Token))
	c.setCredential(r.Token)
	return true, c.resolve()
}

// Refresh re-resolves the current credential, e.g. after an upgrade or on
// the periodic identity poll. It returns nil when anonymous.
func (c *Controller) Refresh() event.Cmd {
	if c.token == "" {
		return nil
	}
	return c.resolve()
}

func (c *Controller) resolve() event.Cmd {
	c.resolveSeq++
	gen, seq, token, backend := c.gen, c.resolveSeq, c.token, c.backend
	return func(ctx context.Context) event.Msg {
		me, err := backend.Me(ctx, token)
		return Resolved{Gen: gen, Seq: seq, Me: me, Err: err}
	}
}

// HandleResolved applies a /me result if it belongs to the current
// credential and is the newest request for it.
//
// On failure a Pending identity stays Pending and renders as Free. A
// resolved identity keeps its tier across transport failures of the
// periodic refresh, but a rejected credential drops it back to Pending.
func (c *Controller) HandleResolved(r Resolved) bool {
	if r.Gen != c.gen || r.Seq != c.resolveSeq || c.token == "" {
		applog.Info("session.resolve.stale", "gen", r.Gen, "seq", r.Seq)
		return false
	}
	if r.Err != nil {
		c.resolveErr = r.Err
		applog.Error("session.resolve", r.Err, "state", c.state)
		var ae *api.AuthError
		if c.state == Pending || errors.As(r.Err, &ae) {
			c.state = Pending
			c.resolveFailed = true
		}
		return true
	}
	c.resolveErr = nil
	c.resolveFailed = false
	c.username = r.Me.Username
	if r.Me.Pro {
		c.state = Pro
	} else {
		c.state = Free
	}
	applog.Info("session.resolved", "state", c.state, "user", r.Me.Username)
	return true
}

// Logout clears the credential everywhere and returns to Anonymous.
// Outstanding results for the old credential become stale.
func (c *Controller) Logout() {
	if c.token == "" && c.state == Anonymous {
		return
	}
	c.store.Clear()
	c.setCredential("")
	c.authErr = nil
	applog.Info("session.logout", "gen", c.gen)
}

// Demote handles an entitlement rejection observed by the pro channel for
// credential generation gen. It moves Pro to Free and invalidates any /me
// request already in flight, so an answer computed before the rejection
// cannot promote the identity again.
func (c *Controller) Demote(gen uint64) bool {
	if gen != c.gen || c.state != Pro {
		return false
	}
	c.state = Free
	c.resolveSeq++
	applog.Info("session.demote", "gen", gen)
	return true
}

// Checkout returns the command that starts a billing checkout, or nil when
// anonymous.
func (c *Controller) Checkout() event.Cmd {
	if c.token == "" {
		return nil
	}
	gen, token, backend, timeout := c.gen, c.token, c.backend, c.timeout
	return func(ctx context.Context) event.Msg {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		u, err := backend.Checkout(ctx, token)
		return CheckoutResult{Gen: gen, URL: u, Err: err}
	}
}

func (c *Controller) setCredential(token string) {
	if token != "" {
		c.store.Set(token)
	}
	c.token = token
	c.gen++
	c.username = ""
	c.resolveErr = nil
	c.resolveFailed = false
	if token == "" {
		c.state = Anonymous
	} else {
		c.state = Pending
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
