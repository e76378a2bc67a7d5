// Package tokenstore keeps the session credential across restarts.
//
// Get, Set and Clear never fail. A durable store that hits a storage error
// logs it and keeps working from memory, retrying the database on every
// later Set or Clear.
package tokenstore

import (
	"database/sql"
	"sync"

	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/storage"
)

// Key is the credential row name.
const Key = "token"

// Store holds at most one credential. Set fully replaces the prior value.
type Store interface {
	Get() string
	Set(token string)
	Clear()
}

// Memory is a process-lifetime Store.
type Memory struct {
	mu    sync.Mutex
	token string
}

func (m *Memory) Get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Memory) Set(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *Memory) Clear() {
	m.Set("")
}

// Durable persists the credential in the SQLite credentials table and
// mirrors it in memory.
type Durable struct {
	db       *sql.DB
	mem      Memory
	mu       sync.Mutex
	degraded bool
}

// NewDurable loads the stored credential from db. A nil db, or a failed read,
// yields a degraded store that only remembers values in memory.
func NewDurable(db *sql.DB) *Durable {
	d := &Durable{db: db}
	if db == nil {
		d.degraded = true
		return d
	}
	token, err := storage.GetCredential(db, Key)
	if err != nil {
		d.degrade("tokenstore.load", err)
		return d
	}
	d.mem.Set(token)
	applog.Info("tokenstore.load", "token", applog.Mask(token))
	return d
}

func (d *Durable) Get() string {
	return d.mem.Get()
}

// Set replaces the credential. The database write is attempted even while
// degraded, so a transient failure does not leave a stale row behind.
func (d *Durable) Set(token string) {
	d.mem.Set(token)
	if d.db == nil {
		return
	}
	if err := storage.PutCredential(d.db, Key, token); err != nil {
		d.degrade("tokenstore.set", err)
		return
	}
	d.recover()
}

// Clear removes the credential, retrying the database delete while degraded.
func (d *Durable) Clear() {
	d.mem.Clear()
	if d.db == nil {
		return
	}
	if err := storage.DeleteCredential(d.db, Key); err != nil {
		d.degrade("tokenstore.clear", err)
		return
	}
	d.recover()
}

// Degraded reports whether the last storage operation failed, leaving the
// credential in memory only.
func (d *Durable) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded
}

func (d *Durable) recover() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.degraded {
		applog.Info("tokenstore.recovered")
		d.degraded = false
	}
}

func (d *Durable) degrade(event string, err error) {
	applog.Error(event, err, "fallback", "memory")
	d.mu.Lock()
	d.degraded = true
	d.mu.Unlock()
}
