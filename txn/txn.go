// Package txn exposes the public transaction handle: a thin wrapper over
// storage.Transaction that assigns each handle an identity and rejects
// operations once the handle has been committed or rolled back, since
// storage.Transaction itself has no notion of "already finished" beyond its
// own done flag.
//
// Handles are request-scoped: callers obtain a short-lived handle from a
// Manager and operate against it directly, never against the manager's own
// internals, to keep the begin/commit/rollback lifecycle explicit.
package txn

import (
	"sync"

	"github.com/google/uuid"
	"github.com/opendb-io/opendb/internal/obsmetrics"
	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/storage"
)

// Manager hands out transaction Handles over a single backend and tracks
// how many are currently open (ActiveCount). Independent handles may be open
// at the same time; nesting is ruled out structurally, since a Handle has no
// method that begins a further transaction.
type Manager struct {
	backend storage.Backend

	mu     sync.Mutex
	active map[string]*Handle
}

// New constructs a transaction Manager over backend.
func New(backend storage.Backend) *Manager {
	return &Manager{backend: backend, active: make(map[string]*Handle)}
}

// Handle is a single logical transaction: an id plus the underlying
// storage.Transaction buffer. Not safe for concurrent use by multiple
// goroutines; it represents one caller's in-flight transaction.
type Handle struct {
	id    string
	mgr   *Manager
	inner storage.Transaction
	mu    sync.Mutex
	state handleState
}

type handleState int

const (
	stateOpen handleState = iota
	stateCommitted
	stateRolledBack
)

// Begin starts a new transaction and returns its handle.
func (m *Manager) Begin() (*Handle, error) {
	inner, err := m.backend.BeginTransaction()
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Transaction, "txn.Begin", err)
	}
	h := &Handle{id: uuid.NewString(), mgr: m, inner: inner, state: stateOpen}
	m.mu.Lock()
	m.active[h.id] = h
	m.mu.Unlock()
	return h, nil
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string { return h.id }

func (h *Handle) checkOpen(op string) error {
	switch h.state {
	case stateCommitted:
		return opendberr.New(opendberr.Transaction, op, "transaction already committed")
	case stateRolledBack:
		return opendberr.New(opendberr.Transaction, op, "transaction already rolled back")
	default:
		return nil
	}
}

// Get reads key, seeing this transaction's own prior writes first.
func (h *Handle) Get(cf string, key []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen("txn.Get"); err != nil {
		return nil, err
	}
	v, err := h.inner.Get(cf, key)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "txn.Get", err)
	}
	return v, nil
}

// Put buffers a write, visible to this handle's own subsequent reads.
func (h *Handle) Put(cf string, key, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen("txn.Put"); err != nil {
		return err
	}
	if err := h.inner.Put(cf, key, value); err != nil {
		return opendberr.Wrap(opendberr.Storage, "txn.Put", err)
	}
	return nil
}

// Delete buffers a tombstone, visible to this handle's own subsequent reads.
func (h *Handle) Delete(cf string, key []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen("txn.Delete"); err != nil {
		return err
	}
	if err := h.inner.Delete(cf, key); err != nil {
		return opendberr.Wrap(opendberr.Storage, "txn.Delete", err)
	}
	return nil
}

// Commit atomically applies the buffer. On a conflict the buffer is
// discarded and the handle moves to the rolled-back state, matching
// storage.Transaction's "discarded either way" contract.
func (h *Handle) Commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen("txn.Commit"); err != nil {
		return err
	}
	err := h.inner.Commit()
	h.release()
	if err != nil {
		h.state = stateRolledBack
		obsmetrics.TransactionCommitsTotal.WithLabelValues("conflict").Inc()
		return opendberr.Wrap(opendberr.Transaction, "txn.Commit", err)
	}
	h.state = stateCommitted
	obsmetrics.TransactionCommitsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Rollback discards the buffer. A no-op if already committed or rolled
// back, matching storage.Transaction's semantics.
func (h *Handle) Rollback() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateOpen {
		return nil
	}
	err := h.inner.Rollback()
	h.state = stateRolledBack
	h.release()
	if err != nil {
		return opendberr.Wrap(opendberr.Transaction, "txn.Rollback", err)
	}
	return nil
}

func (h *Handle) release() {
	h.mgr.mu.Lock()
	delete(h.mgr.active, h.id)
	h.mgr.mu.Unlock()
}

// ActiveCount returns how many handles from this manager are neither
// committed nor rolled back. Exposed for tests and diagnostics.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
