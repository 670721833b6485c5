// Package session holds the one authenticated owner shared by every
// collection. Collections read the owner id and react to its changes; only
// sign-in and sign-out mutate it.
package session

import (
	"fmt"
	gosync "sync"

	"go.uber.org/zap"
)

// Context is the read-only view collections depend on.
type Context interface {
	// OwnerID returns "" when nobody is signed in.
	OwnerID() string
	// OnChange registers fn to run with the new owner id after every
	// change. The returned func unregisters it.
	OnChange(fn func(ownerID string)) (cancel func())
}

// Manager is the process-wide session.
type Manager struct {
	issuer *Issuer
	store  TokenStore
	log    *zap.Logger

	mu        gosync.Mutex
	owner     string
	token     string
	listeners map[int]func(string)
	next      int
}

var _ Context = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithTokenStore persists tokens issued by SignIn.
func WithTokenStore(s TokenStore) Option { return func(m *Manager) { m.store = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// NewManager creates a signed-out Manager.
func NewManager(issuer *Issuer, opts ...Option) *Manager {
	m := &Manager{issuer: issuer, log: zap.NewNop(), listeners: make(map[int]func(string))}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OwnerID implements Context.
func (m *Manager) OwnerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Token returns the current access token, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// OnChange implements Context.
func (m *Manager) OnChange(fn func(string)) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// SignIn makes ownerID the current owner and returns a fresh token.
func (m *Manager) SignIn(ownerID string) (string, error) {
	tok, _, err := m.issuer.Issue(ownerID)
	if err != nil {
		return "", err
	}
	if m.store != nil {
		if err := m.store.Save(tok); err != nil {
			return "", err
		}
	}
	m.set(ownerID, tok)
	return tok, nil
}

// Resume restores a session from tok, or from the token store when tok is "".
// It reports whether a session was restored.
func (m *Manager) Resume(tok string) (bool, error) {
	if tok == "" && m.store != nil {
		stored, err := m.store.Load()
		if err != nil {
			return false, err
		}
		tok = stored
	}
	if tok == "" {
		return false, nil
	}
	owner, err := m.issuer.Parse(tok)
	if err != nil {
		return false, fmt.Errorf("resuming session: %w", err)
	}
	m.set(owner, tok)
	return true, nil
}

// SignOut clears the owner and any stored token.
func (m *Manager) SignOut() error {
	var err error
	if m.store != nil {
		err = m.store.Clear()
	}
	m.set("", "")
	return err
}

func (m *Manager) set(owner, tok string) {
	m.mu.Lock()
	changed := m.owner != owner
	m.owner, m.token = owner, tok
	fns := make([]func(string), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	m.log.Info("session owner changed", zap.Bool("signed_in", owner != ""))
	for _, fn := range fns {
		fn(owner)
	}
}
