package capture

import (
	"context"
	"sync"
)

// Modal is one capture UI instance. It never runs two sessions at once:
// opening a new session closes the previous one first.
type Modal struct {
	source StreamSource
	loader ModelLoader
	cfg    Config

	openMu sync.Mutex
	mu     sync.Mutex
	active *Session
}

func NewModal(source StreamSource, loader ModelLoader, cfg Config) *Modal {
	return &Modal{
		source: source,
		loader: loader,
		cfg:    cfg,
	}
}

func (m *Modal) Open(ctx context.Context, cb Callbacks) *Session {
	m.openMu.Lock()
	defer m.openMu.Unlock()

	m.mu.Lock()
	prev := m.active
	m.active = nil
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	s := Open(ctx, m.source, m.loader, m.cfg, cb)

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
	return s
}

// Active returns the current session, or nil once it has finished.
func (m *Modal) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	select {
	case <-m.active.Done():
		return nil
	default:
		return m.active
	}
}

// Capture triggers a manual capture on the active session.
func (m *Modal) Capture() error {
	s := m.Active()
	if s == nil {
		return ErrSessionClosed
	}
	return s.Capture()
}

func (m *Modal) Close() {
	m.mu.Lock()
	s := m.active
	m.active = nil
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
}
