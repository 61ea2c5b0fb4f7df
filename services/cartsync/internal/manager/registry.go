package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/services/cartsync/internal/session"
)

// ProviderFactory returns the credential provider bound to a session.
type ProviderFactory func(sessionID string) session.Provider

// Registry holds one Manager per storefront session, created on first use
// and evicted after sitting idle for longer than the idle TTL.
type Registry struct {
	service CartService
	factory ProviderFactory
	idleTTL time.Duration
	opts    []Option
	options

	mu       sync.Mutex
	managers map[string]*Manager
	closed   bool
}

// NewRegistry creates a registry. opts apply to every manager it creates.
func NewRegistry(service CartService, factory ProviderFactory, idleTTL time.Duration, opts ...Option) *Registry {
	return &Registry{
		service:  service,
		factory:  factory,
		idleTTL:  idleTTL,
		opts:     opts,
		options:  buildOptions(opts),
		managers: make(map[string]*Manager),
	}
}

// Get returns the manager for sessionID, creating it if needed. created
// reports whether the caller should Initialize it.
func (r *Registry) Get(sessionID string) (m *Manager, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrClosed
	}
	if m, ok := r.managers[sessionID]; ok && !m.Closed() {
		return m, false, nil
	}

	opts := append(append([]Option(nil), r.opts...), WithSessionID(sessionID))
	m = New(r.factory(sessionID), r.service, opts...)
	r.managers[sessionID] = m
	return m, true, nil
}

// Lookup returns the manager for sessionID without creating one.
func (r *Registry) Lookup(sessionID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[sessionID]
	return m, ok
}

// Dispose closes and forgets the manager for sessionID.
func (r *Registry) Dispose(sessionID string) bool {
	r.mu.Lock()
	m, ok := r.managers[sessionID]
	delete(r.managers, sessionID)
	r.mu.Unlock()

	if ok {
		m.Close()
	}
	return ok
}

// Len returns the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Sweep evicts managers idle for longer than the idle TTL and returns how
// many were evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Manager
	for id, m := range r.managers {
		if m.LastUsed().Before(cutoff) {
			idle = append(idle, m)
			delete(r.managers, id)
		}
	}
	r.mu.Unlock()

	for _, m := range idle {
		m.Close()
	}
	if len(idle) > 0 {
		r.logger.Debug("evicted idle cart managers", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close disposes every manager. Get fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[string]*Manager)
	r.closed = true
	r.mu.Unlock()

	for _, m := range managers {
		m.Close()
	}
}
