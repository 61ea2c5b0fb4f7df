// Package manager keeps a session's cart state consistent with the cart API.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/cartsync/internal/domain"
	"github.com/utafrali/storefront/services/cartsync/internal/session"
)

// ErrClosed is returned by remote operations on a closed manager.
var ErrClosed = errors.New("cart manager closed")

// CartService is the remote cart API.
type CartService interface {
	FetchCart(ctx context.Context, cred *session.Credential) (*domain.ServerCart, error)
	AddItem(ctx context.Context, cred *session.Credential, add domain.AddRequest) error
}

// Manager owns one session's cart state. Local operations are applied
// synchronously under a lock; network calls run outside it. Each sync takes
// a generation number and a completion older than the newest applied one is
// discarded, so a slow response never overwrites a newer one. There is no
// automatic retry.
type Manager struct {
	provider session.Provider
	service  CartService
	options

	mu       sync.Mutex
	state    domain.State
	gen      uint64
	applied  uint64
	pending  map[uint64]struct{}
	closed   bool
	subs     map[int]chan domain.State
	nextSub  int
	lastUsed time.Time
}

// New creates a manager in the initial empty, loading state. Call
// Initialize to perform the first sync.
func New(provider session.Provider, service CartService, opts ...Option) *Manager {
	o := buildOptions(opts)
	if o.sessionID != "" {
		o.logger = o.logger.With(slog.String("session_id", o.sessionID))
	}
	return &Manager{
		provider: provider,
		service:  service,
		options:  o,
		state:    domain.Initial(),
		pending:  make(map[uint64]struct{}),
		subs:     make(map[int]chan domain.State),
		lastUsed: o.now(),
	}
}

// Initialize performs the first fetch-and-replace.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.sync(ctx)
}

// Refresh re-pulls the authoritative cart. Errors are also recorded in the
// state; prior lines are left untouched on failure.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.sync(ctx)
}

// AddRemote posts an addition to the cart API and, on success, refreshes
// with the same credential. It reports whether the add was accepted; a
// failure of the follow-up refresh is recorded in the state only.
func (m *Manager) AddRemote(ctx context.Context, add domain.AddRequest) (bool, error) {
	gen, err := m.begin()
	if err != nil {
		return false, err
	}

	cred, err := m.credential(ctx, gen)
	if err != nil {
		return false, err
	}

	if err := m.service.AddItem(ctx, cred, add); err != nil {
		return false, m.fail(ctx, gen, domain.AsError(err))
	}

	// The follow-up refresh is a new sync: it must win over any refresh
	// that started while the add was in flight.
	gen, ok := m.reissue(gen)
	if !ok {
		return true, nil
	}
	if err := m.fetch(ctx, gen, cred); err != nil {
		logger.WithContext(ctx, m.logger).WarnContext(ctx, "refresh after add failed",
			slog.String("product_id", add.ProductID),
			slog.String("error", err.Error()),
		)
	}
	return true, nil
}

// AddLocal merges quantity units of p into the cart without a network call.
func (m *Manager) AddLocal(p domain.Product, quantity int, size, color string) domain.State {
	return m.dispatch(domain.AddItem{Product: p, Quantity: quantity, Size: size, Color: color})
}

// RemoveLocal removes the line with key.
func (m *Manager) RemoveLocal(key domain.LineKey) domain.State {
	return m.dispatch(domain.RemoveItem{Key: key})
}

// UpdateQuantityLocal sets a line's quantity. Zero or less removes the line.
func (m *Manager) UpdateQuantityLocal(key domain.LineKey, quantity int) domain.State {
	return m.dispatch(domain.UpdateQuantity{Key: key, Quantity: quantity})
}

// ClearLocal empties the cart, keeping the server cart id.
func (m *Manager) ClearLocal() domain.State {
	return m.dispatch(domain.Clear{})
}

// IncreaseCount adds n to the optimistic badge overlay.
func (m *Manager) IncreaseCount(n int) domain.State {
	return m.dispatch(domain.IncreaseCount{N: n})
}

// DecreaseCount subtracts n from the optimistic badge overlay.
func (m *Manager) DecreaseCount(n int) domain.State {
	return m.dispatch(domain.DecreaseCount{N: n})
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Snapshot()
}

// Reset tears the cart down to empty, as on logout. Syncs in flight are
// discarded when they complete.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.gen++
	m.applied = m.gen
	clear(m.pending)
	m.setLocked(domain.Reduce(m.state, domain.Reset{}))
}

// Close disposes the manager. Later local operations are no-ops and remote
// operations return ErrClosed. Subscriber channels are closed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}

// Closed reports whether Close has been called.
func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// LastUsed is the time of the most recent operation.
func (m *Manager) LastUsed() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUsed
}

// Subscribe returns a channel receiving a snapshot after every transition.
// A slow subscriber only sees the latest snapshot. The returned func
// unsubscribes; the channel is closed either way on Close.
func (m *Manager) Subscribe() (<-chan domain.State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan domain.State, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			close(c)
			delete(m.subs, id)
		}
	}
}

func (m *Manager) sync(ctx context.Context) error {
	gen, err := m.begin()
	if err != nil {
		return err
	}
	cred, err := m.credential(ctx, gen)
	if err != nil {
		return err
	}
	return m.fetch(ctx, gen, cred)
}

// begin issues a generation and enters Loading.
func (m *Manager) begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.gen++
	m.pending[m.gen] = struct{}{}
	m.setLocked(domain.Reduce(m.state, domain.BeginLoading{}))
	return m.gen, nil
}

// reissue retires gen and issues a fresh generation for a follow-up sync.
// It fails when gen was discarded by Reset or the manager was closed.
func (m *Manager) reissue(gen uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[gen]; !ok || m.closed {
		return 0, false
	}
	delete(m.pending, gen)
	m.gen++
	m.pending[m.gen] = struct{}{}
	return m.gen, true
}

// credential asks the provider for a credential. A missing credential is
// AuthRequired; a provider failure is a NetworkFailure.
func (m *Manager) credential(ctx context.Context, gen uint64) (*session.Credential, error) {
	cred, err := m.provider.Session(ctx)
	if err != nil {
		return nil, m.fail(ctx, gen, domain.NetworkFailure(fmt.Errorf("session provider: %w", err)))
	}
	if cred == nil {
		return nil, m.fail(ctx, gen, domain.AuthRequired(""))
	}
	return cred, nil
}

func (m *Manager) fetch(ctx context.Context, gen uint64, cred *session.Credential) error {
	cart, err := m.service.FetchCart(ctx, cred)
	if err != nil {
		return m.fail(ctx, gen, domain.AsError(err))
	}

	state, ok := m.complete(gen, domain.ReplaceFrom(cart, m.now()))
	if !ok {
		return nil
	}

	log := logger.WithContext(ctx, m.logger)
	log.DebugContext(ctx, "cart synced",
		slog.String("cart_id", state.CartID),
		slog.Int("lines", len(state.Lines)),
		slog.Int("item_count", state.ItemCount),
	)
	if m.notifier != nil {
		if err := m.notifier.CartSynced(context.WithoutCancel(ctx), cred.SessionID, state); err != nil {
			log.WarnContext(ctx, "cart sync notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// fail records e for generation gen and returns it.
func (m *Manager) fail(ctx context.Context, gen uint64, e *domain.Error) error {
	if _, ok := m.complete(gen, domain.Fail{Err: e}); ok {
		logger.WithContext(ctx, m.logger).WarnContext(ctx, "cart sync failed",
			slog.String("kind", string(e.Kind)),
			slog.String("error", e.Error()),
		)
	}
	return e
}

// complete applies the outcome of generation gen unless a newer generation
// has already been applied. Loading stays set while other syncs are pending.
func (m *Manager) complete(gen uint64, a domain.Action) (domain.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, wasPending := m.pending[gen]
	delete(m.pending, gen)

	if m.closed || gen < m.applied {
		if wasPending && !m.closed && len(m.pending) == 0 {
			m.settleLocked()
		}
		m.logger.Debug("discarding stale cart sync",
			slog.Uint64("generation", gen),
			slog.Uint64("applied", m.applied),
		)
		return domain.State{}, false
	}

	m.applied = gen
	s := domain.Reduce(m.state, a)
	if len(m.pending) > 0 {
		s.Loading = true
		s.Status = domain.StatusLoading
	}
	m.setLocked(s)
	return s.Snapshot(), true
}

// settleLocked leaves Loading once nothing is pending, restoring the status
// of the last applied outcome. m.mu must be held.
func (m *Manager) settleLocked() {
	if !m.state.Loading {
		return
	}
	s := m.state
	s.Loading = false
	if s.Status == domain.StatusLoading {
		s.Status = domain.StatusReady
		if s.Err != nil {
			s.Status = domain.StatusError
		}
	}
	m.setLocked(s)
}

// dispatch applies a local action. It is a no-op once closed.
func (m *Manager) dispatch(a domain.Action) domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.setLocked(domain.Reduce(m.state, a))
	}
	return m.state.Snapshot()
}

// setLocked installs s and fans it out to subscribers. m.mu must be held.
func (m *Manager) setLocked(s domain.State) {
	m.state = s
	m.lastUsed = m.now()
	for _, ch := range m.subs {
		snap := s.Snapshot()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
