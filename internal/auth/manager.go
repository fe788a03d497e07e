// Package auth owns the login/logout life-cycle and the reconciliation of
// cached identity state with the identity provider at startup.
package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/metrics"
)

// State is the explicit session state machine. The tagged union forbids
// invalid combinations like "loading but also errored" by construction.
type State int

const (
	StateHydrating State = iota
	StateUnauthenticated
	StateLoggingIn
	StateAuthenticated
	StateLoggingOut
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoggingIn:
		return "logging_in"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging_out"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Manager drives the session state machine. At most one of hydrate, login,
// logout is in flight at a time; overlapping calls are rejected with
// domain.ErrOperationInFlight rather than queued, so field writes to the
// (Identity, Authorization) pair never interleave.
type Manager struct {
	provider domain.IdentityProvider
	store    domain.SnapshotStore
	clock    clockwork.Clock

	mu       sync.Mutex
	state    State
	snapshot domain.SessionSnapshot
	lastErr  error
	inFlight bool

	hydrateGroup singleflight.Group
}

func NewManager(provider domain.IdentityProvider, store domain.SnapshotStore, clock clockwork.Clock) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		clock:    clock,
		state:    StateHydrating,
	}
}

// State returns the current state and, in StateErrored, the error that put
// the manager there.
func (m *Manager) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.lastErr
}

// Snapshot returns the current session pair; ok is false unless authenticated.
func (m *Manager) Snapshot() (domain.SessionSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.state == StateAuthenticated
}

// Hydrate reconciles the cached session with reality once at startup. A miss
// (no cached session, a malformed one, or an unreadable store) is expected
// and lands in StateUnauthenticated without surfacing an error. Concurrent
// callers collapse onto one store read.
func (m *Manager) Hydrate(ctx context.Context) error {
	_, err, _ := m.hydrateGroup.Do("hydrate", func() (any, error) {
		if err := m.begin(StateHydrating); err != nil {
			return nil, err
		}

		snapshot, ok, err := m.store.Read(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Session store unreadable, starting unauthenticated", "error", err)
			ok = false
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.inFlight = false
		if ok {
			m.snapshot = snapshot
			m.state = StateAuthenticated
			metrics.HydrationsTotal.WithLabelValues("hit").Inc()
			slog.InfoContext(ctx, "Session hydrated from cache", "sub", snapshot.Identity.Sub)
		} else {
			m.snapshot = domain.SessionSnapshot{}
			m.state = StateUnauthenticated
			metrics.HydrationsTotal.WithLabelValues("miss").Inc()
			slog.DebugContext(ctx, "No cached session")
		}
		return nil, nil
	})
	return err
}

// Login runs the interactive authorization flow. It suspends until the user
// completes or abandons the popup; cancellation comes only through ctx. On
// success Identity and Authorization are set together and persisted; on
// failure the store is left untouched and the manager lands in StateErrored.
func (m *Manager) Login(ctx context.Context) error {
	if err := m.begin(StateLoggingIn); err != nil {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return err
	}

	identity, authorization, err := m.provider.Login(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false

	if err != nil {
		m.state = StateErrored
		m.lastErr = apperr.Auth("login failed", err)
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		slog.WarnContext(ctx, "Login failed", "error", err)
		return m.lastErr
	}

	m.snapshot = domain.SessionSnapshot{Identity: identity, Authorization: authorization}
	m.state = StateAuthenticated
	m.lastErr = nil
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	slog.InfoContext(ctx, "Logged in", "sub", identity.Sub,
		"wallet", domain.EllipsisAddress(identity.WalletAddress, 4))

	// Persistence failure does not undo an otherwise successful login; it
	// only costs the session its restart survival.
	if err := m.store.Write(ctx, m.snapshot); err != nil {
		slog.WarnContext(ctx, "Failed to persist session", "error", err)
	}
	return nil
}

// Logout invalidates the provider-side session, clears the pair, and persists
// the cleared snapshot so a later hydrate starts unauthenticated.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.begin(StateLoggingOut); err != nil {
		metrics.LogoutsTotal.WithLabelValues("rejected").Inc()
		return err
	}

	m.mu.Lock()
	authorization := m.snapshot.Authorization
	m.mu.Unlock()

	err := m.provider.Logout(ctx, authorization)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false

	if err != nil {
		m.state = StateErrored
		m.lastErr = apperr.Auth("logout failed", err)
		metrics.LogoutsTotal.WithLabelValues("failure").Inc()
		slog.WarnContext(ctx, "Logout failed", "error", err)
		return m.lastErr
	}

	m.snapshot = domain.SessionSnapshot{}
	m.state = StateUnauthenticated
	m.lastErr = nil
	metrics.LogoutsTotal.WithLabelValues("success").Inc()
	slog.InfoContext(ctx, "Logged out")

	if err := m.store.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to clear persisted session", "error", err)
	}
	return nil
}

// begin claims the single in-flight slot and moves into the transitional
// state, or rejects the call.
func (m *Manager) begin(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight {
		return domain.ErrOperationInFlight
	}
	m.inFlight = true
	m.state = next
	return nil
}
