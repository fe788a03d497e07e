package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/domain"
)

// --- Mock implementations ---

type mockProvider struct {
	loginFn  func(ctx context.Context) (domain.Identity, domain.Authorization, error)
	logoutFn func(ctx context.Context, auth domain.Authorization) error
}

func (m *mockProvider) Login(ctx context.Context) (domain.Identity, domain.Authorization, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx)
	}
	return domain.Identity{}, domain.Authorization{}, fmt.Errorf("not implemented")
}

func (m *mockProvider) Logout(ctx context.Context, auth domain.Authorization) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, auth)
	}
	return nil
}

type mockStore struct {
	mu       sync.Mutex
	snapshot domain.SessionSnapshot
	present  bool

	readErr  error
	writeErr error

	writes int
	clears int
}

func (m *mockStore) Read(context.Context) (domain.SessionSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return domain.SessionSnapshot{}, false, m.readErr
	}
	return m.snapshot, m.present, nil
}

func (m *mockStore) Write(_ context.Context, snapshot domain.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.snapshot = snapshot
	m.present = snapshot.Valid()
	m.writes++
	return nil
}

func (m *mockStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = domain.SessionSnapshot{}
	m.present = false
	m.clears++
	return nil
}

func validSnapshot() domain.SessionSnapshot {
	return domain.SessionSnapshot{
		Identity:      domain.Identity{Sub: "u1", WalletAddress: "0xabc0000000000000000000000000000000001234"},
		Authorization: domain.Authorization{Token: "t1"},
	}
}

func newTestManager(provider domain.IdentityProvider, store domain.SnapshotStore) *Manager {
	return NewManager(provider, store, clockwork.NewFakeClock())
}

// --- Hydrate ---

func TestHydrate_MissStartsUnauthenticated(t *testing.T) {
	m := newTestManager(&mockProvider{}, &mockStore{})

	require.NoError(t, m.Hydrate(context.Background()))

	state, err := m.State()
	assert.Equal(t, StateUnauthenticated, state)
	assert.NoError(t, err)

	_, ok := m.Snapshot()
	assert.False(t, ok)
}

func TestHydrate_HitRestoresSession(t *testing.T) {
	store := &mockStore{snapshot: validSnapshot(), present: true}
	m := newTestManager(&mockProvider{}, store)

	require.NoError(t, m.Hydrate(context.Background()))

	state, _ := m.State()
	assert.Equal(t, StateAuthenticated, state)

	snapshot, ok := m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, validSnapshot(), snapshot)
}

func TestHydrate_StoreErrorSwallowed(t *testing.T) {
	store := &mockStore{readErr: errors.New("disk on fire")}
	m := newTestManager(&mockProvider{}, store)

	require.NoError(t, m.Hydrate(context.Background()))

	state, err := m.State()
	assert.Equal(t, StateUnauthenticated, state)
	assert.NoError(t, err)
}

// --- Login ---

func TestLogin_SuccessPersistsPair(t *testing.T) {
	store := &mockStore{}
	provider := &mockProvider{
		loginFn: func(context.Context) (domain.Identity, domain.Authorization, error) {
			return validSnapshot().Identity, validSnapshot().Authorization, nil
		},
	}
	m := newTestManager(provider, store)
	require.NoError(t, m.Hydrate(context.Background()))

	require.NoError(t, m.Login(context.Background()))

	state, _ := m.State()
	assert.Equal(t, StateAuthenticated, state)

	stored, present, _ := store.Read(context.Background())
	require.True(t, present)
	assert.Equal(t, validSnapshot(), stored)
}

func TestLogin_FailureLeavesStoreUntouched(t *testing.T) {
	store := &mockStore{}
	provider := &mockProvider{
		loginFn: func(context.Context) (domain.Identity, domain.Authorization, error) {
			return domain.Identity{}, domain.Authorization{}, errors.New("user closed popup")
		},
	}
	m := newTestManager(provider, store)
	require.NoError(t, m.Hydrate(context.Background()))

	err := m.Login(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeAuth))

	state, stateErr := m.State()
	assert.Equal(t, StateErrored, state)
	assert.Error(t, stateErr)

	assert.Zero(t, store.writes)
	assert.Zero(t, store.clears)
}

func TestLogin_RecoverableAfterError(t *testing.T) {
	calls := 0
	provider := &mockProvider{
		loginFn: func(context.Context) (domain.Identity, domain.Authorization, error) {
			calls++
			if calls == 1 {
				return domain.Identity{}, domain.Authorization{}, errors.New("popup abandoned")
			}
			return validSnapshot().Identity, validSnapshot().Authorization, nil
		},
	}
	m := newTestManager(provider, &mockStore{})
	require.NoError(t, m.Hydrate(context.Background()))

	require.Error(t, m.Login(context.Background()))
	require.NoError(t, m.Login(context.Background()))

	state, err := m.State()
	assert.Equal(t, StateAuthenticated, state)
	assert.NoError(t, err)
}

func TestLogin_RejectsOverlappingCalls(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	provider := &mockProvider{
		loginFn: func(ctx context.Context) (domain.Identity, domain.Authorization, error) {
			close(started)
			<-release
			return validSnapshot().Identity, validSnapshot().Authorization, nil
		},
	}
	m := newTestManager(provider, &mockStore{})
	require.NoError(t, m.Hydrate(context.Background()))

	done := make(chan error, 1)
	go func() { done <- m.Login(context.Background()) }()
	<-started

	err := m.Login(context.Background())
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)

	err = m.Logout(context.Background())
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)

	close(release)
	require.NoError(t, <-done)

	state, _ := m.State()
	assert.Equal(t, StateAuthenticated, state)
}

func TestLogin_AbandonedLoginLeavesManagerResponsive(t *testing.T) {
	provider := &mockProvider{
		loginFn: func(ctx context.Context) (domain.Identity, domain.Authorization, error) {
			<-ctx.Done()
			return domain.Identity{}, domain.Authorization{}, ctx.Err()
		},
	}
	m := newTestManager(provider, &mockStore{})
	require.NoError(t, m.Hydrate(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Login(ctx) }()
	cancel()
	require.Error(t, <-done)

	// A fresh login must be possible after the stale one resolved.
	provider.loginFn = func(context.Context) (domain.Identity, domain.Authorization, error) {
		return validSnapshot().Identity, validSnapshot().Authorization, nil
	}
	require.NoError(t, m.Login(context.Background()))
}

// --- Logout ---

func TestLogout_ClearsAndPersists(t *testing.T) {
	store := &mockStore{snapshot: validSnapshot(), present: true}
	m := newTestManager(&mockProvider{}, store)
	require.NoError(t, m.Hydrate(context.Background()))

	require.NoError(t, m.Logout(context.Background()))

	state, _ := m.State()
	assert.Equal(t, StateUnauthenticated, state)

	_, present, _ := store.Read(context.Background())
	assert.False(t, present)
	assert.Equal(t, 1, store.clears)
}

func TestLogout_ProviderFailureErrors(t *testing.T) {
	store := &mockStore{snapshot: validSnapshot(), present: true}
	provider := &mockProvider{
		logoutFn: func(context.Context, domain.Authorization) error {
			return errors.New("revocation rejected")
		},
	}
	m := newTestManager(provider, store)
	require.NoError(t, m.Hydrate(context.Background()))

	err := m.Logout(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeAuth))

	state, _ := m.State()
	assert.Equal(t, StateErrored, state)
}

func TestLogout_PassesCurrentAuthorizationToProvider(t *testing.T) {
	var seen domain.Authorization
	store := &mockStore{snapshot: validSnapshot(), present: true}
	provider := &mockProvider{
		logoutFn: func(_ context.Context, auth domain.Authorization) error {
			seen = auth
			return nil
		},
	}
	m := newTestManager(provider, store)
	require.NoError(t, m.Hydrate(context.Background()))

	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, "t1", seen.Token)
}

// --- Scenario from the original flow ---

func TestScenario_ColdStartThenLogin(t *testing.T) {
	store := &mockStore{}
	provider := &mockProvider{
		loginFn: func(context.Context) (domain.Identity, domain.Authorization, error) {
			return domain.Identity{Sub: "u1", WalletAddress: "0xabc0000000000000000000000000000000001234"},
				domain.Authorization{Token: "t1"}, nil
		},
	}
	m := newTestManager(provider, store)

	require.NoError(t, m.Hydrate(context.Background()))
	state, _ := m.State()
	require.Equal(t, StateUnauthenticated, state)

	require.NoError(t, m.Login(context.Background()))
	state, _ = m.State()
	require.Equal(t, StateAuthenticated, state)

	stored, present, err := store.Read(context.Background())
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, "u1", stored.Identity.Sub)
	assert.Equal(t, "t1", stored.Authorization.Token)
}
