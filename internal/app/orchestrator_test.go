package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/auth"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/notify"
	"github.com/blkluv/NFTVs/internal/stream"
)

// --- Mock implementations ---

type mockIdentityProvider struct {
	loginErr  error
	logoutErr error
}

func (m *mockIdentityProvider) Login(context.Context) (domain.Identity, domain.Authorization, error) {
	if m.loginErr != nil {
		return domain.Identity{}, domain.Authorization{}, m.loginErr
	}
	return domain.Identity{Sub: "u1", Name: "creator.nft", WalletAddress: "0xabc0000000000000000000000000000000001234"},
		domain.Authorization{Token: "t1"}, nil
}

func (m *mockIdentityProvider) Logout(context.Context, domain.Authorization) error {
	return m.logoutErr
}

type memoryStore struct {
	snapshot domain.SessionSnapshot
	present  bool
}

func (m *memoryStore) Read(context.Context) (domain.SessionSnapshot, bool, error) {
	return m.snapshot, m.present, nil
}

func (m *memoryStore) Write(_ context.Context, s domain.SessionSnapshot) error {
	m.snapshot, m.present = s, s.Valid()
	return nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.snapshot, m.present = domain.SessionSnapshot{}, false
	return nil
}

type mockStreamProvider struct {
	calls    int
	err      error
	createFn func(name string) domain.StreamDescriptor
}

func (m *mockStreamProvider) CreateStream(_ context.Context, name string) (domain.StreamDescriptor, error) {
	m.calls++
	if m.err != nil {
		return domain.StreamDescriptor{}, m.err
	}
	if m.createFn != nil {
		return m.createFn(name), nil
	}
	return domain.StreamDescriptor{ID: "s1", Name: name, PlaybackID: "pb1", StreamKey: "sk1"}, nil
}

type mockNotificationProvider struct {
	jobs []domain.NotificationJob
	err  error
}

func (m *mockNotificationProvider) SendBroadcast(_ context.Context, job domain.NotificationJob) error {
	m.jobs = append(m.jobs, job)
	return m.err
}

type recordingClipboard struct {
	copied []string
	err    error
}

func (c *recordingClipboard) Copy(text string) error {
	if c.err != nil {
		return c.err
	}
	c.copied = append(c.copied, text)
	return nil
}

type harness struct {
	orchestrator *Orchestrator
	idp          *mockIdentityProvider
	store        *memoryStore
	streams      *mockStreamProvider
	broadcasts   *mockNotificationProvider
	clipboard    *recordingClipboard
	clock        *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		idp:        &mockIdentityProvider{},
		store:      &memoryStore{},
		streams:    &mockStreamProvider{},
		broadcasts: &mockNotificationProvider{},
		clipboard:  &recordingClipboard{},
		clock:      clockwork.NewFakeClock(),
	}
	manager := auth.NewManager(h.idp, h.store, h.clock)
	dispatcher := notify.NewDispatcher(h.broadcasts, h.clock, "0xchannel", "eip155:5:0xeveryone")
	h.orchestrator = NewOrchestrator(manager, h.streams, dispatcher, h.clipboard, h.clock)
	return h
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, h.orchestrator.Hydrate(context.Background()))
	require.NoError(t, h.orchestrator.Login(context.Background()))
}

// --- Render projection ---

func TestRenderState_Projection(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ViewLoading, h.orchestrator.RenderState())

	require.NoError(t, h.orchestrator.Hydrate(context.Background()))
	assert.Equal(t, ViewUnauthenticated, h.orchestrator.RenderState())

	require.NoError(t, h.orchestrator.Login(context.Background()))
	assert.Equal(t, ViewAuthenticated, h.orchestrator.RenderState())

	identity, ok := h.orchestrator.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", identity.Sub)

	require.NoError(t, h.orchestrator.Logout(context.Background()))
	assert.Equal(t, ViewUnauthenticated, h.orchestrator.RenderState())
}

func TestRenderState_LoginFailureShowsError(t *testing.T) {
	h := newHarness(t)
	h.idp.loginErr = errors.New("popup closed")

	require.NoError(t, h.orchestrator.Hydrate(context.Background()))
	require.Error(t, h.orchestrator.Login(context.Background()))

	assert.Equal(t, ViewError, h.orchestrator.RenderState())
}

func TestRenderState_CachedSessionSkipsLogin(t *testing.T) {
	h := newHarness(t)
	h.store.snapshot = domain.SessionSnapshot{
		Identity:      domain.Identity{Sub: "u1"},
		Authorization: domain.Authorization{Token: "t1"},
	}
	h.store.present = true

	require.NoError(t, h.orchestrator.Hydrate(context.Background()))
	assert.Equal(t, ViewAuthenticated, h.orchestrator.RenderState())
	assert.True(t, h.orchestrator.CanCreateStream())
}

// --- Creator flow ---

func TestCreateStream_RequiresSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orchestrator.Hydrate(context.Background()))

	_, err := h.orchestrator.CreateStream(context.Background(), "My Show")
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeAuth))
	assert.Zero(t, h.streams.calls)
}

func TestCreatorFlow_CreateAnnounceCopy(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	require.True(t, h.orchestrator.CanCreateStream())

	descriptor, err := h.orchestrator.CreateStream(context.Background(), "My Show")
	require.NoError(t, err)
	assert.Equal(t, "pb1", descriptor.PlaybackID)

	// Creation succeeded, the create action goes away.
	assert.False(t, h.orchestrator.CanCreateStream())
	status, ok := h.orchestrator.StreamStatus()
	require.True(t, ok)
	assert.Equal(t, stream.PhaseSucceeded, status.Phase)

	require.NoError(t, h.orchestrator.SendAlert(context.Background()))
	require.Len(t, h.broadcasts.jobs, 1)
	assert.Contains(t, h.broadcasts.jobs[0].Title, "My Show")
	assert.Contains(t, h.broadcasts.jobs[0].Body, "pb1")

	require.NoError(t, h.orchestrator.CopyStreamKey())
	assert.Equal(t, []string{"sk1"}, h.clipboard.copied)
}

func TestSendAlert_FailureIsTransientAndLeavesStreamAlone(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.broadcasts.err = errors.New("backend down")

	_, err := h.orchestrator.CreateStream(context.Background(), "My Show")
	require.NoError(t, err)
	before, _ := h.orchestrator.StreamStatus()

	// A transient failure never surfaces as an error, only as a status.
	require.NoError(t, h.orchestrator.SendAlert(context.Background()))

	after, _ := h.orchestrator.StreamStatus()
	assert.Equal(t, before, after)

	statuses := h.orchestrator.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusWarn, statuses[0].Level)
	assert.True(t, strings.Contains(statuses[0].Text, "alert"))
}

func TestSendAlert_WithoutStreamWarnsWithoutSending(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	require.NoError(t, h.orchestrator.SendAlert(context.Background()))

	assert.Empty(t, h.broadcasts.jobs)
	require.Len(t, h.orchestrator.Statuses(), 1)
}

func TestSendAlert_NonTransientFailureSurfacesAsError(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.streams.createFn = func(name string) domain.StreamDescriptor {
		return domain.StreamDescriptor{ID: "s1", Name: name, StreamKey: "sk1"}
	}

	_, err := h.orchestrator.CreateStream(context.Background(), "My Show")
	require.NoError(t, err)

	// A descriptor without a playback id fails dispatch validation, which
	// is not a transient outcome: no status, a returned error instead.
	err = h.orchestrator.SendAlert(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeValidation))
	assert.Empty(t, h.broadcasts.jobs)
	assert.Empty(t, h.orchestrator.Statuses())
}

func TestSendAlert_WithoutSessionReturnsAuthError(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orchestrator.Hydrate(context.Background()))

	err := h.orchestrator.SendAlert(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeAuth))
	assert.Empty(t, h.broadcasts.jobs)
}

func TestCopyStreamKey_BeforeCreationFails(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	err := h.orchestrator.CopyStreamKey()
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeValidation))
	assert.Empty(t, h.clipboard.copied)
}

func TestLogout_GivesNextSessionAFreshController(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	_, err := h.orchestrator.CreateStream(context.Background(), "My Show")
	require.NoError(t, err)
	assert.False(t, h.orchestrator.CanCreateStream())

	require.NoError(t, h.orchestrator.Logout(context.Background()))
	assert.False(t, h.orchestrator.CanCreateStream())

	require.NoError(t, h.orchestrator.Login(context.Background()))
	assert.True(t, h.orchestrator.CanCreateStream())

	_, err = h.orchestrator.CreateStream(context.Background(), "Second Show")
	require.NoError(t, err)
	assert.Equal(t, 2, h.streams.calls)
}

// --- Statuses ---

func TestStatuses_SelfDismiss(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	_, err := h.orchestrator.CreateStream(context.Background(), "My Show")
	require.NoError(t, err)
	require.NoError(t, h.orchestrator.SendAlert(context.Background()))
	require.Len(t, h.orchestrator.Statuses(), 1)

	h.clock.Advance(statusTTL + time.Second)
	assert.Empty(t, h.orchestrator.Statuses())
}

// --- Viewer flow ---

func TestAttach_GatesPlayerRendering(t *testing.T) {
	h := newHarness(t)

	err := h.orchestrator.Attach("")
	require.Error(t, err)
	assert.False(t, h.orchestrator.Viewer().ShouldRenderPlayer())

	require.NoError(t, h.orchestrator.Attach("pb1"))
	assert.True(t, h.orchestrator.Viewer().ShouldRenderPlayer())
	assert.Equal(t, "pb1", h.orchestrator.Viewer().PlaybackID())
}
