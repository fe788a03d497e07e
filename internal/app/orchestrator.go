// Package app composes the session, stream, notification and viewer
// components into the two user-facing flows. The Orchestrator is the
// only place where references cross component boundaries: it projects
// auth state into a render branch and translates user events into
// component operations.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/auth"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/notify"
	"github.com/blkluv/NFTVs/internal/platform/correlation"
	"github.com/blkluv/NFTVs/internal/stream"
	"github.com/blkluv/NFTVs/internal/viewer"
)

// View is the render branch the front of the app shows.
type View int

const (
	ViewLoading View = iota
	ViewError
	ViewUnauthenticated
	ViewAuthenticated
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewError:
		return "error"
	case ViewUnauthenticated:
		return "unauthenticated"
	case ViewAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Orchestrator sequences the creator flow: hydrate, login, create a
// stream, announce it, reveal or copy the stream key. It owns one
// stream.Controller per authenticated session; logging out discards it
// so the next session starts from a clean creation state.
type Orchestrator struct {
	auth           *auth.Manager
	streamProvider domain.StreamProvider
	dispatcher     *notify.Dispatcher
	clipboard      domain.Clipboard
	viewer         *viewer.AttachController
	clock          clockwork.Clock

	mu         sync.Mutex
	controller *stream.Controller
	statuses   []Status
}

func NewOrchestrator(
	authManager *auth.Manager,
	streamProvider domain.StreamProvider,
	dispatcher *notify.Dispatcher,
	clip domain.Clipboard,
	clock clockwork.Clock,
) *Orchestrator {
	return &Orchestrator{
		auth:           authManager,
		streamProvider: streamProvider,
		dispatcher:     dispatcher,
		clipboard:      clip,
		viewer:         viewer.NewAttachController(),
		clock:          clock,
	}
}

// RenderState projects the auth state machine onto the four render
// branches. Pure read, no I/O.
func (o *Orchestrator) RenderState() View {
	state, _ := o.auth.State()
	switch state {
	case auth.StateHydrating:
		return ViewLoading
	case auth.StateErrored:
		return ViewError
	case auth.StateAuthenticated, auth.StateLoggingOut:
		return ViewAuthenticated
	default:
		return ViewUnauthenticated
	}
}

// Identity returns the authenticated identity, if any.
func (o *Orchestrator) Identity() (domain.Identity, bool) {
	snapshot, ok := o.auth.Snapshot()
	return snapshot.Identity, ok
}

// Hydrate restores a cached session at startup.
func (o *Orchestrator) Hydrate(ctx context.Context) error {
	ctx = correlation.NewContext(ctx)
	if err := o.auth.Hydrate(ctx); err != nil {
		return err
	}
	o.syncSession()
	return nil
}

// Login runs the interactive flow. A fresh stream controller is bound
// to the new session on success.
func (o *Orchestrator) Login(ctx context.Context) error {
	ctx = correlation.NewContext(ctx)
	if err := o.auth.Login(ctx); err != nil {
		return err
	}
	o.syncSession()
	return nil
}

// Logout tears down the session and its stream controller.
func (o *Orchestrator) Logout(ctx context.Context) error {
	ctx = correlation.NewContext(ctx)
	if err := o.auth.Logout(ctx); err != nil {
		return err
	}
	o.syncSession()
	return nil
}

// syncSession aligns the per-session stream controller with the auth
// state: present while authenticated, absent otherwise.
func (o *Orchestrator) syncSession() {
	state, _ := o.auth.State()

	o.mu.Lock()
	defer o.mu.Unlock()
	switch state {
	case auth.StateAuthenticated:
		if o.controller == nil {
			o.controller = stream.NewController(o.streamProvider, o.clock)
		}
	case auth.StateUnauthenticated:
		o.controller = nil
	}
}

// StreamStatus returns the creation state for the current session.
func (o *Orchestrator) StreamStatus() (stream.Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.controller == nil {
		return stream.Status{}, false
	}
	return o.controller.Status(), true
}

// CanCreateStream reports whether the create action should be offered.
func (o *Orchestrator) CanCreateStream() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.controller != nil && o.controller.CanCreate()
}

// CreateStream creates a live stream for the authenticated session.
func (o *Orchestrator) CreateStream(ctx context.Context, name string) (domain.StreamDescriptor, error) {
	controller, err := o.sessionController()
	if err != nil {
		return domain.StreamDescriptor{}, err
	}
	return controller.Create(correlation.NewContext(ctx), name)
}

// SendAlert broadcasts the current stream. A transient dispatch failure
// lands in the self-dismissing status feed and never touches stream
// state; anything else comes back to the caller as an error.
func (o *Orchestrator) SendAlert(ctx context.Context) error {
	controller, err := o.sessionController()
	if err != nil {
		return err
	}
	descriptor, ok := controller.Descriptor()
	if !ok {
		o.pushStatus("no stream to announce yet", StatusWarn)
		return nil
	}

	if err := o.dispatcher.Dispatch(correlation.NewContext(ctx), descriptor); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Transient() {
			o.pushStatus("alert could not be delivered", StatusWarn)
			return nil
		}
		return err
	}
	o.pushStatus("alert sent to subscribers", StatusInfo)
	return nil
}

// CopyStreamKey puts the ingest key on the clipboard without ever
// rendering or logging it.
func (o *Orchestrator) CopyStreamKey() error {
	controller, err := o.sessionController()
	if err != nil {
		return err
	}
	descriptor, ok := controller.Descriptor()
	if !ok {
		return apperr.Validation("no stream key to copy yet")
	}

	if err := o.clipboard.Copy(descriptor.StreamKey); err != nil {
		slog.Warn("stream key copy failed", "error", err)
		return apperr.Internal("copying stream key", err)
	}
	o.pushStatus("stream key copied", StatusInfo)
	return nil
}

// Attach is the viewer-side event: point the player at a playback id
// and show it.
func (o *Orchestrator) Attach(playbackID string) error {
	o.viewer.SetPlaybackID(playbackID)
	return o.viewer.Attach()
}

// Viewer exposes the attach state for rendering.
func (o *Orchestrator) Viewer() *viewer.AttachController {
	return o.viewer
}

func (o *Orchestrator) sessionController() (*stream.Controller, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.controller == nil {
		return nil, apperr.Auth("not signed in", nil)
	}
	return o.controller, nil
}
