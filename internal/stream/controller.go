// Package stream owns the create-stream state machine. A Controller
// tracks exactly one creation request at a time, from idle through
// pending to a terminal succeeded or failed phase.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/metrics"
)

// Phase is the lifecycle phase of a creation request.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the controller. Descriptor is
// meaningful only in PhaseSucceeded, Err only in PhaseFailed.
type Status struct {
	Phase      Phase
	Descriptor domain.StreamDescriptor
	Err        error
}

// Controller drives stream creation against a provider. A Create call
// arriving while another is pending supersedes it: the older call's
// context is cancelled and its result discarded. Once a stream exists
// the controller refuses further creation; callers construct a new
// Controller to start over.
type Controller struct {
	provider domain.StreamProvider
	clock    clockwork.Clock

	mu         sync.Mutex
	phase      Phase
	descriptor domain.StreamDescriptor
	lastErr    error
	generation uint64
	cancel     context.CancelFunc
}

func NewController(provider domain.StreamProvider, clock clockwork.Clock) *Controller {
	return &Controller{
		provider: provider,
		clock:    clock,
		phase:    PhaseIdle,
	}
}

// Status returns the current phase together with its payload.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Phase: c.phase, Descriptor: c.descriptor, Err: c.lastErr}
}

// Descriptor returns the created stream, if any.
func (c *Controller) Descriptor() (domain.StreamDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.descriptor, c.phase == PhaseSucceeded
}

// CanCreate reports whether a Create call would be accepted. It is
// false once a descriptor exists: one stream per controller.
func (c *Controller) CanCreate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != PhaseSucceeded
}

// Create validates the name and issues one provider call. An empty or
// whitespace-only name fails validation before any network activity.
// While a call is pending a newer Create supersedes it; the superseded
// call returns domain.ErrCreateSuperseded.
func (c *Controller) Create(ctx context.Context, name string) (domain.StreamDescriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		metrics.StreamCreationsTotal.WithLabelValues("rejected").Inc()
		return domain.StreamDescriptor{}, apperr.Validation("stream name must not be empty")
	}

	callCtx, gen, err := c.begin(ctx, name)
	if err != nil {
		return domain.StreamDescriptor{}, err
	}

	start := c.clock.Now()
	descriptor, createErr := c.provider.CreateStream(callCtx, name)
	metrics.StreamCreationDuration.Observe(c.clock.Since(start).Seconds())

	return c.resolve(gen, name, descriptor, createErr)
}

// begin transitions to pending, cancelling any in-flight request.
func (c *Controller) begin(ctx context.Context, name string) (context.Context, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseSucceeded {
		metrics.StreamCreationsTotal.WithLabelValues("rejected").Inc()
		return nil, 0, domain.ErrStreamExists
	}

	if c.cancel != nil {
		slog.Info("superseding pending stream creation", "name", name)
		c.cancel()
	}

	callCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.generation++
	c.phase = PhasePending
	c.lastErr = nil

	return callCtx, c.generation, nil
}

// resolve settles the request identified by gen, unless a newer one
// has superseded it in the meantime.
func (c *Controller) resolve(gen uint64, name string, descriptor domain.StreamDescriptor, createErr error) (domain.StreamDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		metrics.StreamCreationsTotal.WithLabelValues("superseded").Inc()
		return domain.StreamDescriptor{}, domain.ErrCreateSuperseded
	}

	c.cancel()
	c.cancel = nil

	if createErr != nil {
		c.phase = PhaseFailed
		c.lastErr = asCreationError(createErr)
		metrics.StreamCreationsTotal.WithLabelValues("failure").Inc()
		slog.Error("stream creation failed", "name", name, "error", createErr)
		return domain.StreamDescriptor{}, c.lastErr
	}

	c.phase = PhaseSucceeded
	c.descriptor = descriptor
	metrics.StreamCreationsTotal.WithLabelValues("success").Inc()
	slog.Info("stream created",
		"stream_id", descriptor.ID,
		"name", descriptor.Name,
		"playback_id", descriptor.PlaybackID)
	return descriptor, nil
}

func asCreationError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Creation("stream creation failed", err)
}
