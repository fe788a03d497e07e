// Package notify sends best-effort broadcast alerts about newly
// created streams. Dispatch outcomes never feed back into stream
// state; a failed broadcast is reported and forgotten.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/metrics"
)

// timestampLayout matches the human-readable form shown in the alert
// body, e.g. "May 1 2024, 12:00:00 pm".
const timestampLayout = "January 2 2006, 3:04:05 pm"

// Dispatcher derives a NotificationJob from a stream descriptor and
// hands it to the provider. Each Dispatch is independent; calling it
// twice sends two broadcasts.
type Dispatcher struct {
	provider  domain.NotificationProvider
	clock     clockwork.Clock
	channel   string
	recipient string
}

func NewDispatcher(provider domain.NotificationProvider, clock clockwork.Clock, channel, recipient string) *Dispatcher {
	return &Dispatcher{
		provider:  provider,
		clock:     clock,
		channel:   channel,
		recipient: recipient,
	}
}

// Dispatch builds and sends one broadcast for the descriptor. Any
// failure comes back as a notification-typed error; callers surface it
// as a transient status and move on.
func (d *Dispatcher) Dispatch(ctx context.Context, descriptor domain.StreamDescriptor) error {
	if descriptor.PlaybackID == "" {
		return apperr.Validation("no stream to announce")
	}

	now := d.clock.Now()
	job := domain.NotificationJob{
		ID:        uuid.New(),
		Title:     fmt.Sprintf("BubbleStreamr - Presents: %s", descriptor.Name),
		Body:      fmt.Sprintf("Playback id: %s @ %s", descriptor.PlaybackID, now.Format(timestampLayout)),
		Channel:   d.channel,
		Recipient: d.recipient,
		CreatedAt: now,
	}

	start := d.clock.Now()
	err := d.provider.SendBroadcast(ctx, job)
	metrics.NotificationDuration.Observe(d.clock.Since(start).Seconds())

	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		slog.Warn("broadcast dispatch failed",
			"job_id", job.ID,
			"stream_id", descriptor.ID,
			"error", err)
		return apperr.Notification("broadcast dispatch failed", err)
	}

	metrics.NotificationsTotal.WithLabelValues("acknowledged").Inc()
	slog.Info("broadcast dispatched", "job_id", job.ID, "stream_id", descriptor.ID)
	return nil
}
