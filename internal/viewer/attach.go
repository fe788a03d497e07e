// Package viewer holds the watch-side attach state: a user-entered
// playback identifier and the explicit action that gates rendering of
// the player.
package viewer

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/blkluv/NFTVs/internal/apperr"
)

// AttachController keeps the playback identifier a viewer typed and
// whether they have attached to it. Attaching is a purely local
// transition, no network involved. Once attached the flag never
// resets; attaching again with a different identifier simply points
// the player at the new stream.
type AttachController struct {
	mu         sync.Mutex
	playbackID string
	attached   bool
}

func NewAttachController() *AttachController {
	return &AttachController{}
}

// SetPlaybackID records raw user input. No validation happens here;
// the identifier is checked when the viewer attaches.
func (c *AttachController) SetPlaybackID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playbackID = id
}

func (c *AttachController) PlaybackID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playbackID
}

// Attach exposes the player render path. It fails only when the
// current playback identifier is empty after trimming.
func (c *AttachController) Attach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(c.playbackID) == "" {
		return apperr.Validation("playback id must not be empty")
	}

	c.attached = true
	slog.Info("viewer attached", "playback_id", c.playbackID)
	return nil
}

func (c *AttachController) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// ShouldRenderPlayer reports whether the player belongs on screen: the
// viewer attached and an identifier is present.
func (c *AttachController) ShouldRenderPlayer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached && strings.TrimSpace(c.playbackID) != ""
}
