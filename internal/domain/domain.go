package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// Identity is the wallet-linked identity issued by the identity provider.
// Immutable once issued for a session; replaced wholesale on re-login.
type Identity struct {
	Sub           string `json:"sub"`
	Name          string `json:"name,omitempty"`
	WalletAddress string `json:"wallet_address"`
	Picture       string `json:"picture,omitempty"`
}

// Authorization holds the bearer token plus the claim paths read out of it.
// Owned exclusively by the auth manager; other components only see named claims.
type Authorization struct {
	Token  string            `json:"token"`
	Expiry time.Time         `json:"expiry,omitempty"`
	Claims map[string]string `json:"claims,omitempty"`
}

// SessionSnapshot is the persisted (Identity, Authorization) pair.
type SessionSnapshot struct {
	Identity      Identity      `json:"identity"`
	Authorization Authorization `json:"authorization"`
}

// Valid reports whether the snapshot represents an authenticated session.
// A partial snapshot (identity without token or vice versa) is unauthenticated.
func (s SessionSnapshot) Valid() bool {
	return s.Identity.Sub != "" && s.Authorization.Token != ""
}

// StreamDescriptor is the live-stream resource allocated by the streaming
// provider. Created once per creation request, immutable, never persisted.
// StreamKey is sensitive: revealed only behind an explicit action, never logged.
type StreamDescriptor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PlaybackID string    `json:"playbackId"`
	StreamKey  string    `json:"streamKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NotificationJob is a one-way broadcast alert derived from a StreamDescriptor
// at dispatch time. Fire-and-forget: its outcome never affects stream state.
type NotificationJob struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	CreatedAt time.Time `json:"createdAt"`
}

// --- Interfaces ---

// SnapshotStore persists the session snapshot across process restarts.
// Read treats a missing key or malformed payload as absent, never as an error
// the caller must act on.
type SnapshotStore interface {
	Read(ctx context.Context) (SessionSnapshot, bool, error)
	Write(ctx context.Context, snapshot SessionSnapshot) error
	Clear(ctx context.Context) error
}

// IdentityProvider is the external wallet-identity service. Login is
// interactive: it suspends until the user completes or abandons the
// authorization flow, and is cancelled only through ctx.
type IdentityProvider interface {
	Login(ctx context.Context) (Identity, Authorization, error)
	Logout(ctx context.Context, auth Authorization) error
}

// StreamProvider allocates a live-video ingest/playback resource given a name.
// Name uniqueness is not enforced provider-side.
type StreamProvider interface {
	CreateStream(ctx context.Context, name string) (StreamDescriptor, error)
}

// NotificationProvider sends a one-way broadcast under a channel-level signing
// credential. A nil return means the provider explicitly acknowledged the send.
type NotificationProvider interface {
	SendBroadcast(ctx context.Context, job NotificationJob) error
}

// Clipboard copies text to the system clipboard.
type Clipboard interface {
	Copy(text string) error
}

// EllipsisAddress shortens a wallet-style address for display,
// e.g. "0xF76371C3f5B4..." becomes "0xF7...bb54" with n=4.
func EllipsisAddress(s string, n int) string {
	if s == "" {
		return ""
	}
	if len(s) <= 2*n {
		return s
	}
	return s[:n] + "..." + s[len(s)-n:]
}
