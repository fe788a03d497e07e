package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/metrics"
)

type PushConfig struct {
	BaseURL string
	// ChannelKey is the hex-encoded channel signing secret. It belongs
	// to the channel, never to the logged-in creator.
	ChannelKey string
}

// PushClient sends broadcasts to the Push backend. Success is the
// explicit 204 acknowledgement and nothing else. A circuit breaker
// fails dispatches fast while the backend is down; broken dispatches
// are never retried here.
type PushClient struct {
	cfg        PushConfig
	key        []byte
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type PushOption func(*PushClient)

func WithPushHTTPClient(h *http.Client) PushOption {
	return func(c *PushClient) { c.httpClient = h }
}

func NewPushClient(cfg PushConfig, opts ...PushOption) (*PushClient, error) {
	key, err := hex.DecodeString(cfg.ChannelKey)
	if err != nil {
		return nil, fmt.Errorf("decoding channel key: %w", err)
	}

	c := &PushClient{
		cfg:        cfg,
		key:        key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "push",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.CircuitBreakerStateChanges.WithLabelValues("notify", to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("notify").Set(breakerStateValue(to))
			slog.Warn("notification circuit breaker state changed", "state", to.String())
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

type broadcastPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Type      int    `json:"type"`
	Epoch     int64  `json:"epoch"`
}

type broadcastRequest struct {
	Payload   broadcastPayload `json:"payload"`
	Signature string           `json:"signature"`
}

// SendBroadcast signs the payload with the channel key and posts it.
// Only a 204 from the backend counts as delivered.
func (c *PushClient) SendBroadcast(ctx context.Context, job domain.NotificationJob) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.send(ctx, job)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		metrics.NotificationsTotal.WithLabelValues("breaker_open").Inc()
		return apperr.Notification("notification backend unavailable", err)
	}
	return err
}

func (c *PushClient) send(ctx context.Context, job domain.NotificationJob) error {
	payload := broadcastPayload{
		ID:        job.ID.String(),
		Title:     job.Title,
		Body:      job.Body,
		Channel:   job.Channel,
		Recipient: job.Recipient,
		Type:      1, // broadcast to all channel subscribers
		Epoch:     job.CreatedAt.Unix(),
	}

	canonical, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal("encoding broadcast payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/apis/v1/payloads", bytes.NewReader(mustMarshal(broadcastRequest{
			Payload:   payload,
			Signature: c.sign(canonical),
		})))
	if err != nil {
		return apperr.Internal("building broadcast request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Notification("calling notification backend", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusNoContent {
		return apperr.Notification(
			fmt.Sprintf("notification backend returned %d, not acknowledged", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	}
	return nil
}

func (c *PushClient) sign(payload []byte) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
