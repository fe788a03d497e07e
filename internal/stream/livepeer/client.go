// Package livepeer implements the streaming provider against the
// Livepeer Studio HTTP API.
package livepeer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/domain"
)

type Config struct {
	APIKey  string
	BaseURL string
}

// Client creates streams via POST /stream. It implements
// domain.StreamProvider.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRequest struct {
	Name string `json:"name"`
}

type createResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PlaybackID string `json:"playbackId"`
	StreamKey  string `json:"streamKey"`
	CreatedAt  int64  `json:"createdAt"`
}

// CreateStream issues exactly one creation call. The provider does not
// enforce name uniqueness; callers get a fresh stream per call.
func (c *Client) CreateStream(ctx context.Context, name string) (domain.StreamDescriptor, error) {
	body, err := json.Marshal(createRequest{Name: name})
	if err != nil {
		return domain.StreamDescriptor{}, apperr.Internal("encoding stream creation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/stream", bytes.NewReader(body))
	if err != nil {
		return domain.StreamDescriptor{}, apperr.Internal("building stream creation request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.StreamDescriptor{}, apperr.Creation("calling streaming provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.StreamDescriptor{}, apperr.Creation(
			fmt.Sprintf("streaming provider returned %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode).
			WithContext("body", string(detail))
	}

	var payload createResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.StreamDescriptor{}, apperr.Creation("decoding streaming provider response", err)
	}
	if payload.ID == "" || payload.PlaybackID == "" {
		return domain.StreamDescriptor{}, apperr.Creation("streaming provider returned incomplete stream", nil)
	}

	return domain.StreamDescriptor{
		ID:         payload.ID,
		Name:       payload.Name,
		PlaybackID: payload.PlaybackID,
		StreamKey:  payload.StreamKey,
		CreatedAt:  time.UnixMilli(payload.CreatedAt),
	}, nil
}
