// Package idp implements the UAuth-style identity provider client: an
// interactive browser login, token exchange, claim extraction, and
// provider-side logout.
package idp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/browser"

	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/platform/retry"
)

const (
	authorizePath = "/oauth2/auth"
	tokenPath     = "/oauth2/token"
	userInfoPath  = "/userinfo"
	revokePath    = "/oauth2/revoke"

	httpCallTimeout = 10 * time.Second
)

// Config identifies this client to the identity provider.
type Config struct {
	ClientID    string
	RedirectURI string
	// Scope is space-delimited; recognized scopes include "openid", "wallet",
	// and optional profile/social scopes. A scope the user did not grant just
	// means the corresponding claim is absent.
	Scope   string
	BaseURL string
}

// Client drives the interactive authorization flow. It satisfies
// domain.IdentityProvider.
type Client struct {
	cfg     Config
	httpc   *http.Client
	openURL func(url string) error
}

var _ domain.IdentityProvider = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.RedirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("redirect URI must be an absolute URL, got %q", cfg.RedirectURI)
	}

	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: httpCallTimeout},
		openURL: browser.OpenURL,
	}, nil
}

// Login runs the popup flow: it opens the provider's authorization page in
// the system browser and suspends until the loopback callback receives the
// redirect or ctx is cancelled. There is no programmatic timeout; only the
// user (via ctx) ends an abandoned login.
func (c *Client) Login(ctx context.Context) (domain.Identity, domain.Authorization, error) {
	state, err := generateState()
	if err != nil {
		return domain.Identity{}, domain.Authorization{}, err
	}

	cb, err := startCallback(c.cfg.RedirectURI, state)
	if err != nil {
		return domain.Identity{}, domain.Authorization{}, fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer cb.Shutdown()

	authURL := c.authorizeURL(state)
	if err := c.openURL(authURL); err != nil {
		slog.InfoContext(ctx, "Could not open browser, continue manually", "url", authURL)
	}

	var code string
	select {
	case code = <-cb.code:
	case err := <-cb.errc:
		return domain.Identity{}, domain.Authorization{}, fmt.Errorf("authorization flow failed: %w", err)
	case <-ctx.Done():
		return domain.Identity{}, domain.Authorization{}, fmt.Errorf("login abandoned: %w", ctx.Err())
	}

	tok, err := c.exchangeCode(ctx, code)
	if err != nil {
		return domain.Identity{}, domain.Authorization{}, fmt.Errorf("token exchange failed: %w", err)
	}

	identity, claims := identityFromIDToken(tok.IDToken)

	// The userinfo endpoint is authoritative for profile fields; the ID token
	// fills anything a transiently failing fetch leaves behind.
	info, err := c.fetchUserInfo(ctx, tok.AccessToken)
	if err != nil {
		return domain.Identity{}, domain.Authorization{}, fmt.Errorf("user info fetch failed: %w", err)
	}
	identity = mergeIdentity(info, identity)

	if identity.Sub == "" {
		return domain.Identity{}, domain.Authorization{}, errors.New("provider returned no subject")
	}

	auth := domain.Authorization{
		Token:  tok.AccessToken,
		Claims: claims,
	}
	if tok.ExpiresIn > 0 {
		auth.Expiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	return identity, auth, nil
}

// Logout revokes the provider-side session. Transient provider failures are
// retried before the logout is reported as failed.
func (c *Client) Logout(ctx context.Context, auth domain.Authorization) error {
	policy := retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   200 * time.Millisecond,
		RateLimitBackoff: 2 * time.Second,
	}

	err := retry.DoVoid(ctx, policy, classifyHTTP, func() error {
		return c.revokeToken(ctx, auth.Token)
	})
	if err != nil {
		return fmt.Errorf("token revocation failed: %w", err)
	}
	return nil
}

func (c *Client) authorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.TrimSpace(c.cfg.Scope))
	q.Set("state", state)
	return c.cfg.BaseURL + authorizePath + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", c.cfg.ClientID)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", c.cfg.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+tokenPath, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response carried no access token")
	}

	return &tok, nil
}

type userInfoResponse struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
	Picture       string `json:"picture"`
}

func (c *Client) fetchUserInfo(ctx context.Context, accessToken string) (domain.Identity, error) {
	policy := retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   200 * time.Millisecond,
		RateLimitBackoff: 2 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.WarnContext(ctx, "Retrying user info fetch", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	return retry.Do(ctx, policy, classifyHTTP, func() (domain.Identity, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+userInfoPath, nil)
		if err != nil {
			return domain.Identity{}, fmt.Errorf("failed to create user info request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return domain.Identity{}, fmt.Errorf("failed to execute user info request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return domain.Identity{}, &statusError{status: resp.StatusCode}
		}

		var info userInfoResponse
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return domain.Identity{}, fmt.Errorf("failed to decode user info response: %w", err)
		}

		return domain.Identity{
			Sub:           info.Sub,
			Name:          info.Name,
			WalletAddress: info.WalletAddress,
			Picture:       info.Picture,
		}, nil
	})
}

func (c *Client) revokeToken(ctx context.Context, token string) error {
	data := url.Values{}
	data.Set("client_id", c.cfg.ClientID)
	data.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+revokePath, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute revoke request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &statusError{status: resp.StatusCode}
	}
	return nil
}

// identityFromIDToken reads the unverified claim set out of the ID token.
// The token came to us over TLS straight from the token endpoint, so we trust
// its origin; claims for scopes the user declined are simply missing.
func identityFromIDToken(idToken string) (domain.Identity, map[string]string) {
	if idToken == "" {
		return domain.Identity{}, nil
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, mapClaims); err != nil {
		slog.Warn("Unparseable ID token, relying on user info only", "error", err)
		return domain.Identity{}, nil
	}

	claims := make(map[string]string)
	for k, v := range mapClaims {
		if s, ok := v.(string); ok && s != "" {
			claims[k] = s
		}
	}

	identity := domain.Identity{
		Sub:           claims["sub"],
		Name:          claims["name"],
		WalletAddress: claims["wallet_address"],
		Picture:       claims["picture"],
	}
	return identity, claims
}

func mergeIdentity(primary, fallback domain.Identity) domain.Identity {
	if primary.Sub == "" {
		primary.Sub = fallback.Sub
	}
	if primary.Name == "" {
		primary.Name = fallback.Name
	}
	if primary.WalletAddress == "" {
		primary.WalletAddress = fallback.WalletAddress
	}
	if primary.Picture == "" {
		primary.Picture = fallback.Picture
	}
	return primary
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate OAuth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.status)
}

func classifyHTTP(err error) retry.Action {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == http.StatusTooManyRequests:
			return retry.After
		case se.status >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	// Network-level failures are worth another attempt.
	return retry.Retry
}
