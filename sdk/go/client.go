package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"listenquest/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the ListenQuest HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Player fetches the current progression snapshot for a player.
func (c *Client) Player(ctx context.Context, playerID string) (PlayerState, error) {
	if strings.TrimSpace(playerID) == "" {
		return PlayerState{}, ErrEmptyPlayerID
	}
	var st PlayerState
	err := c.get(ctx, fmt.Sprintf("/players/%s", url.PathEscape(playerID)), &st)
	return st, err
}

// StartSession opens a listening session for the player.
func (c *Client) StartSession(ctx context.Context, playerID string) error {
	if strings.TrimSpace(playerID) == "" {
		return ErrEmptyPlayerID
	}
	var body struct {
		OK bool `json:"ok"`
	}
	return c.post(ctx, fmt.Sprintf("/players/%s/session/start", url.PathEscape(playerID)), &body)
}

// StopSession closes the listening session and returns the settled snapshot.
func (c *Client) StopSession(ctx context.Context, playerID string) (PlayerState, error) {
	if strings.TrimSpace(playerID) == "" {
		return PlayerState{}, ErrEmptyPlayerID
	}
	var st PlayerState
	err := c.post(ctx, fmt.Sprintf("/players/%s/session/stop", url.PathEscape(playerID)), &st)
	return st, err
}

// Resume runs offline catch-up; playing reports whether playback is active at
// the moment of resume.
func (c *Client) Resume(ctx context.Context, playerID string, playing bool) (PlayerState, error) {
	if strings.TrimSpace(playerID) == "" {
		return PlayerState{}, ErrEmptyPlayerID
	}
	var st PlayerState
	path := fmt.Sprintf("/players/%s/resume?playing=%t", url.PathEscape(playerID), playing)
	err := c.post(ctx, path, &st)
	return st, err
}

// PassiveCheck records an idle progression check.
func (c *Client) PassiveCheck(ctx context.Context, playerID string) error {
	if strings.TrimSpace(playerID) == "" {
		return ErrEmptyPlayerID
	}
	var body struct {
		OK bool `json:"ok"`
	}
	return c.post(ctx, fmt.Sprintf("/players/%s/check", url.PathEscape(playerID)), &body)
}

// ChangeActivity switches the active listening activity. Returns false when
// the activity is unknown or still locked.
func (c *Client) ChangeActivity(ctx context.Context, playerID, activity string) (bool, error) {
	if strings.TrimSpace(playerID) == "" {
		return false, ErrEmptyPlayerID
	}
	path := fmt.Sprintf("/players/%s/activity/%s", url.PathEscape(playerID), url.PathEscape(activity))
	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return false, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return true, nil
}

// PurchaseUpgrade spends Focus Points on an upgrade and returns the typed
// outcome; rejections arrive as outcomes, not errors.
func (c *Client) PurchaseUpgrade(ctx context.Context, playerID, upgrade string) (PurchaseOutcome, error) {
	if strings.TrimSpace(playerID) == "" {
		return PurchaseOutcome{}, ErrEmptyPlayerID
	}
	path := fmt.Sprintf("/players/%s/upgrades/%s", url.PathEscape(playerID), url.PathEscape(upgrade))
	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return PurchaseOutcome{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return PurchaseOutcome{}, fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	var out PurchaseOutcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PurchaseOutcome{}, err
	}
	return out, nil
}

// Activities fetches the activity catalog.
func (c *Client) Activities(ctx context.Context) ([]ActivityInfo, error) {
	var out []ActivityInfo
	err := c.get(ctx, "/catalog/activities", &out)
	return out, err
}

// Upgrades fetches the upgrade catalog.
func (c *Client) Upgrades(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := c.get(ctx, "/catalog/upgrades", &out)
	return out, err
}

// Achievements fetches the achievement catalog.
func (c *Client) Achievements(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := c.get(ctx, "/catalog/achievements", &out)
	return out, err
}

// Leaderboard fetches the top n lifetime Focus Point earners.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	err := c.get(ctx, fmt.Sprintf("/leaderboard?n=%d", n), &out)
	return out, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.get(ctx, "/healthz", &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) post(ctx context.Context, path string, target any) error {
	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	return c.httpClient.Do(req)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
