package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/group-warden/internal/heartbeat"
)

// Client reads the HTTP API of a running group-warden process.
type Client struct {
	baseURL string
	http    *http.Client
}

type Grant struct {
	ChatID           int64     `json:"chat_id"`
	UserID           int64     `json:"user_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

type Info struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UpdateMode    string `json:"update_mode"`
	ExpiryAction  string `json:"expiry_action"`
	AdminCount    int    `json:"admin_count"`
	PersistGrants bool   `json:"persist_grants"`
	LinkLock      bool   `json:"link_lock"`
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}
	if timeout < time.Second {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.get(ctx, "/api/v1/info", nil, &info)
	return info, err
}

func (c *Client) Heartbeat(ctx context.Context) (heartbeat.Snapshot, error) {
	var snapshot heartbeat.Snapshot
	err := c.get(ctx, "/api/v1/heartbeat", nil, &snapshot)
	return snapshot, err
}

// ListGrants returns live grants; chatID 0 lists every chat.
func (c *Client) ListGrants(ctx context.Context, chatID int64) ([]Grant, error) {
	query := url.Values{}
	if chatID != 0 {
		query.Set("chat_id", strconv.FormatInt(chatID, 10))
	}
	var payload struct {
		Items []Grant `json:"items"`
		Count int     `json:"count"`
	}
	if err := c.get(ctx, "/api/v1/grants", query, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
