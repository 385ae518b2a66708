package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/group-warden/internal/platform"
	"github.com/dwizi/group-warden/internal/warderr"
)

const defaultAPIBase = "https://api.telegram.org"

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %d %s", e.Method, e.Code, strings.TrimSpace(e.Description))
}

// Client calls the Telegram Bot API. Every failure is returned as a
// warderr.ExternalCallError.
type Client struct {
	token       string
	apiBase     string
	httpClient  *http.Client
	callTimeout time.Duration
}

func NewClient(token, apiBase string, callTimeout time.Duration, httpClient *http.Client) *Client {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = defaultAPIBase
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		token:       strings.TrimSpace(token),
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		httpClient:  httpClient,
		callTimeout: callTimeout,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	return c.callWithTimeout(ctx, method, payload, result, c.callTimeout)
}

func (c *Client) callWithTimeout(ctx context.Context, method string, payload any, result any, timeout time.Duration) error {
	if c.token == "" {
		return warderr.External(method, fmt.Errorf("bot token missing"))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return warderr.External(method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return warderr.External(method, redactToken(err, c.token))
	}
	defer res.Body.Close()

	var response apiResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&response); err != nil {
		return warderr.External(method, fmt.Errorf("decode %s: status=%d: %w", method, res.StatusCode, err))
	}
	if !response.OK {
		code := response.ErrorCode
		if code == 0 {
			code = res.StatusCode
		}
		return warderr.External(method, &APIError{Method: method, Code: code, Description: response.Description})
	}
	if result == nil || len(response.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Result, result); err != nil {
		return warderr.External(method, fmt.Errorf("decode %s result: %w", method, err))
	}
	return nil
}

func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64, permissions platform.Permissions) error {
	return c.call(ctx, "restrictChatMember", map[string]any{
		"chat_id":                          chatID,
		"user_id":                          userID,
		"permissions":                      permissions,
		"use_independent_chat_permissions": false,
	}, nil)
}

func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if replyTo != 0 {
		payload["reply_parameters"] = map[string]any{
			"message_id":                  replyTo,
			"allow_sending_without_reply": true,
		}
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

func (c *Client) GetMe(ctx context.Context) (telegramUser, error) {
	var me telegramUser
	err := c.call(ctx, "getMe", map[string]any{}, &me)
	return me, err
}

func (c *Client) GetUpdates(ctx context.Context, offset int64, pollSeconds int) ([]telegramUpdate, error) {
	var updates []telegramUpdate
	err := c.callWithTimeout(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         pollSeconds,
		"allowed_updates": allowedUpdates,
	}, &updates, time.Duration(pollSeconds+10)*time.Second)
	return updates, err
}

func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]any{
		"url":             url,
		"allowed_updates": allowedUpdates,
	}
	if strings.TrimSpace(secret) != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []botCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

// redactToken keeps the bot token out of logged transport errors, which
// include the request URL.
func redactToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<redacted>"))
}
