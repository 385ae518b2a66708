package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler accepts pushed updates. When a secret is configured, requests
// without the matching header are rejected before the body is read.
func (c *Connector) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if c.webhookSecret != "" {
			got := r.Header.Get(secretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(c.webhookSecret)) != 1 {
				c.logger.Warn("webhook rejected, secret mismatch", "remote_addr", r.RemoteAddr)
				writeStatus(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		var update telegramUpdate
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&update); err != nil {
			c.logger.Warn("webhook payload invalid", "error", err)
			writeStatus(w, http.StatusBadRequest, "invalid update")
			return
		}
		if c.gateway != nil && c.links != nil {
			c.HandleUpdate(r.Context(), "webhook", update)
		}
		c.reportBeat("webhook update handled")
		writeStatus(w, http.StatusOK, "ok")
	})
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      status == http.StatusOK,
		"message": message,
	})
}
