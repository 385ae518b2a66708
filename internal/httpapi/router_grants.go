package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type grantItem struct {
	ChatID           int64     `json:"chat_id"`
	UserID           int64     `json:"user_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

func (r *router) handleGrants(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.deps.Grants == nil {
		writeError(w, http.StatusServiceUnavailable, "grant store unavailable")
		return
	}
	var chatID int64
	if raw := strings.TrimSpace(req.URL.Query().Get("chat_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "chat_id must be an integer")
			return
		}
		chatID = parsed
	}

	now := r.deps.Grants.Now()
	items := r.deps.Grants.List(chatID)
	payload := make([]grantItem, 0, len(items))
	for _, item := range items {
		remaining := item.ExpiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		payload = append(payload, grantItem{
			ChatID:           item.ChatID,
			UserID:           item.UserID,
			ExpiresAt:        item.ExpiresAt,
			RemainingSeconds: int64(remaining / time.Second),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payload,
		"count": len(payload),
	})
}
