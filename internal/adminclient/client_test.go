package adminclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientListGrants(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/grants" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("chat_id"); got != "-100" {
			t.Errorf("expected chat_id=-100, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"chat_id":-100,"user_id":7,"expires_at":"2026-03-01T12:30:00Z","remaining_seconds":1800}],"count":1}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	items, err := client.ListGrants(context.Background(), -100)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(items) != 1 || items[0].UserID != 7 || items[0].RemainingSeconds != 1800 {
		t.Fatalf("unexpected grants: %+v", items)
	}
	if !items[0].ExpiresAt.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry: %s", items[0].ExpiresAt)
	}
}

func TestClientHeartbeatAndInfo(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/heartbeat":
			_, _ = w.Write([]byte(`{"generated_at_unix":1,"overall":"healthy","components":[{"name":"sweeper","state":"healthy","updated_at_unix":1}]}`))
		case "/api/v1/info":
			_, _ = w.Write([]byte(`{"name":"group-warden","version":"0.1.0","link_lock":true,"admin_count":2}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	snapshot, err := client.Heartbeat(context.Background())
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if snapshot.Overall != "healthy" || len(snapshot.Components) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !info.LinkLock || info.AdminCount != 2 || info.Version != "0.1.0" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"grant store unavailable"}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	_, err := client.ListGrants(context.Background(), 0)
	if err == nil || err.Error() != "grant store unavailable" {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestNewRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := New("not a url", time.Second); err == nil {
		t.Fatal("expected invalid url error")
	}
	client, err := New("http://127.0.0.1:10000/", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.baseURL != "http://127.0.0.1:10000" {
		t.Fatalf("expected trimmed base url, got %q", client.baseURL)
	}
}
