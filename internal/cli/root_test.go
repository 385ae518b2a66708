package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/group-warden/internal/config"
	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/heartbeat"
	"github.com/dwizi/group-warden/internal/httpapi"
	"github.com/dwizi/group-warden/internal/store"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(slog.New(slog.NewTextHandler(io.Discard, nil)))
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestCheckLinkCommand(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"check-link", "visit", "https://spam.example"}, "delete"},
		{[]string{"check-link", "hello there"}, "keep: no link found"},
		{[]string{"check-link", "--locked=false", "www.example.com"}, "keep: link lock is off"},
		{[]string{"check-link", "--admin", "t.me/channel"}, "keep: sender is an admin"},
	}
	for _, tc := range cases {
		out, err := runRoot(t, tc.args...)
		if err != nil {
			t.Fatalf("%v failed: %v", tc.args, err)
		}
		if !strings.HasPrefix(strings.TrimSpace(out), tc.want) {
			t.Fatalf("%v: expected %q, got %q", tc.args, tc.want, out)
		}
	}
}

func TestGrantsCommandListsPersistedGrants(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "grants.sqlite")
	sqlStore, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	for _, grant := range []grants.Grant{
		{Key: grants.Key{ChatID: -100, UserID: 1}, ExpiresAt: expiresAt},
		{Key: grants.Key{ChatID: -200, UserID: 2}, ExpiresAt: expiresAt},
	} {
		if err := sqlStore.SaveGrant(context.Background(), grant); err != nil {
			t.Fatalf("save grant: %v", err)
		}
	}
	sqlStore.Close()

	out, err := runRoot(t, "grants", "--db", dbPath)
	if err != nil {
		t.Fatalf("grants failed: %v", err)
	}
	if !strings.Contains(out, "CHAT") || !strings.Contains(out, "-100") || !strings.Contains(out, "-200") {
		t.Fatalf("unexpected table output:\n%s", out)
	}

	out, err = runRoot(t, "grants", "--db", dbPath, "--chat-id", "-200", "--json")
	if err != nil {
		t.Fatalf("grants --json failed: %v", err)
	}
	var items []grants.Grant
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode json output: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].UserID != 2 || !items[0].ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected grants: %+v", items)
	}
}

func TestGrantsCommandMissingDatabase(t *testing.T) {
	_, err := runRoot(t, "grants", "--db", filepath.Join(t.TempDir(), "missing.sqlite"))
	if err == nil {
		t.Fatal("expected missing database error")
	}
}

type lockState bool

func (l lockState) Locked() bool {
	return bool(l)
}

func newLiveAPI(t *testing.T) *httptest.Server {
	t.Helper()
	grantStore := grants.New()
	if _, err := grantStore.Grant(-100, 5, time.Hour); err != nil {
		t.Fatalf("grant: %v", err)
	}
	registry := heartbeat.NewRegistry()
	registry.Degrade("sweeper", "sweep failed", errors.New("banChatMember: timeout"))
	server := httptest.NewServer(httpapi.NewRouter(httpapi.Dependencies{
		Config:              config.Config{Environment: "test", UpdateMode: "webhook", ExpiryAction: "ban", AdminIDs: []int64{1}},
		Version:             "0.1.0",
		Grants:              grantStore,
		Links:               lockState(true),
		Heartbeat:           registry,
		HeartbeatStaleAfter: time.Minute,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStatusCommandReadsRunningInstance(t *testing.T) {
	server := newLiveAPI(t)
	out, err := runRoot(t, "status", "--api", server.URL)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"link lock: on", "overall: degraded", "sweeper", "banChatMember: timeout"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestGrantsCommandReadsLiveGrants(t *testing.T) {
	server := newLiveAPI(t)
	out, err := runRoot(t, "grants", "--api", server.URL, "--json")
	if err != nil {
		t.Fatalf("grants --api failed: %v", err)
	}
	var items []grants.Grant
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode json output: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].ChatID != -100 || items[0].UserID != 5 {
		t.Fatalf("unexpected live grants: %+v", items)
	}
}
