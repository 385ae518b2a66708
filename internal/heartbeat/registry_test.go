package heartbeat

import (
	"errors"
	"testing"
	"time"
)

func TestSnapshotMarksStaleComponents(t *testing.T) {
	registry := NewRegistry()
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return current }

	registry.Beat("sweeper", "sweep completed")
	registry.Disabled("connector:telegram", "token missing")

	current = current.Add(5 * time.Minute)
	snapshot := registry.Snapshot(time.Minute)
	if snapshot.Overall != StateDegraded {
		t.Fatalf("expected degraded overall, got %q", snapshot.Overall)
	}
	if len(snapshot.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(snapshot.Components))
	}
	if snapshot.Components[0].Name != "connector:telegram" || snapshot.Components[0].State != StateDisabled {
		t.Fatalf("unexpected first component: %+v", snapshot.Components[0])
	}
	if !snapshot.Components[1].Stale || snapshot.Components[1].State != StateStale {
		t.Fatalf("expected sweeper to be stale: %+v", snapshot.Components[1])
	}
}

func TestDegradeRecordsError(t *testing.T) {
	registry := NewRegistry()
	registry.Degrade("Sweeper ", "sweep failed", errors.New("boom"))

	snapshot := registry.Snapshot(0)
	if len(snapshot.Components) != 1 {
		t.Fatalf("expected one component, got %d", len(snapshot.Components))
	}
	item := snapshot.Components[0]
	if item.Name != "sweeper" || item.State != StateDegraded || item.Error != "boom" {
		t.Fatalf("unexpected status: %+v", item)
	}
	if !IsDegradedState(item.State) {
		t.Fatal("expected degraded state to be reported as degraded")
	}

	registry.Beat("sweeper", "recovered")
	if got := registry.Snapshot(0).Components[0]; got.Error != "" || got.State != StateHealthy {
		t.Fatalf("expected recovery to clear error: %+v", got)
	}
}

func TestOverallIdleWhenEverythingStopped(t *testing.T) {
	registry := NewRegistry()
	if got := registry.Snapshot(0).Overall; got != "unknown" {
		t.Fatalf("expected unknown overall, got %q", got)
	}
	registry.Stopped("api", "stopped")
	if got := registry.Snapshot(0).Overall; got != "idle" {
		t.Fatalf("expected idle overall, got %q", got)
	}
}
