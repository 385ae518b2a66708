package linkguard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminSet map[int64]bool

func (a adminSet) IsAdmin(userID int64) bool {
	return a[userID]
}

type fakeDeleter struct {
	deleted []int64
	err     error
}

func (f *fakeDeleter) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	f.deleted = append(f.deleted, messageID)
	return f.err
}

func TestShouldDelete(t *testing.T) {
	tests := []struct {
		name    string
		locked  bool
		text    string
		isAdmin bool
		want    bool
	}{
		{"unlocked never deletes", false, "https://example.com", false, false},
		{"unlocked plain text", false, "hello", true, false},
		{"admin link kept", true, "check https://example.com", true, false},
		{"uppercase www", true, "visit WWW.example.com", false, true},
		{"http link", true, "http://foo", false, true},
		{"telegram invite", true, "join T.ME/somegroup", false, true},
		{"plain text", true, "no links here", false, false},
		{"bare dot com kept", true, "example.com", false, false},
		{"false positive accepted", true, "the www. prefix is old", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldDelete(tt.locked, tt.text, tt.isAdmin))
		})
	}
}

func TestGuardInspectDeletesLinks(t *testing.T) {
	deleter := &fakeDeleter{}
	guard := New(adminSet{1: true}, deleter, true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.True(t, guard.Inspect(context.Background(), Message{ChatID: -1, MessageID: 10, SenderID: 2, Text: "https://spam"}))
	assert.False(t, guard.Inspect(context.Background(), Message{ChatID: -1, MessageID: 11, SenderID: 1, Text: "https://ok"}))
	assert.False(t, guard.Inspect(context.Background(), Message{ChatID: -1, MessageID: 12, SenderID: 2, Text: "hello"}))
	assert.Equal(t, []int64{10}, deleter.deleted)
}

func TestGuardLockToggle(t *testing.T) {
	deleter := &fakeDeleter{}
	guard := New(nil, deleter, true, nil)
	require.True(t, guard.Locked())

	guard.Unlock()
	assert.False(t, guard.Locked())
	assert.False(t, guard.Inspect(context.Background(), Message{MessageID: 1, Text: "www.example.com"}))

	guard.Lock()
	assert.True(t, guard.Inspect(context.Background(), Message{MessageID: 2, Text: "www.example.com"}))
	assert.Equal(t, []int64{2}, deleter.deleted)
}

func TestGuardSwallowsDeleteFailures(t *testing.T) {
	deleter := &fakeDeleter{err: errors.New("message to delete not found")}
	guard := New(nil, deleter, true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NotPanics(t, func() {
		assert.True(t, guard.Inspect(context.Background(), Message{MessageID: 5, Text: "http://x"}))
	})
	assert.Equal(t, []int64{5}, deleter.deleted)
}
