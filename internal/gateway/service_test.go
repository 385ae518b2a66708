package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/linkguard"
	"github.com/dwizi/group-warden/internal/platform"
)

const (
	testChat  int64 = -1001
	testAdmin int64 = 7
	testUser  int64 = 42
)

type platformCall struct {
	method      string
	chatID      int64
	userID      int64
	permissions platform.Permissions
}

type fakeActions struct {
	calls       []platformCall
	restrictErr error
	banErr      error
}

func (f *fakeActions) RestrictChatMember(ctx context.Context, chatID, userID int64, permissions platform.Permissions) error {
	f.calls = append(f.calls, platformCall{method: "restrict", chatID: chatID, userID: userID, permissions: permissions})
	return f.restrictErr
}

func (f *fakeActions) BanChatMember(ctx context.Context, chatID, userID int64) error {
	f.calls = append(f.calls, platformCall{method: "ban", chatID: chatID, userID: userID})
	return f.banErr
}

func (f *fakeActions) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	f.calls = append(f.calls, platformCall{method: "delete", chatID: chatID})
	return nil
}

type fixture struct {
	service *Service
	store   *grants.Store
	guard   *linkguard.Guard
	actions *fakeActions
	now     time.Time
}

func newFixture() *fixture {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := grants.New(grants.WithClock(func() time.Time { return now }))
	actions := &fakeActions{}
	admins := NewAdminSet([]int64{testAdmin})
	guard := linkguard.New(admins, actions, true, logger)
	service := New(store, guard, actions, admins, Config{MaxApproveMinutes: 120}, logger)
	return &fixture{service: service, store: store, guard: guard, actions: actions, now: now}
}

func approveInput(args ...string) CommandInput {
	return CommandInput{
		Name:        "approve",
		Args:        args,
		SenderID:    testAdmin,
		ChatID:      testChat,
		ReplyTarget: &User{ID: testUser, DisplayName: "Alice"},
	}
}

func TestApproveGrantsTemporaryAccess(t *testing.T) {
	f := newFixture()
	output, err := f.service.HandleCommand(context.Background(), approveInput("30"))
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if !output.Handled || output.Reply != "✅ Alice approved for 30 minutes" {
		t.Fatalf("unexpected output: %+v", output)
	}
	grant, ok := f.store.Lookup(testChat, testUser)
	if !ok {
		t.Fatal("expected grant to be stored")
	}
	if want := f.now.Add(30 * time.Minute); !grant.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, grant.ExpiresAt)
	}
	if len(f.actions.calls) != 1 {
		t.Fatalf("expected one platform call, got %+v", f.actions.calls)
	}
	call := f.actions.calls[0]
	if call.method != "restrict" || call.userID != testUser || call.permissions != platform.FullPosting() {
		t.Fatalf("unexpected restrict call: %+v", call)
	}
}

func TestApproveRejectsInvalidInputWithoutMutation(t *testing.T) {
	cases := []struct {
		name  string
		input CommandInput
	}{
		{name: "non numeric", input: approveInput("abc")},
		{name: "missing minutes", input: approveInput()},
		{name: "zero minutes", input: approveInput("0")},
		{name: "negative minutes", input: approveInput("-5")},
		{name: "over maximum", input: approveInput("121")},
		{name: "no reply target", input: CommandInput{Name: "approve", Args: []string{"30"}, SenderID: testAdmin, ChatID: testChat}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			output, err := f.service.HandleCommand(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("expected usage reply, got error %v", err)
			}
			if !output.Handled || !strings.HasPrefix(output.Reply, "Reply to user → /approve 30") {
				t.Fatalf("expected usage reply, got %+v", output)
			}
			if f.store.Len() != 0 {
				t.Fatalf("expected store to stay empty, got %d grants", f.store.Len())
			}
			if len(f.actions.calls) != 0 {
				t.Fatalf("expected no platform calls, got %+v", f.actions.calls)
			}
		})
	}
}

func TestApproveRejectsMinutesBeyondDurationRange(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := grants.New()
	actions := &fakeActions{}
	admins := NewAdminSet([]int64{testAdmin})
	service := New(store, linkguard.New(admins, actions, true, logger), actions, admins, Config{MaxApproveMinutes: 1 << 40}, logger)

	output, err := service.HandleCommand(context.Background(), approveInput("200000000"))
	if err != nil {
		t.Fatalf("expected usage reply, got error %v", err)
	}
	if !output.Handled || !strings.HasPrefix(output.Reply, "Reply to user → /approve 30") {
		t.Fatalf("expected usage reply, got %+v", output)
	}
	if len(actions.calls) != 0 {
		t.Fatalf("expected no platform calls, got %+v", actions.calls)
	}
	if store.Has(testChat, testUser) {
		t.Fatal("expected no grant")
	}
}

func TestApproveStoresGrantWhenRestrictFails(t *testing.T) {
	f := newFixture()
	f.actions.restrictErr = errors.New("not enough rights")

	output, err := f.service.HandleCommand(context.Background(), approveInput("15"))
	if err != nil {
		t.Fatalf("approve should swallow platform errors: %v", err)
	}
	if !f.store.Has(testChat, testUser) {
		t.Fatal("expected grant despite restrict failure")
	}
	if !strings.Contains(output.Reply, "approved for 15 minutes") || !strings.Contains(output.Reply, "⚠️") {
		t.Fatalf("expected approval reply with warning, got %q", output.Reply)
	}
}

func TestNonAdminCommandsAreSilentlyIgnored(t *testing.T) {
	f := newFixture()
	for _, name := range []string{"approve", "remove", "locklinks", "unlocklinks", "grants"} {
		input := approveInput("30")
		input.Name = name
		input.SenderID = testUser
		output, err := f.service.HandleCommand(context.Background(), input)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if output.Handled || output.Reply != "" {
			t.Fatalf("%s: expected silent ignore, got %+v", name, output)
		}
	}
	if f.store.Len() != 0 || len(f.actions.calls) != 0 {
		t.Fatal("expected no side effects from non-admin commands")
	}
	if !f.guard.Locked() {
		t.Fatal("expected link lock to stay enabled")
	}
}

func TestPublicCommandsAnswerEveryone(t *testing.T) {
	f := newFixture()
	output, _ := f.service.HandleCommand(context.Background(), CommandInput{Name: "start", SenderID: testUser})
	if output.Reply != startReply {
		t.Fatalf("unexpected start reply %q", output.Reply)
	}
	output, _ = f.service.HandleCommand(context.Background(), CommandInput{Name: "help", SenderID: testUser})
	if !strings.Contains(output.Reply, "/approve (reply) <minutes>") {
		t.Fatalf("unexpected help reply %q", output.Reply)
	}
	output, _ = f.service.HandleCommand(context.Background(), CommandInput{Name: "unknown", SenderID: testAdmin})
	if output.Handled {
		t.Fatalf("expected unknown command to be unhandled, got %+v", output)
	}
}

func TestRemoveBansAndDropsGrant(t *testing.T) {
	f := newFixture()
	_, _ = f.store.Grant(testChat, testUser, time.Hour)

	output, err := f.service.HandleCommand(context.Background(), CommandInput{
		Name:        "remove",
		SenderID:    testAdmin,
		ChatID:      testChat,
		ReplyTarget: &User{ID: testUser},
	})
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if output.Reply != removedReply {
		t.Fatalf("unexpected reply %q", output.Reply)
	}
	if f.store.Has(testChat, testUser) {
		t.Fatal("expected grant to be revoked")
	}
	if len(f.actions.calls) != 1 || f.actions.calls[0].method != "ban" {
		t.Fatalf("expected ban call, got %+v", f.actions.calls)
	}
}

func TestRemoveWithoutGrantStillBans(t *testing.T) {
	f := newFixture()
	f.actions.banErr = errors.New("user is an administrator of the chat")

	output, err := f.service.HandleCommand(context.Background(), CommandInput{
		Name:        "remove",
		SenderID:    testAdmin,
		ChatID:      testChat,
		ReplyTarget: &User{ID: testUser},
	})
	if err != nil {
		t.Fatalf("remove should swallow platform errors: %v", err)
	}
	if output.Reply != removeFailedReply {
		t.Fatalf("unexpected reply %q", output.Reply)
	}
	if len(f.actions.calls) != 1 || f.actions.calls[0].method != "ban" {
		t.Fatalf("expected ban attempt, got %+v", f.actions.calls)
	}
}

func TestRemoveRequiresReplyTarget(t *testing.T) {
	f := newFixture()
	output, _ := f.service.HandleCommand(context.Background(), CommandInput{Name: "remove", SenderID: testAdmin, ChatID: testChat})
	if output.Reply != removeUsageReply {
		t.Fatalf("unexpected reply %q", output.Reply)
	}
	if len(f.actions.calls) != 0 {
		t.Fatalf("expected no ban without reply target, got %+v", f.actions.calls)
	}
}

func TestLockCommandsToggleLinkGuard(t *testing.T) {
	f := newFixture()
	output, _ := f.service.HandleCommand(context.Background(), CommandInput{Name: "unlocklinks", SenderID: testAdmin})
	if output.Reply != unlockReply || f.guard.Locked() {
		t.Fatalf("expected lock disabled, reply %q", output.Reply)
	}
	output, _ = f.service.HandleCommand(context.Background(), CommandInput{Name: "locklinks", SenderID: testAdmin})
	if output.Reply != lockReply || !f.guard.Locked() {
		t.Fatalf("expected lock enabled, reply %q", output.Reply)
	}
}

func TestGrantsListsRemainingTime(t *testing.T) {
	f := newFixture()
	output, _ := f.service.HandleCommand(context.Background(), CommandInput{Name: "grants", SenderID: testAdmin, ChatID: testChat})
	if output.Reply != noGrantsReply {
		t.Fatalf("unexpected empty reply %q", output.Reply)
	}

	_, _ = f.store.Grant(testChat, testUser, 90*time.Second)
	_, _ = f.store.Grant(-5, testUser, time.Hour)
	output, _ = f.service.HandleCommand(context.Background(), CommandInput{Name: "grants", SenderID: testAdmin, ChatID: testChat})
	if output.Reply != "Temporary grants:\n- user 42: 1m30s left" {
		t.Fatalf("unexpected grants reply %q", output.Reply)
	}
}

func TestParseCommand(t *testing.T) {
	name, args, ok := ParseCommand("/Approve@WardenBot  30 extra", "wardenbot")
	if !ok || name != "approve" || len(args) != 2 || args[0] != "30" {
		t.Fatalf("unexpected parse: %q %v %v", name, args, ok)
	}
	if _, _, ok := ParseCommand("/approve@OtherBot 30", "wardenbot"); ok {
		t.Fatal("expected command for another bot to be ignored")
	}
	if name, _, ok := ParseCommand("/locklinks@AnyBot", ""); !ok || name != "locklinks" {
		t.Fatalf("expected command accepted without known username, got %q %v", name, ok)
	}
	if _, _, ok := ParseCommand("hello /approve", ""); ok {
		t.Fatal("expected plain text to not parse as command")
	}
	if _, _, ok := ParseCommand("/", ""); ok {
		t.Fatal("expected bare slash to not parse")
	}
}

func TestAdminSet(t *testing.T) {
	set := NewAdminSet([]int64{3, 1, 3})
	if set.Len() != 2 || !set.IsAdmin(1) || set.IsAdmin(2) {
		t.Fatalf("unexpected admin set %v", set.IDs())
	}
	if ids := set.IDs(); ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("expected sorted ids, got %v", ids)
	}
	var empty *AdminSet
	if empty.IsAdmin(1) {
		t.Fatal("expected nil admin set to deny everyone")
	}
}
