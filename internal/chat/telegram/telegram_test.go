package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"modguard/internal/admin"
	"modguard/internal/chat"
	"modguard/internal/core"
	"modguard/internal/filters"
	"modguard/internal/flood"
	"modguard/internal/groups"
	"modguard/internal/history"
	"modguard/internal/i18n"
	"modguard/internal/store"
)

func testFrontend() *Frontend {
	f := NewFrontend("token", store.NewSeenStore(100, 0.001), zap.NewNop())
	f.username = "modguard_bot"
	return f
}

func groupMessage(text string) *models.Message {
	return &models.Message{
		ID:   42,
		Chat: models.Chat{ID: -100, Title: "testers", Type: "supergroup"},
		From: &models.User{ID: 7, FirstName: "Ada", Username: "ada"},
		Text: text,
	}
}

func TestToEvent(t *testing.T) {
	msg := groupMessage("hello")
	ev := toEvent(msg)

	if ev.ChatID != -100 || ev.MessageID != "42" || ev.Sender.ID != 7 {
		t.Errorf("event = %+v", ev)
	}
	if ev.IsService() {
		t.Error("plain message must not be a service event")
	}
}

func TestToEventCaptionFallback(t *testing.T) {
	msg := groupMessage("")
	msg.Caption = "look at this"

	if ev := toEvent(msg); ev.Text != "look at this" {
		t.Errorf("Text = %q", ev.Text)
	}
}

func TestToEventMembershipChanges(t *testing.T) {
	msg := groupMessage("")
	msg.NewChatMembers = []models.User{{ID: 8, FirstName: "Grace"}}

	ev := toEvent(msg)
	if !ev.IsService() || len(ev.Joined) != 1 || ev.Joined[0].ID != 8 {
		t.Errorf("join event = %+v", ev)
	}

	msg = groupMessage("")
	msg.LeftChatMember = &models.User{ID: 9, FirstName: "Linus"}

	ev = toEvent(msg)
	if !ev.IsService() || ev.Left == nil || ev.Left.ID != 9 {
		t.Errorf("leave event = %+v", ev)
	}
}

func TestParseCommand(t *testing.T) {
	f := testFrontend()

	msg := groupMessage("/addfilter spam No spamming!")
	command, req, ok := f.parseCommand(msg, toEvent(msg))
	if !ok || command != "addfilter" {
		t.Fatalf("command = %q, ok = %v", command, ok)
	}
	if len(req.Args) != 3 || req.Args[0] != "spam" {
		t.Errorf("args = %v", req.Args)
	}
	if req.ArgTail != "spam No spamming!" {
		t.Errorf("arg tail = %q", req.ArgTail)
	}
	if req.Invoker.ID != 7 {
		t.Errorf("invoker = %+v", req.Invoker)
	}
}

func TestParseCommandBotSuffix(t *testing.T) {
	f := testFrontend()

	msg := groupMessage("/ban@ModGuard_Bot")
	command, _, ok := f.parseCommand(msg, toEvent(msg))
	if !ok || command != "ban" {
		t.Errorf("command = %q, ok = %v", command, ok)
	}

	// Commands addressed to another bot are plain text to us.
	msg = groupMessage("/ban@other_bot")
	if _, _, ok = f.parseCommand(msg, toEvent(msg)); ok {
		t.Error("foreign-bot command must not parse as a command")
	}
}

func TestParseCommandReplyTarget(t *testing.T) {
	f := testFrontend()

	msg := groupMessage("/ban")
	msg.ReplyToMessage = &models.Message{
		ID:   41,
		From: &models.User{ID: 30, FirstName: "Mallory"},
	}

	_, req, ok := f.parseCommand(msg, toEvent(msg))
	if !ok || req.Target == nil || req.Target.ID != 30 {
		t.Errorf("target = %+v, ok = %v", req.Target, ok)
	}
}

// fakePlatform records moderation calls made through the pipeline.
type fakePlatform struct {
	mu         sync.Mutex
	removed    []int64
	restricted []int64
	replies    []string
}

func (p *fakePlatform) SendMessage(context.Context, int64, string, chat.Format) error {
	return nil
}

func (p *fakePlatform) ReplyTo(_ context.Context, _ int64, _ string, text string, _ chat.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, text)
	return nil
}

func (p *fakePlatform) RemoveMember(_ context.Context, _, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, userID)
	return nil
}

func (p *fakePlatform) ReinstateMember(context.Context, int64, int64) error {
	return nil
}

func (p *fakePlatform) RestrictMember(_ context.Context, _, userID int64, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restricted = append(p.restricted, userID)
	return nil
}

func (p *fakePlatform) PromoteMember(context.Context, int64, int64, chat.PermissionSet) error {
	return nil
}

func (p *fakePlatform) DemoteMember(context.Context, int64, int64, chat.PermissionSet) error {
	return nil
}

// moderatedFrontend wires a frontend to a real pipeline over the memory
// store, with platform actions captured by a fakePlatform.
func moderatedFrontend(t *testing.T) (*Frontend, *store.Memory, *fakePlatform) {
	t.Helper()

	st := store.NewMemory()
	platform := &fakePlatform{}
	logger := zap.NewNop()
	loc := i18n.NewLocalizer("en")

	loader := groups.NewLoader(st, logger)
	gate := admin.New(st)
	table := filters.New(st)
	recorder := history.New(st)
	floodgate := flood.New()
	t.Cleanup(floodgate.Stop)

	auditor := core.NewAuditor(loader, platform, logger)
	greeter := core.NewGreeter(loader, recorder, platform, auditor, logger)
	stages := core.DefaultStages(loader, floodgate, table, loc, time.Now)
	pipeline := core.NewPipeline(stages, platform, recorder, greeter, auditor, nil, logger)
	commands := core.NewCommands(gate, loader, table, recorder, st, platform, auditor, loc, logger)

	f := testFrontend()
	f.Bind(pipeline, commands)
	return f, st, platform
}

func TestHandleUpdateUnknownCommandIsModerated(t *testing.T) {
	f, st, platform := moderatedFrontend(t)
	ctx := context.Background()

	if err := st.Set(ctx, groups.BlacklistPath(-100, 7), true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A slash prefix must not let a banned sender keep talking: plain
	// text, an unrecognized command and a foreign-bot command are all
	// ban-checked.
	for i, txt := range []string{
		"hello there",
		"/notacommand still talking",
		"/ban@other_bot hi",
	} {
		msg := groupMessage(txt)
		msg.ID = 100 + i
		f.handleUpdate(ctx, nil, &models.Update{Message: msg})
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.removed) != 3 {
		t.Fatalf("removals = %d, want 3", len(platform.removed))
	}
	for _, uid := range platform.removed {
		if uid != 7 {
			t.Errorf("removed user = %d, want 7", uid)
		}
	}
}

func TestHandleUpdateUnknownCommandCountsTowardFlood(t *testing.T) {
	f, st, platform := moderatedFrontend(t)
	ctx := context.Background()

	if err := st.Update(ctx, groups.GroupPath(-100), map[string]any{"flood_limit": 2}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	for i := 0; i < 3; i++ {
		msg := groupMessage("/spamcmd again")
		msg.ID = 200 + i
		f.handleUpdate(ctx, nil, &models.Update{Message: msg})
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.restricted) != 1 || platform.restricted[0] != 7 {
		t.Errorf("restricted = %v, want one mute of user 7", platform.restricted)
	}
}

func TestParseCommandNonCommands(t *testing.T) {
	f := testFrontend()

	msg := groupMessage("just chatting")
	if _, _, ok := f.parseCommand(msg, toEvent(msg)); ok {
		t.Error("plain text must not parse as a command")
	}

	msg = groupMessage("")
	msg.NewChatMembers = []models.User{{ID: 8}}
	if _, _, ok := f.parseCommand(msg, toEvent(msg)); ok {
		t.Error("service events must not parse as commands")
	}
}
