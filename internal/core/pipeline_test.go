package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"modguard/internal/admin"
	"modguard/internal/chat"
	"modguard/internal/filters"
	"modguard/internal/flood"
	"modguard/internal/groups"
	"modguard/internal/history"
	"modguard/internal/i18n"
	"modguard/internal/store"
)

type sentMessage struct {
	chatID int64
	text   string
	format chat.Format
}

type memberCall struct {
	chatID int64
	userID int64
}

type restrictCall struct {
	chatID  int64
	userID  int64
	canSend bool
}

// fakePlatform records every platform call. With failAll set, every call
// returns an error.
type fakePlatform struct {
	mu         sync.Mutex
	sent       []sentMessage
	replies    []sentMessage
	removed    []memberCall
	reinstated []memberCall
	restricted []restrictCall
	promoted   []memberCall
	demoted    []memberCall
	failAll    bool
}

func (f *fakePlatform) err() error {
	if f.failAll {
		return errors.New("platform unavailable")
	}
	return nil
}

func (f *fakePlatform) SendMessage(_ context.Context, chatID int64, text string, format chat.Format) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID, text, format})
	return f.err()
}

func (f *fakePlatform) ReplyTo(_ context.Context, chatID int64, _ string, text string, format chat.Format) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentMessage{chatID, text, format})
	return f.err()
}

func (f *fakePlatform) RemoveMember(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, memberCall{chatID, userID})
	return f.err()
}

func (f *fakePlatform) ReinstateMember(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reinstated = append(f.reinstated, memberCall{chatID, userID})
	return f.err()
}

func (f *fakePlatform) RestrictMember(_ context.Context, chatID, userID int64, canSend bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restricted = append(f.restricted, restrictCall{chatID, userID, canSend})
	return f.err()
}

func (f *fakePlatform) PromoteMember(_ context.Context, chatID, userID int64, _ chat.PermissionSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promoted = append(f.promoted, memberCall{chatID, userID})
	return f.err()
}

func (f *fakePlatform) DemoteMember(_ context.Context, chatID, userID int64, _ chat.PermissionSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.demoted = append(f.demoted, memberCall{chatID, userID})
	return f.err()
}

// testClock hands out strictly increasing timestamps 100ms apart.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newTestClock() *testClock {
	return &testClock{now: time.Now(), step: 100 * time.Millisecond}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type testHarness struct {
	store    *store.Memory
	platform *fakePlatform
	gate     *admin.Gate
	loader   *groups.Loader
	filters  *filters.Table
	history  *history.Recorder
	flood    *flood.Floodgate
	pipeline *Pipeline
	commands *Commands
}

func newTestHarness(t *testing.T) *testHarness {
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

	auditor := NewAuditor(loader, platform, logger)
	greeter := NewGreeter(loader, recorder, platform, auditor, logger)
	clock := newTestClock()
	stages := DefaultStages(loader, floodgate, table, loc, clock.Now)
	pipeline := NewPipeline(stages, platform, recorder, greeter, auditor, nil, logger)
	commands := NewCommands(gate, loader, table, recorder, st, platform, auditor, loc, logger)

	return &testHarness{
		store:    st,
		platform: platform,
		gate:     gate,
		loader:   loader,
		filters:  table,
		history:  recorder,
		flood:    floodgate,
		pipeline: pipeline,
		commands: commands,
	}
}

func messageEvent(chatID, userID int64, text string) *chat.Event {
	return &chat.Event{
		ChatID:    chatID,
		MessageID: fmt.Sprintf("m-%d", time.Now().UnixNano()),
		Sender:    chat.User{ID: userID, FirstName: "Mallory", Username: "mallory"},
		Text:      text,
	}
}

func TestPipelineBannedSenderOnlyRemoved(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if err := h.store.Set(ctx, groups.BlacklistPath(1, 42), true); err != nil {
		t.Fatal(err)
	}
	// A matching filter must not fire for a banned sender.
	if err := h.filters.Add(ctx, 1, "spam", "No spamming!"); err != nil {
		t.Fatal(err)
	}

	h.pipeline.Handle(ctx, messageEvent(1, 42, "buy spam here"))

	if len(h.platform.removed) != 1 || h.platform.removed[0] != (memberCall{1, 42}) {
		t.Fatalf("expected exactly one removal of user 42, got %v", h.platform.removed)
	}
	if len(h.platform.replies) != 0 {
		t.Errorf("banned sender must not trigger filter replies, got %v", h.platform.replies)
	}
	if len(h.platform.restricted) != 0 {
		t.Errorf("banned sender must not be muted, got %v", h.platform.restricted)
	}
}

func TestPipelineBanAuditGoesToLogChannel(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if err := h.store.Update(ctx, groups.GroupPath(1), map[string]any{"log_channel": int64(-999)}); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Set(ctx, groups.BlacklistPath(1, 42), true); err != nil {
		t.Fatal(err)
	}

	h.pipeline.Handle(ctx, messageEvent(1, 42, "hello"))

	if len(h.platform.sent) != 1 {
		t.Fatalf("expected one audit message, got %v", h.platform.sent)
	}
	audit := h.platform.sent[0]
	if audit.chatID != -999 {
		t.Errorf("audit chat = %d, want -999", audit.chatID)
	}
	if !strings.Contains(audit.text, "banned user") {
		t.Errorf("audit text = %q", audit.text)
	}
	if audit.format != chat.FormatHTML {
		t.Errorf("audit format = %q, want HTML", audit.format)
	}
}

func TestPipelineFloodMutesOnExceed(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if err := h.store.Update(ctx, groups.GroupPath(1), map[string]any{"flood_limit": 3}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		h.pipeline.Handle(ctx, messageEvent(1, 7, "hi"))
	}
	if len(h.platform.restricted) != 0 {
		t.Fatalf("messages within the limit must not mute, got %v", h.platform.restricted)
	}

	h.pipeline.Handle(ctx, messageEvent(1, 7, "hi"))
	if len(h.platform.restricted) != 1 {
		t.Fatalf("fourth message should mute, got %v", h.platform.restricted)
	}
	if got := h.platform.restricted[0]; got != (restrictCall{1, 7, false}) {
		t.Errorf("restrict call = %v", got)
	}
	if len(h.platform.replies) != 1 || !strings.Contains(h.platform.replies[0].text, "muted for flooding") {
		t.Errorf("expected in-chat mute notice, got %v", h.platform.replies)
	}

	// The window was reset on the mute, so the next message counts from one.
	h.pipeline.Handle(ctx, messageEvent(1, 7, "hi"))
	if len(h.platform.restricted) != 1 {
		t.Errorf("message after reset must not mute again, got %v", h.platform.restricted)
	}
}

func TestPipelineFilterReply(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if err := h.filters.Add(ctx, 1, "spam", "No spamming!"); err != nil {
		t.Fatal(err)
	}

	h.pipeline.Handle(ctx, messageEvent(1, 7, "No SPAMMING here please"))

	if len(h.platform.replies) != 1 || h.platform.replies[0].text != "No spamming!" {
		t.Fatalf("expected filter auto-reply, got %v", h.platform.replies)
	}
	if len(h.platform.removed) != 0 || len(h.platform.restricted) != 0 {
		t.Error("filter match must not remove or mute")
	}

	// Triggers are chat-scoped.
	h.pipeline.Handle(ctx, messageEvent(2, 7, "spam"))
	if len(h.platform.replies) != 1 {
		t.Errorf("filter must not fire in another chat, got %v", h.platform.replies)
	}
}

func TestPipelineIgnoresBots(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if err := h.filters.Add(ctx, 1, "spam", "No spamming!"); err != nil {
		t.Fatal(err)
	}

	ev := messageEvent(1, 99, "spam from a bot")
	ev.Sender.IsBot = true
	h.pipeline.Handle(ctx, ev)

	if len(h.platform.replies) != 0 || len(h.platform.removed) != 0 || len(h.platform.restricted) != 0 {
		t.Error("bot messages must produce no actions")
	}
	if entries, err := h.history.Get(ctx, 99); err != nil || len(entries) != 0 {
		t.Errorf("bot messages must not be recorded in history, got %v, %v", entries, err)
	}
}

func TestPipelineRecordsSenderName(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.pipeline.Handle(ctx, messageEvent(1, 7, "hello"))

	entries, err := h.history.Get(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0] != "Mallory (@mallory)" {
		t.Errorf("history = %v", entries)
	}
}

func TestPipelineWelcomesJoins(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	err := h.store.Update(ctx, groups.GroupPath(1), map[string]any{
		"welcome_on":   true,
		"welcome_text": "Hi {first}, welcome!",
	})
	if err != nil {
		t.Fatal(err)
	}

	h.pipeline.Handle(ctx, &chat.Event{
		ChatID:    1,
		MessageID: "m-1",
		Sender:    chat.User{ID: 500, FirstName: "GroupBot", IsBot: true},
		Joined:    []chat.User{{ID: 8, FirstName: "Ada", Username: "ada"}},
	})

	if len(h.platform.replies) != 1 || h.platform.replies[0].text != "Hi Ada, welcome!" {
		t.Fatalf("expected welcome reply, got %v", h.platform.replies)
	}
	entries, err := h.history.Get(ctx, 8)
	if err != nil || len(entries) != 1 {
		t.Errorf("join must record name history, got %v, %v", entries, err)
	}
}

func TestPipelineGoodbyeOffStaysSilent(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.pipeline.Handle(ctx, &chat.Event{
		ChatID:    1,
		MessageID: "m-1",
		Sender:    chat.User{ID: 500, IsBot: true},
		Left:      &chat.User{ID: 8, FirstName: "Ada"},
	})

	if len(h.platform.replies) != 0 {
		t.Errorf("goodbye defaults to off, got %v", h.platform.replies)
	}
}

func TestPipelineSurvivesPlatformFailure(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.platform.failAll = true

	if err := h.store.Set(ctx, groups.BlacklistPath(1, 42), true); err != nil {
		t.Fatal(err)
	}

	h.pipeline.Handle(ctx, messageEvent(1, 42, "hello"))
	h.pipeline.Handle(ctx, messageEvent(1, 7, "hello"))
}
