package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modguard/internal/chat"
	"modguard/internal/filters"
	"modguard/internal/flood"
	"modguard/internal/groups"
	"modguard/internal/i18n"
)

// Verdict is a stage's decision about the rest of the pipeline.
type Verdict int

const (
	// VerdictContinue passes the message to the next stage.
	VerdictContinue Verdict = iota
	// VerdictHalt terminates processing for this message.
	VerdictHalt
)

// ActionKind names the platform action a stage produced.
type ActionKind string

// The actions a stage can produce.
const (
	ActionRemove ActionKind = "remove"
	ActionMute   ActionKind = "mute"
	ActionReply  ActionKind = "reply"
)

// Action is the at-most-one platform action resulting from a message.
type Action struct {
	Kind ActionKind
	// ReplyText is the message sent alongside the action: the auto-reply
	// for ActionReply, an in-chat notice for ActionMute.
	ReplyText string
	// Format applies to ReplyText.
	Format chat.Format
}

// Outcome is one stage's result for one message.
type Outcome struct {
	Verdict Verdict
	Action  *Action
	Audit   string // HTML audit line, empty for none
}

// Stage is one step of the ordered moderation pipeline. Stages run in a
// fixed priority order and the first halting stage wins; a stage error
// degrades that stage to a no-op for the current message.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, ev *chat.Event) (Outcome, error)
}

// DefaultStages returns the moderation stages in their contractual order:
// ban before flood before filter.
func DefaultStages(
	loader *groups.Loader,
	gate *flood.Floodgate,
	table *filters.Table,
	loc *i18n.Localizer,
	now func() time.Time,
) []Stage {
	return []Stage{
		&banStage{groups: loader},
		&floodStage{gate: gate, groups: loader, loc: loc, now: now},
		&filterStage{table: table},
	}
}

// banStage removes messages from blacklisted senders. It reads through to
// the store on every message; a stale "not banned" is not acceptable here.
type banStage struct {
	groups *groups.Loader
}

func (s *banStage) Name() string { return "ban" }

func (s *banStage) Evaluate(ctx context.Context, ev *chat.Event) (Outcome, error) {
	banned, err := s.groups.Banned(ctx, ev.ChatID, ev.Sender.ID)
	if err != nil {
		return Outcome{Verdict: VerdictContinue}, fmt.Errorf("ban check failed: %w", err)
	}
	if !banned {
		return Outcome{Verdict: VerdictContinue}, nil
	}

	return Outcome{
		Verdict: VerdictHalt,
		Action:  &Action{Kind: ActionRemove},
		Audit:   fmt.Sprintf("⛔ Blocked message from banned user %s.", Mention(ev.Sender)),
	}, nil
}

// floodStage mutes senders that exceed the chat's flood limit within the
// sliding window, then resets their window.
type floodStage struct {
	gate   *flood.Floodgate
	groups *groups.Loader
	loc    *i18n.Localizer
	now    func() time.Time
}

func (s *floodStage) Name() string { return "flood" }

func (s *floodStage) Evaluate(ctx context.Context, ev *chat.Event) (Outcome, error) {
	count := s.gate.RecordAndCount(ev.ChatID, ev.Sender.ID, s.now())
	limit := s.groups.Config(ctx, ev.ChatID).FloodLimit
	if count <= limit {
		return Outcome{Verdict: VerdictContinue}, nil
	}

	s.gate.Reset(ev.ChatID, ev.Sender.ID)

	return Outcome{
		Verdict: VerdictHalt,
		Action: &Action{
			Kind:      ActionMute,
			ReplyText: s.loc.T("flood.muted", Mention(ev.Sender)),
			Format:    chat.FormatHTML,
		},
		Audit: fmt.Sprintf("🚨 %s muted for flooding (&gt; %d msgs/10s).", Mention(ev.Sender), limit),
	}, nil
}

// filterStage answers the first configured trigger found in the message
// text, in lexicographic trigger order.
type filterStage struct {
	table *filters.Table
}

func (s *filterStage) Name() string { return "filter" }

func (s *filterStage) Evaluate(ctx context.Context, ev *chat.Event) (Outcome, error) {
	lowered := strings.ToLower(ev.Text)
	if lowered == "" {
		return Outcome{Verdict: VerdictContinue}, nil
	}

	reply, ok, err := s.table.Match(ctx, ev.ChatID, lowered)
	if err != nil {
		return Outcome{Verdict: VerdictContinue}, fmt.Errorf("filter lookup failed: %w", err)
	}
	if !ok {
		return Outcome{Verdict: VerdictContinue}, nil
	}

	return Outcome{
		Verdict: VerdictHalt,
		Action:  &Action{Kind: ActionReply, ReplyText: reply, Format: chat.FormatPlain},
	}, nil
}
