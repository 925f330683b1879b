package core

import (
	"context"

	"go.uber.org/zap"

	"modguard/internal/chat"
	"modguard/internal/history"
	"modguard/pkg/text"
)

// Recorder receives pipeline metrics. The HTTP server implements it; tests
// use NopRecorder.
type Recorder interface {
	RecordMessage(outcome string)
	RecordAction(kind string)
	RecordError(component string)
}

// NopRecorder discards all metrics.
type NopRecorder struct{}

func (NopRecorder) RecordMessage(string) {}
func (NopRecorder) RecordAction(string)  {}
func (NopRecorder) RecordError(string)   {}

// Pipeline runs every incoming event through the ordered moderation stages.
// Events for distinct (chat, user) pairs may be handled concurrently; no
// error from one message ever halts ingestion of the next.
type Pipeline struct {
	stages   []Stage
	platform chat.Platform
	history  *history.Recorder
	greeter  *Greeter
	audit    *Auditor
	metrics  Recorder
	logger   *zap.Logger
}

// NewPipeline assembles the pipeline. stages must already be in priority
// order (see DefaultStages).
func NewPipeline(
	stages []Stage,
	platform chat.Platform,
	recorder *history.Recorder,
	greeter *Greeter,
	audit *Auditor,
	metrics Recorder,
	logger *zap.Logger,
) *Pipeline {
	if metrics == nil {
		metrics = NopRecorder{}
	}
	return &Pipeline{
		stages:   stages,
		platform: platform,
		history:  recorder,
		greeter:  greeter,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle processes one event to completion. It never returns an error:
// every failure degrades or logs.
func (p *Pipeline) Handle(ctx context.Context, ev *chat.Event) {
	// Membership changes go to the greeter and never touch flood or
	// filter state.
	if ev.IsService() {
		p.greeter.Handle(ctx, ev)
		p.metrics.RecordMessage("service")
		return
	}

	// Silence towards bots prevents bot-to-bot feedback loops: no history
	// write, no flood increment, no filter match.
	if ev.Sender.IsBot {
		p.metrics.RecordMessage("bot")
		return
	}

	name := text.DisplayName(ev.Sender.FirstName, ev.Sender.LastName, ev.Sender.Username)
	if err := p.history.Record(ctx, ev.Sender.ID, name); err != nil {
		p.logger.Warn("Failed to record name history",
			zap.Int64("user_id", ev.Sender.ID),
			zap.Error(err))
		p.metrics.RecordError("history")
	}

	for _, stage := range p.stages {
		outcome, err := stage.Evaluate(ctx, ev)
		if err != nil {
			// The stage degrades to a no-op for this message.
			p.logger.Warn("Stage evaluation failed",
				zap.String("stage", stage.Name()),
				zap.Int64("chat_id", ev.ChatID),
				zap.Error(err))
			p.metrics.RecordError(stage.Name())
		}

		if outcome.Action != nil {
			p.execute(ctx, ev, outcome.Action)
		}
		if outcome.Audit != "" {
			p.audit.Log(ctx, ev.ChatID, outcome.Audit)
		}
		if outcome.Verdict == VerdictHalt {
			p.metrics.RecordMessage(stage.Name())
			return
		}
	}

	p.metrics.RecordMessage("pass")
}

// execute performs the platform action fire-and-forget: failures are
// logged, never retried.
func (p *Pipeline) execute(ctx context.Context, ev *chat.Event, action *Action) {
	p.metrics.RecordAction(string(action.Kind))

	var err error
	switch action.Kind {
	case ActionRemove:
		err = p.platform.RemoveMember(ctx, ev.ChatID, ev.Sender.ID)
	case ActionMute:
		err = p.platform.RestrictMember(ctx, ev.ChatID, ev.Sender.ID, false)
		if err == nil && action.ReplyText != "" {
			err = p.platform.ReplyTo(ctx, ev.ChatID, ev.MessageID, action.ReplyText, action.Format)
		}
	case ActionReply:
		err = p.platform.ReplyTo(ctx, ev.ChatID, ev.MessageID, action.ReplyText, action.Format)
	}

	if err != nil {
		p.logger.Warn("Platform action failed",
			zap.String("action", string(action.Kind)),
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.Sender.ID),
			zap.Error(err))
		p.metrics.RecordError("platform")
	}
}
