// Package turn runs one voice turn against the Spacebot backend: derive the
// conversation identity, send the prompt, collect the reply and split it into
// speech and an optional visual directive.
package turn

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spacebot-echo-show/internal/config"
	"spacebot-echo-show/internal/directive"
	"spacebot-echo-show/internal/identity"
	"spacebot-echo-show/internal/prompt"
	"spacebot-echo-show/internal/webhook"
)

const stillWorkingSpeech = "I'm still working on that. Please ask me again in a moment."

// Backend is the subset of the webhook client a turn needs.
type Backend interface {
	SendMessage(ctx context.Context, msg webhook.OutboundMessage) error
	CollectReply(ctx context.Context, conversationID string) (webhook.ReplyCollection, error)
}

// Request carries the voice platform's per-turn fields.
type Request struct {
	AppID     string
	UserID    string
	DeviceID  string
	RequestID string
	Utterance string
}

// Result is the outcome of a single turn.
type Result struct {
	ConversationID string
	SenderID       string
	SpeechText     string
	Directive      *directive.Directive
	RawMessages    []webhook.InboundMessage
	TimedOut       bool
}

// Orchestrator holds only read-only collaborators, so one instance can serve
// concurrent turns.
type Orchestrator struct {
	settings  config.Settings
	backend   Backend
	prompts   *prompt.Builder
	extractor *directive.Extractor
	logger    *zap.Logger
}

func New(settings config.Settings, backend Backend, prompts *prompt.Builder, extractor *directive.Extractor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		settings:  settings,
		backend:   backend,
		prompts:   prompts,
		extractor: extractor,
		logger:    logger,
	}
}

// HandleTurn performs one send/collect/extract cycle. Send and collect
// failures are returned unretried; the caller owns the spoken apology.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	ident := identity.NewContext(identity.Fields{
		AppID:     req.AppID,
		UserID:    req.UserID,
		DeviceID:  req.DeviceID,
		RequestID: req.RequestID,
	}, o.settings.ConversationPrefix, o.settings.UserHashSalt)

	res := Result{ConversationID: ident.ConversationID, SenderID: ident.SenderID}
	log := o.logger.With(
		zap.String("conversation_id", ident.ConversationID),
		zap.String("request_id", ident.RequestID))

	err := o.backend.SendMessage(ctx, webhook.OutboundMessage{
		ConversationID: ident.ConversationID,
		SenderID:       ident.SenderID,
		Content:        o.prompts.Build(req.Utterance),
		AgentID:        o.settings.AgentID,
	})
	if err != nil {
		return res, fmt.Errorf("send utterance: %w", err)
	}

	reply, err := o.backend.CollectReply(ctx, ident.ConversationID)
	if err != nil {
		return res, fmt.Errorf("collect reply: %w", err)
	}

	extracted := o.extractor.Extract(reply.Text)
	res.SpeechText = extracted.SpeechText
	res.Directive = extracted.Directive
	res.RawMessages = reply.RawMessages
	res.TimedOut = reply.TimedOut
	if res.TimedOut && res.SpeechText == "" {
		res.SpeechText = stillWorkingSpeech
	}

	log.Info("turn complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("timed_out", res.TimedOut),
		zap.Bool("received_messages", reply.ReceivedMessages),
		zap.Bool("directive", res.Directive != nil),
		zap.Int("raw_messages", len(res.RawMessages)))
	return res, nil
}
