package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tixo-social/tixo/assistant"
	"github.com/tixo-social/tixo/automod"
	"github.com/tixo-social/tixo/automod/keyword"
	"github.com/tixo-social/tixo/util/tid"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultAssistantID      = "ai_bot"
	DefaultAssistantTimeout = 30 * time.Second
	DefaultHistoryLimit     = 20

	// in grapheme clusters
	MaxMessageLength = 2000
)

// Moderates and appends chat messages, and posts assistant replies where the conversation calls for one.
//
// Sends to one conversation are serialized: each Send's messages are appended contiguously. Different conversations proceed in parallel.
type Gateway struct {
	Engine    *automod.Engine
	Store     Store
	Assistant assistant.Bridge
	// reserved participant id which denotes the assistant
	AssistantID      string
	AssistantTimeout time.Duration
	// number of prior messages passed to the assistant
	HistoryLimit int
	Clock        *tid.Clock
	Logger       *slog.Logger

	locks  *xsync.MapOf[string, *sync.Mutex]
	subs   *broker
	limits *senderLimits
}

type GatewayConfig struct {
	AssistantID      string
	AssistantTimeout time.Duration
	HistoryLimit     int
	// messages per minute per sender; zero means no limit
	SendRateLimit int
	Logger        *slog.Logger
}

func NewGateway(engine *automod.Engine, store Store, bridge assistant.Bridge, config GatewayConfig) *Gateway {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.AssistantID == "" {
		config.AssistantID = DefaultAssistantID
	}
	if config.AssistantTimeout <= 0 {
		config.AssistantTimeout = DefaultAssistantTimeout
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	g := &Gateway{
		Engine:           engine,
		Store:            store,
		Assistant:        bridge,
		AssistantID:      config.AssistantID,
		AssistantTimeout: config.AssistantTimeout,
		HistoryLimit:     config.HistoryLimit,
		Clock:            tid.NewClock(1),
		Logger:           logger.With("system", "chat"),
		locks:            xsync.NewMapOf[string, *sync.Mutex](),
		subs:             newBroker(subscriberBuffer),
	}
	if config.SendRateLimit > 0 {
		g.limits = newSenderLimits(config.SendRateLimit)
	}
	return g
}

// Submits a message on behalf of `senderID`, returning the messages appended to the conversation (in order).
//
// A suspended sender gets a [*automod.RejectedError] and nothing is appended. A message which fails moderation is not stored: a single system notice is appended and returned instead, with a nil error. If ctx is cancelled while the assistant is replying, the reply is dropped and only the user message is returned.
func (g *Gateway) Send(ctx context.Context, conversationID, senderID, text string) ([]*Message, error) {
	ctx, span := tracer.Start(ctx, "Send")
	defer span.End()
	span.SetAttributes(attribute.String("conversation", conversationID), attribute.String("sender", senderID))

	if senderID == "" {
		return nil, ErrMissingSender
	}
	blocked, err := g.Engine.Ledger.IsBlocked(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if blocked {
		sendCount.WithLabelValues("suspended").Inc()
		return nil, automod.SuspendedVerdict().Err()
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if keyword.GraphemeCount(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if g.limits != nil && !g.limits.allow(senderID) {
		sendCount.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	// lock entries are only created for conversations which exist
	conv, err := g.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	mtx, _ := g.locks.LoadOrCompute(conversationID, func() *sync.Mutex { return &sync.Mutex{} })
	mtx.Lock()
	defer mtx.Unlock()

	logger := g.Logger.With("conversation", conversationID, "user", senderID)

	verdict, err := g.Engine.Evaluate(ctx, text, senderID)
	if err != nil {
		return nil, fmt.Errorf("moderating message: %w", err)
	}
	if !verdict.Approved {
		if verdict.Code == automod.ReasonAccountSuspended {
			sendCount.WithLabelValues("suspended").Inc()
			return nil, verdict.Err()
		}
		notice := g.newMessage(conversationID, SystemSenderID, OriginSystem, blockedNotice(verdict))
		if err := g.append(ctx, notice); err != nil {
			return nil, err
		}
		sendCount.WithLabelValues("rejected").Inc()
		logger.Info("message blocked", "reason", verdict.ReasonCodeString())
		return []*Message{notice}, nil
	}

	// history is the log before this message
	var history []*Message
	replies := conv.AssistantReplies(g.AssistantID)
	if replies {
		history, err = g.Store.Messages(ctx, conversationID, g.HistoryLimit)
		if err != nil {
			return nil, err
		}
	}

	msg := g.newMessage(conversationID, senderID, OriginUser, text)
	if err := g.append(ctx, msg); err != nil {
		return nil, err
	}
	sendCount.WithLabelValues("approved").Inc()
	out := []*Message{msg}

	if !replies {
		return out, nil
	}

	reply, ok := g.assistantReply(ctx, logger, text, history)
	if !ok {
		return out, nil
	}
	am := g.newMessage(conversationID, g.AssistantID, OriginAssistant, reply)
	if err := g.append(ctx, am); err != nil {
		return out, err
	}
	return append(out, am), nil
}

// Returns false if the caller went away before the reply arrived.
func (g *Gateway) assistantReply(ctx context.Context, logger *slog.Logger, prompt string, history []*Message) (string, bool) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.AssistantTimeout)
	defer cancel()

	var reply string
	var err error
	if g.Assistant == nil {
		err = assistant.ErrNotConfigured
	} else {
		reply, err = g.Assistant.Respond(callCtx, prompt, historyTurns(history))
	}
	assistantDuration.Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		assistantCount.WithLabelValues("discarded").Inc()
		logger.Info("caller went away, discarding assistant reply", "err", ctx.Err())
		return "", false
	}
	if err != nil {
		assistantCount.WithLabelValues("error").Inc()
		logger.Warn("assistant call failed, posting fallback", "err", err)
		return assistant.FallbackError, true
	}
	if strings.TrimSpace(reply) == "" {
		assistantCount.WithLabelValues("empty").Inc()
		logger.Warn("assistant returned empty reply, posting fallback")
		return assistant.FallbackEmpty, true
	}
	assistantCount.WithLabelValues("ok").Inc()
	return reply, true
}

// Stored messages for a conversation, oldest first.
func (g *Gateway) Messages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	return g.Store.Messages(ctx, conversationID, limit)
}

// Live feed of messages appended to a conversation. Slow consumers miss messages rather than blocking senders. Call the returned func to unsubscribe.
func (g *Gateway) Subscribe(conversationID string) (<-chan *Message, func()) {
	return g.subs.subscribe(conversationID)
}

func (g *Gateway) append(ctx context.Context, msg *Message) error {
	if err := g.Store.Append(ctx, msg); err != nil {
		return fmt.Errorf("appending %s message: %w", msg.Origin, err)
	}
	g.subs.publish(msg)
	return nil
}

func (g *Gateway) newMessage(conversationID, senderID string, origin Origin, text string) *Message {
	id, now := g.Clock.Next()
	return &Message{
		ID:             id.String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        text,
		CreatedAt:      now,
		Origin:         origin,
	}
}

func blockedNotice(v automod.Verdict) string {
	return fmt.Sprintf("⚠️ Your message was blocked. %s Please review our community guidelines.", v.Reason)
}

// system notices are not shown to the assistant
func historyTurns(msgs []*Message) []assistant.Turn {
	out := make([]assistant.Turn, 0, len(msgs))
	for _, m := range msgs {
		switch m.Origin {
		case OriginUser:
			out = append(out, assistant.Turn{Role: assistant.RoleUser, Text: m.Content})
		case OriginAssistant:
			out = append(out, assistant.Turn{Role: assistant.RoleModel, Text: m.Content})
		}
	}
	return out
}
