package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ekisa-team/voxa/internal/rasa"
)

// Reply types sent to chat clients.
const (
	ReplyBot   = "bot"
	ReplyError = "error"
)

// DefaultSender is used when a chat message does not name its sender.
const DefaultSender = "user"

// Socket-session fallback texts.
const (
	MsgTechnicalDifficulties = "I'm experiencing technical difficulties. Please try again."
	MsgDidNotCatch           = "I didn't catch that. Could you please rephrase?"
	MsgTimedOut              = "The request timed out. Please try again."
	MsgUnreachable           = "Unable to reach the bot service. Please try again later."
)

// Health statuses reported by Chat.Health.
const (
	StatusHealthy    = "healthy"
	StatusUnhealthy  = "unhealthy"
	RasaConnected    = "connected"
	RasaDisconnected = "disconnected"
	RasaUnreachable  = "unreachable"
)

const healthCheckTimeout = 5 * time.Second

// ChatMessage is one inbound user message.
type ChatMessage struct {
	Text   string
	Sender string
}

// Reply is one outbound chat reply. Metadata is nil for synthesized
// fallback replies and non-nil for relayed bot replies.
type Reply struct {
	Text     string
	Type     string
	Metadata map[string]any
}

// HealthStatus describes reachability of the conversational server.
type HealthStatus struct {
	Status     string
	RasaStatus string
	Version    string
}

// ChatClient is the conversational server the relay forwards to.
type ChatClient interface {
	SendMessage(ctx context.Context, msg rasa.Message) ([]rasa.Reply, error)
	Version(ctx context.Context) (string, error)
}

// Chat relays user messages to the conversational server and normalizes
// its answers.
type Chat struct {
	client        ChatClient
	socketTimeout atomic.Int64
	logger        *slog.Logger
}

// NewChat creates a chat relay. socketTimeout bounds each exchange made on
// behalf of a socket session.
func NewChat(client ChatClient, socketTimeout time.Duration, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chat{
		client: client,
		logger: logger.With("component", "chat"),
	}
	c.SetSocketTimeout(socketTimeout)
	return c
}

// SetSocketTimeout changes the per-exchange bound for socket sessions.
func (c *Chat) SetSocketTimeout(d time.Duration) {
	c.socketTimeout.Store(int64(d))
}

// SocketTimeout returns the current per-exchange bound.
func (c *Chat) SocketTimeout() time.Duration {
	return time.Duration(c.socketTimeout.Load())
}

// Send forwards msg and returns one bot reply per downstream reply.
// Failures are returned as *rasa.Error for the caller to map.
func (c *Chat) Send(ctx context.Context, msg ChatMessage) ([]Reply, error) {
	sender := msg.Sender
	if sender == "" {
		sender = DefaultSender
	}

	replies, err := c.client.SendMessage(ctx, rasa.Message{Message: msg.Text, Sender: sender})
	if err != nil {
		return nil, err
	}
	if replies == nil {
		return nil, &rasa.Error{Kind: rasa.KindDecode, Op: "send message", Err: ErrNullReplies}
	}

	return botReplies(replies), nil
}

// Exchange forwards one socket message and always answers with at least one
// reply. The only error returned is a downstream body that could not be
// decoded, which ends the session.
func (c *Chat) Exchange(ctx context.Context, text string) ([]Reply, error) {
	if d := c.SocketTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	replies, err := c.client.SendMessage(ctx, rasa.Message{Message: text})
	if err != nil {
		kind := rasa.KindOf(err)
		c.logger.Warn("Chat exchange failed", "kind", kind, "error", err)

		switch kind {
		case rasa.KindStatus:
			return []Reply{{Text: MsgTechnicalDifficulties, Type: ReplyError}}, nil
		case rasa.KindTimeout:
			return []Reply{{Text: MsgTimedOut, Type: ReplyError}}, nil
		case rasa.KindDecode:
			return nil, err
		default:
			return []Reply{{Text: MsgUnreachable, Type: ReplyError}}, nil
		}
	}

	if len(replies) == 0 {
		return []Reply{{Text: MsgDidNotCatch, Type: ReplyBot}}, nil
	}

	return botReplies(replies), nil
}

// Health probes the conversational server. It never fails.
func (c *Chat) Health(ctx context.Context) HealthStatus {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
	}

	version, err := c.client.Version(ctx)
	if err == nil {
		return HealthStatus{Status: StatusHealthy, RasaStatus: RasaConnected, Version: version}
	}

	switch rasa.KindOf(err) {
	case rasa.KindDecode:
		return HealthStatus{Status: StatusHealthy, RasaStatus: RasaConnected, Version: rasa.UnknownVersion}
	case rasa.KindStatus:
		return HealthStatus{Status: StatusUnhealthy, RasaStatus: RasaDisconnected}
	}

	return HealthStatus{Status: StatusUnhealthy, RasaStatus: RasaUnreachable}
}

func botReplies(in []rasa.Reply) []Reply {
	out := make([]Reply, 0, len(in))
	for _, r := range in {
		md := r.Metadata
		if md == nil {
			md = map[string]any{}
		}
		out = append(out, Reply{Text: r.Text, Type: ReplyBot, Metadata: md})
	}
	return out
}
