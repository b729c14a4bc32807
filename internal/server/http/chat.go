package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ekisa-team/voxa/internal/rasa"
	"github.com/ekisa-team/voxa/internal/service"
)

// ChatRelay forwards chat messages to the conversational server.
type ChatRelay interface {
	Send(ctx context.Context, msg service.ChatMessage) ([]service.Reply, error)
	Exchange(ctx context.Context, text string) ([]service.Reply, error)
	Health(ctx context.Context) service.HealthStatus
}

type (
	// ChatMessageDTO is one user message.
	ChatMessageDTO struct {
		_      struct{} `json:"-" additionalProperties:"true"`
		Text   string   `json:"text"`
		Sender string   `json:"sender,omitempty" default:"user" required:"false"`
	}

	// ChatReplyDTO is one bot reply.
	ChatReplyDTO struct {
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata"`
		Type     string         `json:"type"`
	}

	// SocketFrame is one JSON frame written to a chat socket.
	SocketFrame struct {
		Text     string `json:"text"`
		Type     string `json:"type"`
		Metadata any    `json:"metadata,omitempty"`
	}
)

type (
	// SendMessageInput is the huma input for the send-message operation.
	SendMessageInput struct {
		Body ChatMessageDTO
	}

	// SendMessageOutput is the huma output for the send-message operation.
	SendMessageOutput struct {
		Body struct {
			Responses []ChatReplyDTO `json:"responses"`
		}
	}

	// ChatHealthOutput is the huma output for the chat health operation.
	ChatHealthOutput struct {
		Body struct {
			Status     string `json:"status"`
			RasaStatus string `json:"rasa_status"`
			Version    string `json:"version,omitempty"`
		}
	}
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ChatHandler handles chat relay requests.
type ChatHandler struct {
	chat   ChatRelay
	logger *slog.Logger
}

// NewChatHandler registers the chat operations on api. The socket endpoint
// is served by ServeWS and must be mounted on the router directly.
func NewChatHandler(api huma.API, chat ChatRelay, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &ChatHandler{chat: chat, logger: logger}

	huma.Register(api, huma.Operation{
		OperationID: "send-chat-message",
		Method:      http.MethodPost,
		Path:        "/chat/message",
		Summary:     "Send a message to the bot",
		Tags:        []string{"Chat"},
	}, h.handleSendMessage)

	huma.Register(api, huma.Operation{
		OperationID: "chat-health",
		Method:      http.MethodGet,
		Path:        "/chat/health",
		Summary:     "Check that the bot server is reachable",
		Tags:        []string{"Chat"},
	}, h.handleHealth)

	return h
}

func (h *ChatHandler) handleSendMessage(ctx context.Context, input *SendMessageInput) (*SendMessageOutput, error) {
	replies, err := h.chat.Send(ctx, service.ChatMessage{
		Text:   input.Body.Text,
		Sender: input.Body.Sender,
	})
	if err != nil {
		h.logger.Warn("Chat message failed", "kind", rasa.KindOf(err), "error", err)

		switch rasa.KindOf(err) {
		case rasa.KindTimeout, rasa.KindUnreachable:
			return nil, huma.Error503ServiceUnavailable("Service temporarily unavailable")
		default:
			return nil, huma.Error500InternalServerError("Unable to process request at the moment")
		}
	}

	out := &SendMessageOutput{}
	out.Body.Responses = make([]ChatReplyDTO, 0, len(replies))
	for _, r := range replies {
		out.Body.Responses = append(out.Body.Responses, ChatReplyDTO{
			Text:     r.Text,
			Metadata: r.Metadata,
			Type:     r.Type,
		})
	}
	return out, nil
}

func (h *ChatHandler) handleHealth(ctx context.Context, _ *struct{}) (*ChatHealthOutput, error) {
	status := h.chat.Health(ctx)

	out := &ChatHealthOutput{}
	out.Body.Status = status.Status
	out.Body.RasaStatus = status.RasaStatus
	out.Body.Version = status.Version
	return out, nil
}

// ServeWS runs one chat session. Messages are handled strictly in order;
// each produces one or more reply frames.
func (h *ChatHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	logger := h.logger.With("session", session)
	logger.Info("Chat session opened", "remote", r.RemoteAddr)

	// In-flight exchanges finish even if the client goes away.
	ctx := context.WithoutCancel(r.Context())

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Info("Chat session closed")
			} else {
				logger.Warn("Chat session read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			logger.Warn("Chat session received a non-text frame", "type", msgType)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "text frames only"),
				time.Now().Add(time.Second))
			return
		}

		replies, err := h.chat.Exchange(ctx, string(data))
		if err != nil {
			logger.Error("Chat session aborted", "error", err)
			return
		}

		for _, reply := range replies {
			if err := conn.WriteJSON(socketFrame(reply)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logger.Warn("Chat session write failed", "error", err)
				}
				return
			}
		}
	}
}

func socketFrame(r service.Reply) SocketFrame {
	f := SocketFrame{Text: r.Text, Type: r.Type}
	if r.Metadata != nil {
		f.Metadata = r.Metadata
	}
	return f
}
