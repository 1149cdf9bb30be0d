package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler owns the websocket endpoint: handshake, registration, and the
// per-connection event loop dispatching the realtime protocol.
type Handler struct {
	hub           *Hub
	registry      *Registry
	verifier      auth.TokenVerifier
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	presence      *presence.Coordinator
	typing        *presence.TypingTracker
	deliveryDelay time.Duration
}

// NewHandler constructs the websocket handler and its typing tracker.
func NewHandler(
	hub *Hub,
	registry *Registry,
	verifier auth.TokenVerifier,
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	coordinator *presence.Coordinator,
	typingTTL time.Duration,
	deliveryDelay time.Duration,
) *Handler {
	h := &Handler{
		hub:           hub,
		registry:      registry,
		verifier:      verifier,
		conversations: conversations,
		messages:      messages,
		presence:      coordinator,
		deliveryDelay: deliveryDelay,
	}
	h.typing = presence.NewTypingTracker(typingTTL, func(conversationID, userID int) {
		hub.Broadcast(conversationID, models.EventTypingUser, models.TypingPayload{
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       false,
		})
	})
	return h
}

// Typing exposes the live typing set, mainly for introspection and tests.
func (h *Handler) Typing() *presence.TypingTracker {
	return h.typing
}

// Handle upgrades the connection after authenticating the bearer credential,
// registers the client and starts its pumps. An invalid credential refuses
// the connection before any registration happens.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := auth.BearerFromRequest(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}
	userID, err := h.verifier.Verify(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, userID, info)

	if prev := h.registry.Register(userID, client); prev != nil {
		// Last-writer-wins: the older connection is superseded.
		h.hub.Remove(prev)
		prev.Close()
	}
	h.hub.Add(client)
	h.presence.HandleConnect(ctx, userID)

	observability.IncWSActive()
	observability.PublishConnEvent(ctx, "ws_connect", wsConnEventFields(info), "")

	go client.WritePump()
	go h.readLoop(client)
}

func (h *Handler) readLoop(client *Client) {
	ctx := context.Background()
	var closeReason string

	defer func() {
		h.registry.Unregister(client.UserID, client)
		h.hub.Remove(client)
		for _, conversationID := range h.typing.StopAllForUser(client.UserID) {
			h.hub.Broadcast(conversationID, models.EventTypingUser, models.TypingPayload{
				ConversationID: conversationID,
				UserID:         client.UserID,
				IsTyping:       false,
			})
		}
		h.presence.HandleDisconnect(ctx, client.UserID)
		client.Close()

		observability.DecWSActive()
		observability.PublishConnEvent(ctx, "ws_disconnect", wsConnEventFields(client.Info), closeReason)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.PublishConnEvent(ctx, "ws_error", wsConnEventFields(client.Info), closeReason)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(client, models.ErrCodeValidation, "malformed event")
			continue
		}
		h.dispatch(ctx, client, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, env models.Envelope) {
	switch env.Event {
	case models.EventJoinConversation:
		var p models.ConversationRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleJoin(ctx, client, p.ConversationID)
	case models.EventLeaveConversation:
		var p models.ConversationRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.hub.Leave(client, p.ConversationID)
	case models.EventMessageSend:
		var p models.SendMessagePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleSend(ctx, client, p)
	case models.EventTypingStart:
		var p models.ConversationRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleTypingStart(client, p.ConversationID)
	case models.EventTypingStop:
		var p models.ConversationRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleTypingStop(client, p.ConversationID)
	case models.EventMessageReact:
		var p models.ReactPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleReact(ctx, client, p)
	case models.EventMessageRead:
		var p models.ReadPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleRead(ctx, client, p)
	case models.EventMessageEdit:
		var p models.EditPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleEdit(ctx, client, p)
	case models.EventMessageDelete:
		var p models.DeletePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.handleDelete(ctx, client, p)
	case models.EventStatusUpdate:
		var p models.StatusUpdatePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		if err := h.presence.SetStatus(ctx, client.UserID, p.Status); err != nil {
			h.sendError(client, models.ErrCodeValidation, err.Error())
		}
	default:
		h.sendError(client, models.ErrCodeValidation, "unknown event: "+env.Event)
	}
}

// handleJoin admits the client to the room only after confirming it is a
// conversation participant.
func (h *Handler) handleJoin(ctx context.Context, client *Client, conversationID int) {
	member, err := h.conversations.IsParticipant(ctx, conversationID, client.UserID)
	if err != nil {
		h.sendError(client, models.ErrCodeInternal, "failed to verify membership")
		return
	}
	if !member {
		h.sendError(client, models.ErrCodeUnauthorized, "not a conversation participant")
		return
	}
	h.hub.Join(client, conversationID)
}

func (h *Handler) handleSend(ctx context.Context, client *Client, p models.SendMessagePayload) {
	if p.ConversationID == 0 || p.Content == "" {
		h.sendError(client, models.ErrCodeValidation, "conversationId and content are required")
		return
	}
	kind := p.Kind
	if kind == "" {
		kind = models.KindText
	}
	if !kind.Valid() {
		h.sendError(client, models.ErrCodeValidation, "unknown message type")
		return
	}

	conv, err := h.conversations.Get(ctx, p.ConversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			h.sendError(client, models.ErrCodeNotFound, "conversation not found")
		} else {
			h.sendError(client, models.ErrCodeInternal, "failed to load conversation")
		}
		return
	}

	msg, err := h.messages.Create(ctx, repositories.CreateMessageParams{
		ConversationID: conv.ID,
		SenderID:       client.UserID,
		Content:        p.Content,
		Kind:           kind,
		ReplyTo:        p.ReplyTo,
		FileURL:        p.FileURL,
		FileName:       p.FileName,
		FileSize:       p.FileSize,
	})
	if err != nil {
		log.Printf("create message in conversation %d: %v", conv.ID, err)
		h.sendError(client, models.ErrCodeInternal, "failed to send message")
		return
	}

	if err := h.conversations.SetLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		log.Printf("update last message for conversation %d: %v", conv.ID, err)
	}

	h.hub.Broadcast(conv.ID, models.EventMessageNew, models.NewMessagePayload{Message: msg, TempID: p.TempID})
	h.hub.Send(client, models.EventMessageSent, models.SentPayload{TempID: p.TempID, Message: msg})

	h.scheduleDeliveryPromotion(msg.ID, conv.ID, client.UserID)
}

// scheduleDeliveryPromotion attempts the sent -> delivered transition shortly
// after creation. Best effort and fire-and-forget: no recipient online means
// no promotion, and nothing upstream waits on the outcome.
func (h *Handler) scheduleDeliveryPromotion(messageID, conversationID, senderID int) {
	time.AfterFunc(h.deliveryDelay, func() {
		ctx := context.Background()
		participants, err := h.conversations.Participants(ctx, conversationID)
		if err != nil {
			log.Printf("load participants for delivery promotion: %v", err)
			return
		}

		promoted := false
		var deliveredAt time.Time
		for _, recipientID := range participants {
			if recipientID == senderID {
				continue
			}
			if _, online := h.registry.Lookup(recipientID); !online {
				continue
			}
			didPromote, at, err := h.messages.MarkDelivered(ctx, messageID, recipientID)
			if err != nil {
				log.Printf("mark message %d delivered to %d: %v", messageID, recipientID, err)
				continue
			}
			if didPromote {
				promoted, deliveredAt = true, at
			}
		}

		if promoted {
			h.hub.Broadcast(conversationID, models.EventMessageDelivered, models.DeliveredPayload{
				MessageID:   messageID,
				DeliveredAt: deliveredAt,
			})
		}
	})
}

func (h *Handler) handleRead(ctx context.Context, client *Client, p models.ReadPayload) {
	msg, err := h.messages.Get(ctx, p.MessageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			h.sendError(client, models.ErrCodeNotFound, "message not found")
		} else {
			h.sendError(client, models.ErrCodeInternal, "failed to load message")
		}
		return
	}

	res, err := h.messages.MarkRead(ctx, p.MessageID, client.UserID)
	if err != nil {
		h.sendError(client, models.ErrCodeInternal, "failed to mark message read")
		return
	}
	if !res.Added {
		// Already read by this user; nothing to announce.
		return
	}

	h.hub.Broadcast(msg.ConversationID, models.EventMessageReadAck, models.ReadReceiptPayload{
		MessageID: p.MessageID,
		UserID:    client.UserID,
		ReadAt:    res.ReadAt,
	})
	if res.Promoted {
		h.hub.Broadcast(msg.ConversationID, models.EventMessageSeen, models.SeenPayload{
			MessageID: p.MessageID,
			SeenAt:    res.SeenAt,
		})
	}
}

func (h *Handler) handleReact(ctx context.Context, client *Client, p models.ReactPayload) {
	if p.Emoji == "" {
		h.sendError(client, models.ErrCodeValidation, "emoji is required")
		return
	}

	msg, err := h.messages.Get(ctx, p.MessageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			h.sendError(client, models.ErrCodeNotFound, "message not found")
		} else {
			h.sendError(client, models.ErrCodeInternal, "failed to load message")
		}
		return
	}

	action, err := h.messages.ToggleReaction(ctx, p.MessageID, client.UserID, p.Emoji)
	if err != nil {
		h.sendError(client, models.ErrCodeInternal, "failed to react")
		return
	}

	h.hub.Broadcast(msg.ConversationID, models.EventMessageReaction, models.ReactionPayload{
		MessageID: p.MessageID,
		UserID:    client.UserID,
		Emoji:     p.Emoji,
		Action:    action,
	})
}

func (h *Handler) handleEdit(ctx context.Context, client *Client, p models.EditPayload) {
	if p.NewContent == "" {
		h.sendError(client, models.ErrCodeValidation, "newContent is required")
		return
	}

	msg, err := h.messages.Edit(ctx, p.MessageID, client.UserID, p.NewContent)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			h.sendError(client, models.ErrCodeNotFound, "message not found")
		case errors.Is(err, repositories.ErrNotSender):
			h.sendError(client, models.ErrCodeUnauthorized, "only the sender can edit a message")
		default:
			h.sendError(client, models.ErrCodeInternal, "failed to edit message")
		}
		return
	}

	h.hub.Broadcast(msg.ConversationID, models.EventMessageEdited, models.EditedPayload{
		MessageID:  msg.ID,
		NewContent: msg.Content,
		EditedAt:   time.Now().UTC(),
	})
}

func (h *Handler) handleDelete(ctx context.Context, client *Client, p models.DeletePayload) {
	switch p.Scope {
	case models.DeleteScopeEveryone:
		msg, err := h.messages.Get(ctx, p.MessageID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				h.sendError(client, models.ErrCodeNotFound, "message not found")
			} else {
				h.sendError(client, models.ErrCodeInternal, "failed to load message")
			}
			return
		}
		if err := h.messages.DeleteForAll(ctx, p.MessageID, client.UserID); err != nil {
			switch {
			case errors.Is(err, repositories.ErrMessageNotFound):
				h.sendError(client, models.ErrCodeNotFound, "message not found")
			case errors.Is(err, repositories.ErrNotSender):
				h.sendError(client, models.ErrCodeUnauthorized, "only the sender can delete for everyone")
			default:
				h.sendError(client, models.ErrCodeInternal, "failed to delete message")
			}
			return
		}
		h.hub.Broadcast(msg.ConversationID, models.EventMessageDeleted, models.DeletedPayload{
			MessageID: p.MessageID,
			Scope:     models.DeleteScopeEveryone,
		})
	case models.DeleteScopeMine:
		if err := h.messages.HideForUser(ctx, p.MessageID, client.UserID); err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				h.sendError(client, models.ErrCodeNotFound, "message not found")
			} else {
				h.sendError(client, models.ErrCodeInternal, "failed to delete message")
			}
			return
		}
		// Other participants' views are unchanged, so only the requester hears.
		h.hub.Send(client, models.EventMessageDeleted, models.DeletedPayload{
			MessageID: p.MessageID,
			Scope:     models.DeleteScopeMine,
		})
	default:
		h.sendError(client, models.ErrCodeValidation, "scope must be mine or everyone")
	}
}

func (h *Handler) handleTypingStart(client *Client, conversationID int) {
	if h.typing.Start(conversationID, client.UserID) {
		h.hub.BroadcastExcept(conversationID, models.EventTypingUser, models.TypingPayload{
			ConversationID: conversationID,
			UserID:         client.UserID,
			IsTyping:       true,
		}, client)
	}
}

func (h *Handler) handleTypingStop(client *Client, conversationID int) {
	if h.typing.Stop(conversationID, client.UserID) {
		h.hub.BroadcastExcept(conversationID, models.EventTypingUser, models.TypingPayload{
			ConversationID: conversationID,
			UserID:         client.UserID,
			IsTyping:       false,
		}, client)
	}
}

func (h *Handler) decode(client *Client, raw json.RawMessage, into any) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		h.sendError(client, models.ErrCodeValidation, "malformed payload")
		return false
	}
	return true
}

// sendError reports a failure to the originating connection only; errors are
// never broadcast into a room.
func (h *Handler) sendError(client *Client, code, message string) {
	h.hub.Send(client, models.EventMessageError, models.ErrorPayload{Code: code, Error: message})
}

func wsConnEventFields(info ConnInfo) observability.ConnFields {
	return observability.ConnFields{
		ConnID:      info.ConnID,
		UserID:      info.UserID,
		DeviceID:    info.DeviceID,
		IP:          info.IP,
		RequestID:   info.RequestID,
		TraceID:     info.TraceID,
		ConnectedAt: info.ConnectedAt,
	}
}
