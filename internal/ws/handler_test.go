package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

type handlerFixture struct {
	handler  *Handler
	hub      *Hub
	registry *Registry
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
	userRepo *mocks.UserRepositoryMock
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	hub := NewHub()
	registry := NewRegistry()
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	coordinator := presence.NewCoordinator(userRepo, nil, hub)
	handler := NewHandler(hub, registry, new(mocks.TokenVerifierMock), convRepo, msgRepo, coordinator, 50*time.Millisecond, 10*time.Millisecond)
	return &handlerFixture{
		handler:  handler,
		hub:      hub,
		registry: registry,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
	}
}

func (f *handlerFixture) connect(userID int, conversationIDs ...int) *Client {
	client := newTestClient(userID)
	f.registry.Register(userID, client)
	f.hub.Add(client)
	for _, id := range conversationIDs {
		f.hub.Join(client, id)
	}
	return client
}

func (f *handlerFixture) dispatch(t *testing.T, client *Client, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	f.handler.dispatch(context.Background(), client, models.Envelope{Event: event, Data: raw})
}

func TestSendMessageFansOutWithTempID(t *testing.T) {
	f := newHandlerFixture(t)
	sender := f.connect(1, 10)
	recipient := f.connect(2, 10)

	created := models.Message{ID: 7, ConversationID: 10, SenderID: 1, Content: "hi", Kind: models.KindText, Status: models.StatusSent, CreatedAt: time.Now()}
	deliveredAt := time.Now()

	f.convRepo.On("Get", mock.Anything, 10).Return(models.Conversation{ID: 10, Kind: models.ConversationDirect}, nil).Once()
	f.msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(p repositories.CreateMessageParams) bool {
		return p.ConversationID == 10 && p.SenderID == 1 && p.Content == "hi"
	})).Return(created, nil).Once()
	f.convRepo.On("SetLastMessage", mock.Anything, 10, 7, mock.Anything).Return(nil).Once()
	f.convRepo.On("Participants", mock.Anything, 10).Return([]int{1, 2}, nil).Once()
	f.msgRepo.On("MarkDelivered", mock.Anything, 7, 2).Return(true, deliveredAt, nil).Once()

	f.dispatch(t, sender, models.EventMessageSend, models.SendMessagePayload{ConversationID: 10, Content: "hi", TempID: "t-1"})

	env := recvEvent(t, recipient)
	require.Equal(t, models.EventMessageNew, env.Event)
	var newPayload models.NewMessagePayload
	require.NoError(t, json.Unmarshal(env.Data, &newPayload))
	assert.Equal(t, 7, newPayload.Message.ID)
	assert.Equal(t, "t-1", newPayload.TempID)

	require.Equal(t, models.EventMessageNew, recvEvent(t, sender).Event)
	env = recvEvent(t, sender)
	require.Equal(t, models.EventMessageSent, env.Event)
	var sentPayload models.SentPayload
	require.NoError(t, json.Unmarshal(env.Data, &sentPayload))
	assert.Equal(t, "t-1", sentPayload.TempID)

	// Delivery promotion runs after the configured delay.
	deadline := time.After(time.Second)
	for {
		select {
		case frame := <-recipient.send:
			var got models.Envelope
			require.NoError(t, json.Unmarshal(frame, &got))
			if got.Event == models.EventMessageDelivered {
				var delivered models.DeliveredPayload
				require.NoError(t, json.Unmarshal(got.Data, &delivered))
				assert.Equal(t, 7, delivered.MessageID)
				f.convRepo.AssertExpectations(t)
				f.msgRepo.AssertExpectations(t)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for delivery promotion")
		}
	}
}

func TestSendMessageValidationErrorGoesToOriginOnly(t *testing.T) {
	f := newHandlerFixture(t)
	sender := f.connect(1, 10)
	recipient := f.connect(2, 10)

	f.dispatch(t, sender, models.EventMessageSend, models.SendMessagePayload{ConversationID: 10})

	env := recvEvent(t, sender)
	require.Equal(t, models.EventMessageError, env.Event)
	var errPayload models.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &errPayload))
	assert.Equal(t, models.ErrCodeValidation, errPayload.Code)
	assertNoEvent(t, recipient)
	f.msgRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendMessageUnknownConversation(t *testing.T) {
	f := newHandlerFixture(t)
	sender := f.connect(1)

	f.convRepo.On("Get", mock.Anything, 99).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	f.dispatch(t, sender, models.EventMessageSend, models.SendMessagePayload{ConversationID: 99, Content: "hi"})

	env := recvEvent(t, sender)
	require.Equal(t, models.EventMessageError, env.Event)
	var errPayload models.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &errPayload))
	assert.Equal(t, models.ErrCodeNotFound, errPayload.Code)
}

func TestJoinRequiresMembership(t *testing.T) {
	f := newHandlerFixture(t)
	client := f.connect(1)

	f.convRepo.On("IsParticipant", mock.Anything, 10, 1).Return(false, nil).Once()

	f.dispatch(t, client, models.EventJoinConversation, models.ConversationRefPayload{ConversationID: 10})

	env := recvEvent(t, client)
	require.Equal(t, models.EventMessageError, env.Event)
	var errPayload models.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &errPayload))
	assert.Equal(t, models.ErrCodeUnauthorized, errPayload.Code)
	assert.Equal(t, 0, f.hub.RoomSize(10))
}

func TestJoinAdmitsParticipant(t *testing.T) {
	f := newHandlerFixture(t)
	client := f.connect(1)

	f.convRepo.On("IsParticipant", mock.Anything, 10, 1).Return(true, nil).Once()

	f.dispatch(t, client, models.EventJoinConversation, models.ConversationRefPayload{ConversationID: 10})

	assert.Equal(t, 1, f.hub.RoomSize(10))
	assertNoEvent(t, client)
}

func TestReadReceiptBroadcastsOnceAndPromotes(t *testing.T) {
	f := newHandlerFixture(t)
	reader := f.connect(2, 10)
	sender := f.connect(1, 10)

	msg := models.Message{ID: 7, ConversationID: 10, SenderID: 1}
	readAt := time.Now()

	f.msgRepo.On("Get", mock.Anything, 7).Return(msg, nil).Twice()
	f.msgRepo.On("MarkRead", mock.Anything, 7, 2).
		Return(repositories.ReadResult{Added: true, ReadAt: readAt, Promoted: true, SeenAt: readAt}, nil).Once()

	f.dispatch(t, reader, models.EventMessageRead, models.ReadPayload{MessageID: 7, ConversationID: 10})

	env := recvEvent(t, sender)
	require.Equal(t, models.EventMessageReadAck, env.Event)
	env = recvEvent(t, sender)
	require.Equal(t, models.EventMessageSeen, env.Event)

	// A repeat read from the same user is acknowledged silently.
	f.msgRepo.On("MarkRead", mock.Anything, 7, 2).
		Return(repositories.ReadResult{Added: false}, nil).Once()

	f.dispatch(t, reader, models.EventMessageRead, models.ReadPayload{MessageID: 7, ConversationID: 10})

	// Drain the reader's own copies of the first broadcast before checking.
	recvEvent(t, reader)
	recvEvent(t, reader)
	assertNoEvent(t, sender)
	f.msgRepo.AssertExpectations(t)
}

func TestReactionToggleBroadcastsAction(t *testing.T) {
	f := newHandlerFixture(t)
	reactor := f.connect(2, 10)
	other := f.connect(1, 10)

	msg := models.Message{ID: 7, ConversationID: 10, SenderID: 1}
	f.msgRepo.On("Get", mock.Anything, 7).Return(msg, nil).Twice()
	f.msgRepo.On("ToggleReaction", mock.Anything, 7, 2, "👍").Return("add", nil).Once()
	f.msgRepo.On("ToggleReaction", mock.Anything, 7, 2, "👍").Return("remove", nil).Once()

	f.dispatch(t, reactor, models.EventMessageReact, models.ReactPayload{MessageID: 7, Emoji: "👍"})

	env := recvEvent(t, other)
	require.Equal(t, models.EventMessageReaction, env.Event)
	var reaction models.ReactionPayload
	require.NoError(t, json.Unmarshal(env.Data, &reaction))
	assert.Equal(t, "add", reaction.Action)

	f.dispatch(t, reactor, models.EventMessageReact, models.ReactPayload{MessageID: 7, Emoji: "👍"})

	env = recvEvent(t, other)
	require.NoError(t, json.Unmarshal(env.Data, &reaction))
	assert.Equal(t, "remove", reaction.Action)
}

func TestEditRejectedForNonSender(t *testing.T) {
	f := newHandlerFixture(t)
	intruder := f.connect(2, 10)
	other := f.connect(1, 10)

	f.msgRepo.On("Edit", mock.Anything, 7, 2, "changed").Return(models.Message{}, repositories.ErrNotSender).Once()

	f.dispatch(t, intruder, models.EventMessageEdit, models.EditPayload{MessageID: 7, NewContent: "changed"})

	env := recvEvent(t, intruder)
	require.Equal(t, models.EventMessageError, env.Event)
	var errPayload models.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &errPayload))
	assert.Equal(t, models.ErrCodeUnauthorized, errPayload.Code)
	assertNoEvent(t, other)
}

func TestEditBroadcastsNewContent(t *testing.T) {
	f := newHandlerFixture(t)
	sender := f.connect(1, 10)
	other := f.connect(2, 10)

	edited := models.Message{ID: 7, ConversationID: 10, SenderID: 1, Content: "changed", IsEdited: true}
	f.msgRepo.On("Edit", mock.Anything, 7, 1, "changed").Return(edited, nil).Once()

	f.dispatch(t, sender, models.EventMessageEdit, models.EditPayload{MessageID: 7, NewContent: "changed"})

	env := recvEvent(t, other)
	require.Equal(t, models.EventMessageEdited, env.Event)
	var payload models.EditedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "changed", payload.NewContent)
}

func TestDeleteForEveryoneBroadcasts(t *testing.T) {
	f := newHandlerFixture(t)
	sender := f.connect(1, 10)
	other := f.connect(2, 10)

	msg := models.Message{ID: 7, ConversationID: 10, SenderID: 1}
	f.msgRepo.On("Get", mock.Anything, 7).Return(msg, nil).Once()
	f.msgRepo.On("DeleteForAll", mock.Anything, 7, 1).Return(nil).Once()

	f.dispatch(t, sender, models.EventMessageDelete, models.DeletePayload{MessageID: 7, Scope: models.DeleteScopeEveryone})

	env := recvEvent(t, other)
	require.Equal(t, models.EventMessageDeleted, env.Event)
	var payload models.DeletedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, models.DeleteScopeEveryone, payload.Scope)
}

func TestDeleteForMeStaysPrivate(t *testing.T) {
	f := newHandlerFixture(t)
	requester := f.connect(2, 10)
	other := f.connect(1, 10)

	f.msgRepo.On("HideForUser", mock.Anything, 7, 2).Return(nil).Once()

	f.dispatch(t, requester, models.EventMessageDelete, models.DeletePayload{MessageID: 7, Scope: models.DeleteScopeMine})

	env := recvEvent(t, requester)
	require.Equal(t, models.EventMessageDeleted, env.Event)
	var payload models.DeletedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, models.DeleteScopeMine, payload.Scope)
	assertNoEvent(t, other)
}

func TestTypingStartIsEdgeTriggered(t *testing.T) {
	f := newHandlerFixture(t)
	typist := f.connect(1, 10)
	watcher := f.connect(2, 10)

	f.dispatch(t, typist, models.EventTypingStart, models.ConversationRefPayload{ConversationID: 10})

	env := recvEvent(t, watcher)
	require.Equal(t, models.EventTypingUser, env.Event)
	var payload models.TypingPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.True(t, payload.IsTyping)
	assertNoEvent(t, typist)

	// Repeated starts refresh the timer without re-broadcasting.
	f.dispatch(t, typist, models.EventTypingStart, models.ConversationRefPayload{ConversationID: 10})
	assertNoEvent(t, watcher)

	f.dispatch(t, typist, models.EventTypingStop, models.ConversationRefPayload{ConversationID: 10})
	env = recvEvent(t, watcher)
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.False(t, payload.IsTyping)

	// Stop when not typing stays silent.
	f.dispatch(t, typist, models.EventTypingStop, models.ConversationRefPayload{ConversationID: 10})
	assertNoEvent(t, watcher)
}

func TestTypingExpiresAutomatically(t *testing.T) {
	f := newHandlerFixture(t)
	typist := f.connect(1, 10)
	watcher := f.connect(2, 10)

	f.dispatch(t, typist, models.EventTypingStart, models.ConversationRefPayload{ConversationID: 10})
	recvEvent(t, watcher)

	// The expiry broadcast reaches the whole room, typist included.
	env := recvEvent(t, watcher)
	require.Equal(t, models.EventTypingUser, env.Event)
	var payload models.TypingPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.False(t, payload.IsTyping)
	recvEvent(t, typist)
}

func TestStatusUpdateBroadcastsToEveryone(t *testing.T) {
	f := newHandlerFixture(t)
	client := f.connect(1)
	observer := f.connect(2)

	f.userRepo.On("UpdatePresence", mock.Anything, 1, models.PresenceAway, mock.Anything).Return(nil).Once()

	f.dispatch(t, client, models.EventStatusUpdate, models.StatusUpdatePayload{Status: models.PresenceAway})

	env := recvEvent(t, observer)
	require.Equal(t, models.EventUserStatus, env.Event)
	var payload models.UserStatusPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, 1, payload.UserID)
	assert.Equal(t, models.PresenceAway, payload.Status)
	f.userRepo.AssertExpectations(t)
}

func TestStatusUpdateRejectsUnknownStatus(t *testing.T) {
	f := newHandlerFixture(t)
	client := f.connect(1)

	f.dispatch(t, client, models.EventStatusUpdate, models.StatusUpdatePayload{Status: "busy"})

	env := recvEvent(t, client)
	require.Equal(t, models.EventMessageError, env.Event)
	f.userRepo.AssertNotCalled(t, "UpdatePresence", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnknownEventReturnsError(t *testing.T) {
	f := newHandlerFixture(t)
	client := f.connect(1)

	f.handler.dispatch(context.Background(), client, models.Envelope{Event: "message:bogus", Data: json.RawMessage("{}")})

	env := recvEvent(t, client)
	require.Equal(t, models.EventMessageError, env.Event)
}
