package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
)

func TestEmitBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.messaging", "messaging-service", "test")

	userID := "7"
	publisher.On("Publish", mock.Anything, "audit.messaging", mock.MatchedBy(func(event any) bool {
		env, ok := event.(AuditEnvelope)
		if !ok {
			return false
		}
		return env.EventType == "audit_log" &&
			env.Service == "messaging-service" &&
			env.RequestID == "req-1" &&
			env.UserID != nil && *env.UserID == "7" &&
			env.Payload.Level == "INFO"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "hello", "req-1", &userID)
	publisher.AssertExpectations(t)
}

func TestEmitMessageActionCarriesIDs(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.messaging", "messaging-service", "test")

	publisher.On("Publish", mock.Anything, "audit.messaging", mock.MatchedBy(func(event any) bool {
		env, ok := event.(AuditEnvelope)
		if !ok {
			return false
		}
		return env.Payload.Action == "delete_for_everyone" &&
			env.Payload.ConversationID != nil && *env.Payload.ConversationID == 3 &&
			env.Payload.MessageID != nil && *env.Payload.MessageID == 7
	})).Return(nil).Once()

	emitter.EmitMessageAction(context.Background(), "delete_for_everyone", 3, 7, 1, "req-2")
	publisher.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "hello", "req", nil)
	})
}

func TestEmitterWithoutPublisherIsSilent(t *testing.T) {
	emitter := NewAuditEmitter(nil, "audit.messaging", "svc", "test")
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "hello", "req", nil)
	})
}
