package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.POST("/conversations/direct", handler.StartDirect)
	r.POST("/conversations/group", handler.CreateGroup)
	r.GET("/conversations/:id/messages", handler.GetMessages)
	r.GET("/messages/:id/edits", handler.GetEditHistory)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.MessageRepositoryMock))
	router := setupConversationRouter(handler)

	convRepo.On("ListForUser", mock.Anything, 1).
		Return([]models.Conversation{{ID: 3, Kind: models.ConversationDirect}}, nil).Once()
	convRepo.On("Participants", mock.Anything, 3).Return([]int{1, 2}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, []int{1, 2}, resp.Conversations[0].Participants)
	convRepo.AssertExpectations(t)
}

func TestStartDirectRejectsSelf(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.MessageRepositoryMock))
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	convRepo.AssertNotCalled(t, "CreateOrGetDirect", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartDirectSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.MessageRepositoryMock))
	router := setupConversationRouter(handler)

	convRepo.On("CreateOrGetDirect", mock.Anything, 1, 2).
		Return(models.Conversation{ID: 9, Kind: models.ConversationDirect}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestCreateGroupSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.MessageRepositoryMock))
	router := setupConversationRouter(handler)

	convRepo.On("CreateGroup", mock.Anything, 1, "team", (*string)(nil), []int{2, 3}).
		Return(models.Conversation{ID: 5, Kind: models.ConversationGroup}, nil).Once()

	body := bytes.NewBufferString(`{"name":"team","member_ids":[2,3]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/group", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestGetMessagesRequiresMembership(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(convRepo, msgRepo)
	router := setupConversationRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/3/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	msgRepo.AssertNotCalled(t, "ListForUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMessagesWithPaging(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(convRepo, msgRepo)
	router := setupConversationRouter(handler)

	before := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	msgRepo.On("ListForUser", mock.Anything, 3, 1, 20, mock.MatchedBy(func(ts *time.Time) bool {
		return ts != nil && ts.Equal(before)
	})).Return([]models.Message{{ID: 1, ConversationID: 3}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/3/messages?limit=20&before="+before.Format(time.RFC3339Nano), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestGetMessagesRejectsBadLimit(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.MessageRepositoryMock))
	router := setupConversationRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/3/messages?limit=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEditHistoryChecksMembership(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(convRepo, msgRepo)
	router := setupConversationRouter(handler)

	msgRepo.On("Get", mock.Anything, 7).Return(models.Message{ID: 7, ConversationID: 3}, nil).Once()
	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	msgRepo.On("EditHistory", mock.Anything, 7).
		Return([]models.EditSnapshot{{MessageID: 7, Content: "old"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/7/edits", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	msgRepo.AssertExpectations(t)
	convRepo.AssertExpectations(t)
}
