package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/policy"
	"github.com/lalith-99/teamchat/internal/service"
)

type fakePoster struct {
	postErr    error
	fetchErr   error
	fetched    []service.MessageView
	marked     []int64
	gotChannel int64
	gotIDs     []int64
}

func (f *fakePoster) Post(_ context.Context, _ models.Identity, channelID int64, input service.PostInput) (*service.MessageView, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.gotChannel = channelID
	return &service.MessageView{ID: 1, ChannelID: channelID, Content: input.Content, ReadBy: []uuid.UUID{}}, nil
}

func (f *fakePoster) Fetch(_ context.Context, _ models.Identity, channelID int64) ([]service.MessageView, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.gotChannel = channelID
	return f.fetched, nil
}

func (f *fakePoster) MarkRead(_ context.Context, _ models.Identity, channelID int64, messageIDs []int64) ([]int64, error) {
	f.gotChannel = channelID
	f.gotIDs = messageIDs
	return f.marked, nil
}

func newMessageRouter(poster *fakePoster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewMessageHandler(poster, zap.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyIdentity, models.Identity{UserID: uuid.New(), Role: models.SystemRoleEmployee})
	})
	router.POST("/messages", handler.Create)
	router.GET("/messages/:channelId", handler.List)
	router.POST("/messages/:channelId/read", handler.MarkRead)
	return router
}

func TestCreateMessage(t *testing.T) {
	poster := &fakePoster{}
	router := newMessageRouter(poster)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{"channel_id":7,"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(7), poster.gotChannel)

	var view service.MessageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "hi", view.Content)
}

func TestCreateMessageRejectsMissingChannel(t *testing.T) {
	router := newMessageRouter(&fakePoster{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMessageMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"denied", apperr.AccessDenied(policy.ReasonNoAccess), http.StatusForbidden},
		{"missing", apperr.NotFound("channel not found"), http.StatusNotFound},
		{"invalid", apperr.Validation("content or image_url is required"), http.StatusBadRequest},
		{"internal", apperr.Internal("create message", assert.AnError), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newMessageRouter(&fakePoster{postErr: tc.err})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{"channel_id":7,"content":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "create message", "internal detail must not leak")
			}
		})
	}
}

func TestListMessages(t *testing.T) {
	poster := &fakePoster{fetched: []service.MessageView{
		{ID: 1, ChannelID: 7, Content: "one", ReadBy: []uuid.UUID{}},
		{ID: 2, ChannelID: 7, Content: "two", ReadBy: []uuid.UUID{}},
	}}
	router := newMessageRouter(poster)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages/7", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var views []service.MessageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "one", views[0].Content)
}

func TestListMessagesRejectsBadChannelID(t *testing.T) {
	router := newMessageRouter(&fakePoster{})

	for _, raw := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages/"+raw, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "channel id %q", raw)
	}
}

func TestMarkRead(t *testing.T) {
	poster := &fakePoster{marked: []int64{4, 5}}
	router := newMessageRouter(poster)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages/7/read", strings.NewReader(`{"message_ids":[4,5]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{4, 5}, poster.gotIDs)
	assert.JSONEq(t, `{"message_ids":[4,5]}`, w.Body.String())
}

func TestMarkReadWithEmptyBodyMarksWholeChannel(t *testing.T) {
	poster := &fakePoster{marked: []int64{}}
	router := newMessageRouter(poster)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/messages/7/read", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, poster.gotIDs)
}
