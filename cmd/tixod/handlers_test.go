package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tixo-social/tixo/assistant"
	"github.com/tixo-social/tixo/automod"
	"github.com/tixo-social/tixo/chat"
	"github.com/tixo-social/tixo/content"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	ctx := context.Background()
	srv, err := NewServer(ctx, Config{})
	require.NoError(t, err)
	for _, conv := range []*chat.Conversation{
		{ID: "c_ai", Type: chat.TypeDirect, ParticipantIDs: []string{"u1", chat.DefaultAssistantID}},
		{ID: "c_group", Type: chat.TypeGroup, ParticipantIDs: []string{"u1", "u2"}},
	} {
		require.NoError(t, srv.gateway.Store.PutConversation(ctx, conv))
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/_health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleCreateContent(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/content", `{"author_id": "u2", "kind": "post", "text": "great day"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item content.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(content.StatusApproved, item.ModerationStatus)
	assert.Equal("great day", item.Post.Text)

	rec = doJSON(t, srv, http.MethodGet, "/api/content/item/"+item.ID, "")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/content/post?limit=10", "")
	assert.Equal(http.StatusOK, rec.Code)
	var list struct {
		Items []content.Content `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(item.ID, list.Items[0].ID)

	rec = doJSON(t, srv, http.MethodGet, "/api/content/item/nope", "")
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/content/tweets", "")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/content/post?limit=abc", "")
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestHandleCreateContentRejected(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/api/content", `{"author_id": "u1", "kind": "reel", "text": "violence"}`)
		assert.Equal(http.StatusUnprocessableEntity, rec.Code)
		var body RejectionError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal("PolicyViolation", body.Error)
		assert.Equal("POLICY_VIOLATION:violence", body.ReasonCode)
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/content", `{"author_id": "u1", "kind": "post", "text": "hello"}`)
	assert.Equal(http.StatusForbidden, rec.Code)
	assert.Contains(rec.Body.String(), "ACCOUNT_SUSPENDED")

	rec = doJSON(t, srv, http.MethodPost, "/api/content", `{"author_id": "u2", "kind": "post", "text": ""}`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/trust/u1", "")
	assert.Equal(http.StatusOK, rec.Code)
	var sum automod.AccountSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(3, sum.WarningCount)
	assert.True(sum.Suspended)
	assert.Contains(sum.Flags, automod.FlagSuspended)
}

func TestHandleModeratorActions(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/content", `{"author_id": "u3", "kind": "post", "text": "kill"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/content", `{"author_id": "u3", "kind": "post", "text": "nice view"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var item content.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))

	rec = doJSON(t, srv, http.MethodGet, "/api/moderation/terms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		PolicyVersion string             `json:"policy_version"`
		Terms         []automod.TermStat `json:"terms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.NotEmpty(stats.PolicyVersion)
	require.Greater(t, len(stats.Terms), 1)
	assert.Equal(automod.TermStat{Term: "kill", Total: 1, Day: 1, Hour: 1}, stats.Terms[1])

	rec = doJSON(t, srv, http.MethodDelete, "/api/trust/u3/flags/policy-kill", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum automod.AccountSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Empty(sum.Flags)
	assert.Equal(1, sum.WarningCount)

	rec = doJSON(t, srv, http.MethodDelete, "/api/trust/u3/flags/suspended", "")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/content/item/"+item.ID+"/status", `{"status": "flagged"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(content.StatusFlagged, item.ModerationStatus)

	rec = doJSON(t, srv, http.MethodPut, "/api/content/item/"+item.ID+"/status", `{"status": "hidden"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)
	rec = doJSON(t, srv, http.MethodPut, "/api/content/item/missing/status", `{"status": "rejected"}`)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestHandleEvaluate(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/moderation/evaluate", `{"text": "so much HATE"}`)
	assert.Equal(http.StatusOK, rec.Code)
	var v automod.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.False(v.Approved)
	assert.Equal("hate", v.Term)

	rec = doJSON(t, srv, http.MethodPost, "/api/moderation/evaluate", `{"text": "lovely"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(v.Approved)
}

func TestHandleMessages(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	type msgsBody struct {
		Messages []chat.Message `json:"messages"`
	}

	// no assistant key configured, so the reply is the fallback
	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/c_ai/messages", `{"sender_id": "u1", "text": "hi bot"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body msgsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(assistant.FallbackError, body.Messages[1].Content)

	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/c_group/messages", `{"sender_id": "u2", "text": "attack!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(chat.OriginSystem, body.Messages[0].Origin)

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations/c_ai/messages?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(chat.OriginAssistant, body.Messages[0].Origin)

	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/missing/messages", `{"sender_id": "u1", "text": "hi"}`)
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/c_ai/messages", `{"sender_id": "u1", "text": " "}`)
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestHandleSendLimits(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	srv, err := NewServer(ctx, Config{SendRateLimit: 2, MetricsRegisterer: reg})
	require.NoError(t, err)
	require.NoError(t, srv.gateway.Store.PutConversation(ctx, &chat.Conversation{
		ID: "c_group", Type: chat.TypeGroup, ParticipantIDs: []string{"u1", "u2"},
	}))

	long := strings.Repeat("a", chat.MaxMessageLength+1)
	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/c_group/messages", `{"sender_id": "u1", "text": "`+long+`"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	for i := 0; i < 2; i++ {
		rec = doJSON(t, srv, http.MethodPost, "/api/conversations/c_group/messages", `{"sender_id": "u1", "text": "hello"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/c_group/messages", `{"sender_id": "u1", "text": "hello"}`)
	assert.Equal(http.StatusTooManyRequests, rec.Code)
	assert.Contains(rec.Body.String(), "RateLimitExceeded")

	// other senders have their own window
	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/c_group/messages", `{"sender_id": "u2", "text": "hello"}`)
	assert.Equal(http.StatusOK, rec.Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "tixod_") {
			found = true
		}
	}
	assert.True(found, "request metrics registered")
}

func TestHandleSubscribe(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)
	hs := httptest.NewServer(srv)
	defer hs.Close()

	wsURL := "ws" + strings.TrimPrefix(hs.URL, "http") + "/api/conversations/c_group/subscribe"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	// subscription is registered after the upgrade; retry until the message shows up
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	got := make(chan chat.Message, 1)
	go func() {
		var msg chat.Message
		if err := ws.ReadJSON(&msg); err == nil {
			got <- msg
		}
		close(got)
	}()

	assert.Eventually(func() bool {
		_, err := srv.gateway.Send(context.Background(), "c_group", "u1", "hello group")
		assert.NoError(err)
		select {
		case msg, ok := <-got:
			return ok && msg.Content == "hello group"
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/api/conversations/missing/subscribe", nil)
	assert.Error(err)
}
