package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGemini(t *testing.T, h http.HandlerFunc) *GeminiClient {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGeminiClient(GeminiConfig{
		APIKey:    "test-key",
		Host:      srv.URL,
		RateLimit: 1000,
		Timeout:   5 * time.Second,
	})
}

func TestGeminiRespond(t *testing.T) {
	assert := assert.New(t)

	var got geminiRequest
	gc := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal("test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi "},{"text":"there"}]},"finishReason":"STOP"}]}`))
	})

	history := []Turn{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleModel, Text: "hey!"},
	}
	reply, err := gc.Respond(context.Background(), "how are you?", history)
	assert.NoError(err)
	assert.Equal("hi there", reply)

	assert.Equal(SystemInstruction, got.SystemInstruction.Parts[0].Text)
	assert.Len(got.Contents, 3)
	assert.Equal(RoleModel, got.Contents[1].Role)
	assert.Equal("how are you?", got.Contents[2].Parts[0].Text)
}

func TestGeminiNoCandidates(t *testing.T) {
	gc := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})
	reply, err := gc.Respond(context.Background(), "hello", nil)
	assert.NoError(t, err)
	assert.Equal(t, "", reply)
}

func TestGeminiAPIError(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	gc := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	})
	_, err := gc.Respond(context.Background(), "hello", nil)
	assert.Error(err)
	assert.Contains(err.Error(), "quota exceeded")
	assert.Equal(int32(1), calls.Load())
}

func TestGeminiNotConfigured(t *testing.T) {
	gc := NewGeminiClient(GeminiConfig{})
	_, err := gc.Respond(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeminiCancelled(t *testing.T) {
	block := make(chan struct{})
	gc := testGemini(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := gc.Respond(ctx, "hello", nil)
	assert.Error(t, err)
}

func TestFunc(t *testing.T) {
	var b Bridge = Func(func(ctx context.Context, prompt string, history []Turn) (string, error) {
		return "echo: " + prompt, nil
	})
	reply, err := b.Respond(context.Background(), "x", nil)
	assert.NoError(t, err)
	assert.Equal(t, "echo: x", reply)
}
