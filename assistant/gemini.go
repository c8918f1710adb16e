package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tixo-social/tixo/util"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	DefaultGeminiHost  = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-2.5-flash"

	SystemInstruction = "You are a helpful, witty, and concise social media AI assistant. Keep responses short and engaging, suitable for a chat interface."
)

type GeminiClient struct {
	Client *http.Client
	Host   string
	Model  string
	APIKey string
	// requests per second, shared by all conversations
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

var _ Bridge = (*GeminiClient)(nil)

type GeminiConfig struct {
	APIKey    string
	Model     string
	Host      string
	RateLimit float64
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewGeminiClient(config GeminiConfig) *GeminiClient {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}
	if config.Host == "" {
		config.Host = DefaultGeminiHost
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &GeminiClient{
		// a chat reply is a single attempt; the gateway posts a fallback on failure
		Client: util.NewHTTPClient(util.ClientOptions{
			RetryMax: 0,
			Timeout:  config.Timeout,
			Logger:   logger,
		}),
		Host:    config.Host,
		Model:   config.Model,
		APIKey:  config.APIKey,
		Limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		Logger:  logger.With("system", "gemini"),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (gc *GeminiClient) Respond(ctx context.Context, prompt string, history []Turn) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiRespond")
	defer span.End()
	span.SetAttributes(attribute.String("model", gc.Model), attribute.Int("history", len(history)))

	if gc.APIKey == "" {
		return "", ErrNotConfigured
	}

	if gc.Limiter != nil {
		if err := gc.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("gemini rate limit: %w", err)
		}
	}

	start := time.Now()
	text, err := gc.generate(ctx, prompt, history)
	duration := time.Since(start)
	assistantDuration.Observe(duration.Seconds())
	if err != nil {
		assistantRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		assistantRequests.WithLabelValues("empty").Inc()
	} else {
		assistantRequests.WithLabelValues("ok").Inc()
	}
	gc.Logger.Debug("gemini reply", "duration", duration, "length", len(text))
	return text, nil
}

func (gc *GeminiClient) generate(ctx context.Context, prompt string, history []Turn) (string, error) {
	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: SystemInstruction}}},
	}
	for _, t := range history {
		role := t.Role
		if role != RoleModel {
			role = RoleUser
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Text}}})
	}
	body.Contents = append(body.Contents, geminiContent{Role: RoleUser, Parts: []geminiPart{{Text: prompt}}})

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimSuffix(gc.Host, "/"), url.PathEscape(gc.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", gc.APIKey)

	resp, err := gc.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", fmt.Errorf("reading gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody geminiErrorBody
		if json.Unmarshal(respBytes, &errBody) == nil && errBody.Error.Message != "" {
			return "", fmt.Errorf("gemini API error (HTTP %d %s): %s", resp.StatusCode, errBody.Error.Status, errBody.Error.Message)
		}
		return "", fmt.Errorf("gemini API error (HTTP %d)", resp.StatusCode)
	}

	var out geminiResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return "", fmt.Errorf("parsing gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
