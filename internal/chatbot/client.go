package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doctorry/platform/internal/shared/config"
	"github.com/doctorry/platform/internal/shared/metrics"
)

// systemPrompt frames the assistant. It is fixed server-side so clients
// cannot rewrite the guardrails.
const systemPrompt = `You are a helpful assistant for a telemedicine platform.
You help patients with general health questions, explain how to book and
attend video consultations, and describe which medical specialization fits
their symptoms. You never diagnose, never prescribe, and for anything urgent
you tell the user to contact emergency services or book an appointment with
a doctor.`

// maxHistory bounds how many prior turns are forwarded upstream
const maxHistory = 20

// Client talks to an OpenAI-compatible chat completions API
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a new chatbot client
func NewClient(cfg config.ChatbotConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// upstream wire types (chat completions)
type upstreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type upstreamRequest struct {
	Model       string            `json:"model"`
	Messages    []upstreamMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

type upstreamResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message upstreamMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends a conversation to the LLM and returns the assistant reply
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	messages := []upstreamMessage{{Role: string(RoleSystem), Content: systemPrompt}}

	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		messages = append(messages, upstreamMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, upstreamMessage{Role: string(RoleUser), Content: req.Message})

	body, err := json.Marshal(upstreamRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordChatbotRequest("error", time.Since(start))
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.RecordChatbotRequest("error", time.Since(start))
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RecordChatbotRequest("upstream_error", time.Since(start))
		return nil, fmt.Errorf("chat service returned status %d", resp.StatusCode)
	}

	var parsed upstreamResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.RecordChatbotRequest("error", time.Since(start))
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	if parsed.Error != nil {
		metrics.RecordChatbotRequest("upstream_error", time.Since(start))
		return nil, fmt.Errorf("chat service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		metrics.RecordChatbotRequest("empty", time.Since(start))
		return nil, fmt.Errorf("chat service returned no choices")
	}

	elapsed := time.Since(start)
	metrics.RecordChatbotRequest("ok", elapsed)

	model := parsed.Model
	if model == "" {
		model = c.model
	}

	return &ChatResponse{
		Reply:            parsed.Choices[0].Message.Content,
		ModelUsed:        model,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMs: int(elapsed.Milliseconds()),
	}, nil
}

// Health checks that the upstream service is reachable
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("chat service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("chat service returned status %d", resp.StatusCode)
	}

	return nil
}
