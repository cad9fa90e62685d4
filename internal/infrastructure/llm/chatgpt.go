package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SkeetShelf/internal/config"
	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/metrics"
	"SkeetShelf/internal/ports"
)

// noAnswer is the reply defaultPrompt asks for when the passage holds no answer.
const noAnswer = "unknown"

const defaultPrompt = "You extract short spans from a social media post. " +
	"Answer with the exact words from the passage and nothing else. " +
	"If the passage does not contain the answer, reply with: " + noAnswer

// ChatGPTClient implements ports.QuestionAnswerer on top of an
// OpenAI-compatible chat completions endpoint.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.QuestionAnswerer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Answer asks the chat model to pull the answer span out of passage. An
// empty model falls back to the configured one.
func (c *ChatGPTClient) Answer(ctx context.Context, model, question, passage string) (ports.Answer, error) {
	start := time.Now()
	answer, err := c.answer(ctx, model, question, passage)
	metrics.ObserveInference("chat-question-answering", start, err)
	if err != nil {
		return ports.Answer{}, fmt.Errorf("%w: chatgpt: %v", domain.ErrExternalService, err)
	}
	return answer, nil
}

func (c *ChatGPTClient) answer(ctx context.Context, model, question, passage string) (ports.Answer, error) {
	if c == nil {
		return ports.Answer{}, fmt.Errorf("chatgpt client is nil")
	}
	if model == "" {
		model = c.model
	}
	if c.apiKey == "" || c.endpoint == "" || model == "" {
		return ports.Answer{}, fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: "Question: " + question + "\nPassage: " + passage},
		},
	})
	if err != nil {
		return ports.Answer{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.Answer{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.Answer{}, fmt.Errorf("send question: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ports.Answer{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.Answer{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return ports.Answer{}, fmt.Errorf("chatgpt returned no choices")
	}

	text := strings.Trim(strings.TrimSpace(decoded.Choices[0].Message.Content), `"'.`)
	if text == "" || strings.EqualFold(text, noAnswer) {
		return ports.Answer{}, nil
	}
	return ports.Answer{Text: text, Score: 1}, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultPrompt
	}
	return prompt
}
