package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/metrics"
	"SkeetShelf/internal/ports"
)

// Client talks to the HuggingFace inference API for zero-shot
// classification and extractive question answering.
type Client struct {
	baseURL       string
	apiKey        string
	zeroShotModel string
	http          *http.Client
	breaker       *breaker
}

var _ ports.ZeroShotClassifier = (*Client)(nil)
var _ ports.QuestionAnswerer = (*Client)(nil)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL       string
	APIKey        string
	ZeroShotModel string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// NewClient creates a reusable HTTP client guarded by a circuit breaker.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	model := opts.ZeroShotModel
	if model == "" {
		model = "facebook/bart-large-mnli"
	}

	return &Client{
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:        opts.APIKey,
		zeroShotModel: model,
		http:          httpClient,
		breaker:       newBreaker("huggingface-inference"),
	}
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// legacy pipeline output: {"sequence": "...", "labels": [...], "scores": [...]}
type zeroShotColumns struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassifyZeroShot returns the model's ranking, best first.
func (c *Client) ClassifyZeroShot(ctx context.Context, text string, labels []string, multiLabel bool) ([]ports.LabelScore, error) {
	payload := zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels, MultiLabel: multiLabel},
	}

	start := time.Now()
	raw, err := c.call(ctx, c.zeroShotModel, payload)
	metrics.ObserveInference("zero-shot-classification", start, err)
	if err != nil {
		return nil, err
	}

	ranking, err := decodeRanking(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: zero-shot response: %v", domain.ErrExternalService, err)
	}
	return ranking, nil
}

func decodeRanking(raw []byte) ([]ports.LabelScore, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []labelScore
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		out := make([]ports.LabelScore, 0, len(items))
		for _, it := range items {
			out = append(out, ports.LabelScore{Label: it.Label, Score: it.Score})
		}
		return out, nil
	}

	var cols zeroShotColumns
	if err := json.Unmarshal(trimmed, &cols); err != nil {
		return nil, err
	}
	if len(cols.Labels) != len(cols.Scores) {
		return nil, fmt.Errorf("labels/scores length mismatch (%d/%d)", len(cols.Labels), len(cols.Scores))
	}
	out := make([]ports.LabelScore, 0, len(cols.Labels))
	for i, label := range cols.Labels {
		out = append(out, ports.LabelScore{Label: label, Score: cols.Scores[i]})
	}
	return out, nil
}

type qaRequest struct {
	Inputs qaInputs `json:"inputs"`
}

type qaInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// Answer runs extractive QA. A missing answer comes back as an empty span.
func (c *Client) Answer(ctx context.Context, model, question, passage string) (ports.Answer, error) {
	start := time.Now()
	raw, err := c.call(ctx, model, qaRequest{Inputs: qaInputs{Question: question, Context: passage}})
	metrics.ObserveInference("question-answering", start, err)
	if err != nil {
		return ports.Answer{}, err
	}

	answer, err := decodeAnswer(raw)
	if err != nil {
		return ports.Answer{}, fmt.Errorf("%w: question-answering response: %v", domain.ErrExternalService, err)
	}
	return answer, nil
}

func decodeAnswer(raw []byte) (ports.Answer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ports.Answer{}, nil
	}

	if trimmed[0] == '[' {
		var items []qaAnswer
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return ports.Answer{}, err
		}
		if len(items) == 0 {
			return ports.Answer{}, nil
		}
		return ports.Answer{Text: items[0].Answer, Score: items[0].Score}, nil
	}

	var item qaAnswer
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return ports.Answer{}, err
	}
	return ports.Answer{Text: item.Answer, Score: item.Score}, nil
}

// call posts payload to the model endpoint through the circuit breaker.
// Every failure, including an open circuit, wraps domain.ErrExternalService.
func (c *Client) call(ctx context.Context, model string, payload any) ([]byte, error) {
	if c.baseURL == "" || model == "" {
		return nil, fmt.Errorf("%w: huggingface client misconfigured", domain.ErrExternalService)
	}

	body, err := c.breaker.execute(func() ([]byte, error) {
		return c.post(ctx, c.baseURL+"/"+model, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExternalService, model, err)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(truncate(respBody, 512))))
	}

	return respBody, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
