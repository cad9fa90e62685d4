package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"SkeetShelf/internal/domain"
)

func TestClassifyZeroShotParsesColumnShape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/facebook/bart-large-mnli" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hf_test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req zeroShotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Parameters.MultiLabel || len(req.Parameters.CandidateLabels) != 2 {
			t.Errorf("unexpected parameters: %+v", req.Parameters)
		}
		_, _ = io.WriteString(w, `{"sequence":"x","labels":["fantasy","romance"],"scores":[0.8,0.1]}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, APIKey: "hf_test"})
	ranking, err := client.ClassifyZeroShot(context.Background(), "x", []string{"romance", "fantasy"}, true)
	if err != nil {
		t.Fatalf("ClassifyZeroShot error: %v", err)
	}
	if len(ranking) != 2 || ranking[0].Label != "fantasy" || ranking[0].Score != 0.8 {
		t.Fatalf("unexpected ranking: %+v", ranking)
	}
}

func TestClassifyZeroShotParsesListShape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"label":"thriller","score":0.7},{"label":"romance","score":0.2}]`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	ranking, err := client.ClassifyZeroShot(context.Background(), "x", []string{"thriller", "romance"}, true)
	if err != nil {
		t.Fatalf("ClassifyZeroShot error: %v", err)
	}
	if ranking[0].Label != "thriller" {
		t.Fatalf("unexpected ranking: %+v", ranking)
	}
}

func TestAnswerSendsQuestionAndContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deepset/roberta-base-squad2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req qaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Inputs.Question != "Who is the author?" || !strings.Contains(req.Inputs.Context, "Dune") {
			t.Errorf("unexpected inputs: %+v", req.Inputs)
		}
		_, _ = io.WriteString(w, `{"answer":"Frank Herbert","score":0.93,"start":17,"end":30}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	answer, err := client.Answer(context.Background(), "deepset/roberta-base-squad2", "Who is the author?", "I loved Dune by Frank Herbert!")
	if err != nil {
		t.Fatalf("Answer error: %v", err)
	}
	if answer.Text != "Frank Herbert" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestAnswerEmptyListIsEmptySpan(t *testing.T) {
	t.Parallel()

	answer, err := decodeAnswer([]byte(` [] `))
	if err != nil {
		t.Fatalf("decodeAnswer error: %v", err)
	}
	if answer.Text != "" {
		t.Fatalf("expected empty span, got %+v", answer)
	}
}

func TestNon200IsExternalServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.ClassifyZeroShot(context.Background(), "x", []string{"a"}, true)
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestMalformedBodyIsExternalServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"labels":["a","b"],"scores":[0.5]}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.ClassifyZeroShot(context.Background(), "x", []string{"a", "b"}, true)
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	for i := 0; i < 7; i++ {
		_, err := client.Answer(context.Background(), "qa", "q", "c")
		if !errors.Is(err, domain.ErrExternalService) {
			t.Fatalf("call %d: expected ErrExternalService, got %v", i, err)
		}
	}
	if got := hits.Load(); got != 5 {
		t.Fatalf("expected breaker to stop calls after 5 failures, server saw %d", got)
	}
}
