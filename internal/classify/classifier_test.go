package classify

import (
	"context"
	"errors"
	"testing"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/ports"
)

type stubZeroShot struct {
	ranking    []ports.LabelScore
	err        error
	gotLabels  []string
	multiLabel bool
}

func (s *stubZeroShot) ClassifyZeroShot(_ context.Context, _ string, labels []string, multiLabel bool) ([]ports.LabelScore, error) {
	s.gotLabels = labels
	s.multiLabel = multiLabel
	return s.ranking, s.err
}

func TestClassifyReturnsTopLabel(t *testing.T) {
	t.Parallel()

	stub := &stubZeroShot{ranking: []ports.LabelScore{
		{Label: "thriller", Score: 0.4},
		{Label: "science fiction", Score: 0.9},
	}}
	label, err := New(stub).Classify(context.Background(), "I loved Dune by Frank Herbert!")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if label != "thriller" {
		t.Fatalf("expected capability order to win, got %s", label)
	}
	if !stub.multiLabel {
		t.Fatal("expected multi-label scoring")
	}
	if len(stub.gotLabels) != 5 || stub.gotLabels[0] != "science fiction" {
		t.Fatalf("unexpected candidate labels: %v", stub.gotLabels)
	}
}

func TestClassifyErrorsAreExternal(t *testing.T) {
	t.Parallel()

	cases := map[string]*stubZeroShot{
		"transport": {err: errors.New("connection refused")},
		"empty":     {},
	}
	for name, stub := range cases {
		_, err := New(stub).Classify(context.Background(), "text")
		if !errors.Is(err, domain.ErrExternalService) {
			t.Fatalf("%s: expected ErrExternalService, got %v", name, err)
		}
	}
}
