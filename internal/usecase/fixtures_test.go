package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"SkeetShelf/internal/classify"
	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/extract"
	"SkeetShelf/internal/infrastructure/storage"
	"SkeetShelf/internal/logging"
	"SkeetShelf/internal/ports"
)

// keywordModel is a deterministic stand-in for both model capabilities.
// Texts containing a key of genres rank that genre first; answers are
// looked up by text and question.
type keywordModel struct {
	genres  map[string]string
	answers map[string]map[string]string
	failOn  string
	calls   int
}

func (m *keywordModel) ClassifyZeroShot(_ context.Context, text string, labels []string, _ bool) ([]ports.LabelScore, error) {
	m.calls++
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, errors.New("inference endpoint returned 503")
	}
	top := labels[len(labels)-1]
	for keyword, genre := range m.genres {
		if strings.Contains(text, keyword) {
			top = genre
		}
	}
	ranking := []ports.LabelScore{{Label: top, Score: 0.9}}
	for _, l := range labels {
		if l != top {
			ranking = append(ranking, ports.LabelScore{Label: l, Score: 0.01})
		}
	}
	return ranking, nil
}

func (m *keywordModel) Answer(_ context.Context, _ string, question, passage string) (ports.Answer, error) {
	return ports.Answer{Text: m.answers[passage][question]}, nil
}

func newModel() *keywordModel {
	return &keywordModel{
		genres: map[string]string{"Dune": "science fiction", "Emma": "romance"},
		answers: map[string]map[string]string{
			"I loved Dune by Frank Herbert!": {
				extract.AuthorQuestion: "Frank Herbert",
				extract.TitleQuestion:  "Dune",
			},
			"Emma is my comfort read": {
				extract.AuthorQuestion: "unknown",
				extract.TitleQuestion:  "emma",
			},
		},
	}
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.SQLite, filepath.Join(t.TempDir(), "shelf.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func newTestPipeline(model *keywordModel, repo ports.ShelfRepository, src ports.PostSource, notifier ports.Notifier) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:     src,
		Classifier: classify.New(model),
		Extractor:  extract.New(model, "deepset/roberta-base-squad2"),
		Repository: repo,
		Notifier:   notifier,
		Logger:     logging.Discard(),
	})
}

func rawPost(text, uri string) domain.RawPost {
	return domain.RawPost{
		Text:        text,
		Handle:      "h",
		DisplayName: "H",
		LikeCount:   5,
		Timestamp:   "2024-01-01T00:00:00",
		URI:         uri,
	}
}

type fixedSource struct {
	posts []domain.RawPost
	err   error
}

func (s fixedSource) FetchPosts(context.Context) ([]domain.RawPost, []string, error) {
	return s.posts, nil, s.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	digests []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digest)
	return nil
}
