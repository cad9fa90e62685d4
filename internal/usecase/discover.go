package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/ports"
)

// GenrePosts groups fetched posts under a predicted genre.
type GenrePosts struct {
	Genre string
	Posts []domain.RawPost
}

// Discovery classifies a fresh batch without persisting anything.
type Discovery struct {
	source     ports.PostSource
	classifier ports.GenreClassifier
	extractor  ports.EntityExtractor
	logger     *slog.Logger
}

// NewDiscovery builds the read-only browsing use case.
func NewDiscovery(source ports.PostSource, classifier ports.GenreClassifier, extractor ports.EntityExtractor, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{source: source, classifier: classifier, extractor: extractor, logger: logger}
}

// ClassifyPosts fetches a batch and groups it by predicted genre in
// first-seen order. With a non-empty genre only that group is returned,
// or ErrNotFound when no post landed in it. Posts that fail to parse or
// classify are skipped.
func (d *Discovery) ClassifyPosts(ctx context.Context, genre string) ([]GenrePosts, error) {
	raws, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var groups []GenrePosts
	index := map[string]int{}
	for _, raw := range raws {
		label, ok := d.classify(ctx, raw)
		if !ok {
			continue
		}
		i, seen := index[label]
		if !seen {
			i = len(groups)
			index[label] = i
			groups = append(groups, GenrePosts{Genre: label})
		}
		groups[i].Posts = append(groups[i].Posts, raw)
	}

	if genre == "" {
		return groups, nil
	}
	if i, ok := index[genre]; ok {
		return []GenrePosts{groups[i]}, nil
	}
	return nil, fmt.Errorf("genre %q: %w", genre, domain.ErrNotFound)
}

// BooksForGenre extracts books from posts whose predicted genre matches
// genre case-insensitively. Returned books are not persisted and carry
// no ids. ErrNotFound when nothing with a title turned up.
func (d *Discovery) BooksForGenre(ctx context.Context, genre string) ([]domain.Book, error) {
	if d.extractor == nil {
		return nil, fmt.Errorf("discovery has no extractor")
	}
	raws, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var books []domain.Book
	for _, raw := range raws {
		label, ok := d.classify(ctx, raw)
		if !ok || !strings.EqualFold(label, genre) {
			continue
		}
		entities, err := d.extractor.Extract(ctx, raw.Text)
		if err != nil {
			d.logger.Warn("skipping post", "uri", raw.URI, "stage", domain.StageExtract, "error", err)
			continue
		}
		if entities.Title == "" {
			continue
		}
		books = append(books, domain.Book{Title: entities.Title, Author: entities.Author})
	}

	if len(books) == 0 {
		return nil, fmt.Errorf("books for genre %q: %w", genre, domain.ErrNotFound)
	}
	return books, nil
}

func (d *Discovery) fetch(ctx context.Context) ([]domain.RawPost, error) {
	if d.source == nil || d.classifier == nil {
		return nil, fmt.Errorf("discovery misconfigured")
	}
	raws, _, err := d.source.FetchPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	return raws, nil
}

func (d *Discovery) classify(ctx context.Context, raw domain.RawPost) (string, bool) {
	post, err := raw.ToPost()
	if err != nil {
		d.logger.Warn("skipping post", "uri", raw.URI, "stage", domain.StageParse, "error", err)
		return "", false
	}
	label, err := d.classifier.Classify(ctx, post.Text)
	if err != nil {
		d.logger.Warn("skipping post", "uri", raw.URI, "stage", domain.StageClassify, "error", err)
		return "", false
	}
	return label, true
}
