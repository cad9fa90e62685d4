package ports

import (
	"context"
	"time"

	"SkeetShelf/internal/domain"
)

// PostSource pulls a finite batch of posts from the social network. The
// second return value carries display-ready renderings of the same posts.
type PostSource interface {
	FetchPosts(ctx context.Context) ([]domain.RawPost, []string, error)
}

// LabelScore is one entry of a zero-shot ranking.
type LabelScore struct {
	Label string
	Score float64
}

// ZeroShotClassifier ranks candidate labels against text, best first.
type ZeroShotClassifier interface {
	ClassifyZeroShot(ctx context.Context, text string, labels []string, multiLabel bool) ([]LabelScore, error)
}

// Answer is the span returned by extractive question answering.
type Answer struct {
	Text  string
	Score float64
}

// QuestionAnswerer runs extractive QA with the named model.
type QuestionAnswerer interface {
	Answer(ctx context.Context, model, question, passage string) (Answer, error)
}

// GenreClassifier maps post text to a single genre label.
type GenreClassifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// EntityExtractor pulls a cleaned author and title out of post text.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) (domain.Entities, error)
}

// ShelfRepository holds the lookup-or-create operations used by the pipeline.
type ShelfRepository interface {
	EnsurePost(ctx context.Context, post domain.Post) (domain.Post, error)
	EnsureGenre(ctx context.Context, name string) (domain.Genre, error)
	EnsureClassification(ctx context.Context, postID, genreID int64) error
	EnsureBook(ctx context.Context, title, author string, genreID int64) (domain.Book, error)
	EnsureSavedSkeet(ctx context.Context, postID, userID int64, bookID *int64) (domain.SavedSkeet, error)
}

// ShelfReader serves lookups by id and per-user listings.
type ShelfReader interface {
	GetPost(ctx context.Context, id int64) (domain.Post, error)
	GetGenre(ctx context.Context, id int64) (domain.Genre, error)
	GetBook(ctx context.Context, id int64) (domain.Book, error)
	ListGenres(ctx context.Context) ([]domain.Genre, error)
	GenresForPost(ctx context.Context, postID int64) ([]domain.Genre, error)
	SavedPosts(ctx context.Context, userID int64) ([]domain.Post, error)
	SavedBooks(ctx context.Context, userID int64) ([]domain.Book, error)
}

// ShelfStore is the full relational store.
type ShelfStore interface {
	ShelfRepository
	ShelfReader
	DeleteSavedSkeet(ctx context.Context, userID, postID int64) error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
