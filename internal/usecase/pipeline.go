package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/metrics"
	"SkeetShelf/internal/ports"
	"SkeetShelf/internal/validation"
)

// DefaultActorUserID is the identity autonomous runs save posts under.
const DefaultActorUserID int64 = 1

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Notifier and Logger are optional.
type PipelineDeps struct {
	Source      ports.PostSource
	Classifier  ports.GenreClassifier
	Extractor   ports.EntityExtractor
	Repository  ports.ShelfRepository
	Notifier    ports.Notifier
	Logger      *slog.Logger
	ActorUserID int64
}

// Pipeline drives each post through classify -> extract -> persist.
type Pipeline struct {
	source     ports.PostSource
	classifier ports.GenreClassifier
	extractor  ports.EntityExtractor
	repository ports.ShelfRepository
	notifier   ports.Notifier
	logger     *slog.Logger
	actor      int64
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	actor := deps.ActorUserID
	if actor <= 0 {
		actor = DefaultActorUserID
	}

	return &Pipeline{
		source:     deps.Source,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		logger:     logger,
		actor:      actor,
	}
}

// Run fetches one batch from the source and processes it. The report is
// returned even when the run is interrupted.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	if p.source == nil {
		return domain.RunReport{}, fmt.Errorf("pipeline has no post source")
	}

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := time.Now()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	raws, _, err := p.source.FetchPosts(ctx)
	if err != nil {
		return domain.RunReport{RunID: runID}, fmt.Errorf("fetch posts: %w", err)
	}
	logger.Info("fetched posts", "count", len(raws))

	report, err := p.processBatch(ctx, runID, logger, raws)
	logger.Info("run finished",
		"processed", report.Processed,
		"failed", report.Failed,
		"books", len(report.ShelvedBooks()),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	if err != nil {
		return report, err
	}

	if notifyErr := p.notify(ctx, report); notifyErr != nil {
		logger.Warn("digest not delivered", "error", notifyErr)
		return report, fmt.Errorf("publish digest: %w", notifyErr)
	}
	return report, nil
}

// ProcessBatch processes posts sequentially. A failing post is recorded
// in the report and the loop moves on. Cancellation is honoured between
// posts only.
func (p *Pipeline) ProcessBatch(ctx context.Context, raws []domain.RawPost) (domain.RunReport, error) {
	runID := uuid.NewString()
	return p.processBatch(ctx, runID, p.logger.With("run_id", runID), raws)
}

func (p *Pipeline) processBatch(ctx context.Context, runID string, logger *slog.Logger, raws []domain.RawPost) (domain.RunReport, error) {
	report := domain.RunReport{RunID: runID, Results: make([]domain.PostResult, 0, len(raws))}
	if err := p.ready(); err != nil {
		return report, err
	}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			logger.Info("run interrupted between posts", "remaining", len(raws)-len(report.Results))
			return report, err
		}

		// in-flight model calls and writes finish even if ctx is cancelled now
		res := p.process(context.WithoutCancel(ctx), raw)
		report.Results = append(report.Results, res)
		report.Processed++

		if res.Err != nil {
			report.Failed++
			stage := domain.Stage("unknown")
			var stageErr *domain.StageError
			if errors.As(res.Err, &stageErr) {
				stage = stageErr.Stage
			}
			metrics.PostsProcessed.WithLabelValues("failed").Inc()
			metrics.StageFailures.WithLabelValues(string(stage)).Inc()
			logger.Warn("post failed", "uri", raw.URI, "stage", stage, "error", res.Err)
			continue
		}

		metrics.PostsProcessed.WithLabelValues("persisted").Inc()
		if res.Book != nil {
			metrics.BooksShelved.Inc()
		}
		logger.Debug("post persisted", "uri", res.Post.URI, "post_id", res.Post.ID, "genre", res.Genre.Name)
	}

	return report, nil
}

// Process runs a single post through every stage and reports how far it got.
func (p *Pipeline) Process(ctx context.Context, raw domain.RawPost) domain.PostResult {
	if err := p.ready(); err != nil {
		return domain.PostResult{Raw: raw, Err: err}
	}
	return p.process(ctx, raw)
}

func (p *Pipeline) process(ctx context.Context, raw domain.RawPost) domain.PostResult {
	res := domain.PostResult{Raw: raw, Status: domain.StatusFetched}
	fail := func(stage domain.Stage, err error) domain.PostResult {
		res.Err = &domain.StageError{Stage: stage, URI: raw.URI, Err: err}
		return res
	}

	if err := validation.Struct(raw); err != nil {
		return fail(domain.StageParse, err)
	}
	post, err := raw.ToPost()
	if err != nil {
		return fail(domain.StageParse, err)
	}

	label, err := p.classifier.Classify(ctx, post.Text)
	if err != nil {
		return fail(domain.StageClassify, err)
	}
	if res.Post, err = p.repository.EnsurePost(ctx, post); err != nil {
		return fail(domain.StageClassify, err)
	}
	if res.Genre, err = p.repository.EnsureGenre(ctx, label); err != nil {
		return fail(domain.StageClassify, err)
	}
	if err := p.repository.EnsureClassification(ctx, res.Post.ID, res.Genre.ID); err != nil {
		return fail(domain.StageClassify, err)
	}
	res.Status = domain.StatusClassified

	if res.Entities, err = p.extractor.Extract(ctx, post.Text); err != nil {
		return fail(domain.StageExtract, err)
	}
	res.Status = domain.StatusExtracted

	var bookID *int64
	if res.Entities.Title != "" {
		book, err := p.repository.EnsureBook(ctx, res.Entities.Title, res.Entities.Author, res.Genre.ID)
		if err != nil {
			return fail(domain.StagePersist, err)
		}
		res.Book = &book
		bookID = &book.ID
	}
	if res.Saved, err = p.repository.EnsureSavedSkeet(ctx, res.Post.ID, p.actor, bookID); err != nil {
		return fail(domain.StagePersist, err)
	}
	res.Status = domain.StatusPersisted

	return res
}

func (p *Pipeline) ready() error {
	if p.classifier == nil || p.extractor == nil || p.repository == nil {
		return fmt.Errorf("pipeline misconfigured: classifier/extractor/repository missing")
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, report domain.RunReport) error {
	if p.notifier == nil {
		return nil
	}
	message := buildDigestMessage(report)
	if message == "" {
		return nil
	}
	return p.notifier.PublishDigest(ctx, message)
}

func buildDigestMessage(report domain.RunReport) string {
	books := report.ShelvedBooks()
	if len(books) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SkeetShelf: %d books shelved from %d posts (%d failed)\n", len(books), report.Processed, report.Failed)
	for _, book := range books {
		if book.Author != "" {
			fmt.Fprintf(&b, "- %s by %s\n", book.Title, book.Author)
			continue
		}
		fmt.Fprintf(&b, "- %s\n", book.Title)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
