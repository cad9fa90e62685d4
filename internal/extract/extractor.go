package extract

import (
	"context"
	"errors"
	"fmt"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/ports"
)

const (
	AuthorQuestion = "Who is the author?"
	TitleQuestion  = "What is the book title?"
)

// Extractor asks two extractive QA questions per post and cleans the answers.
type Extractor struct {
	qa    ports.QuestionAnswerer
	model string
}

var _ ports.EntityExtractor = (*Extractor)(nil)

// New wires a QA capability and the model name passed on every call.
func New(qa ports.QuestionAnswerer, model string) *Extractor {
	return &Extractor{qa: qa, model: model}
}

// Extract returns the cleaned author and title. Either QA call failing fails
// the whole extraction.
func (e *Extractor) Extract(ctx context.Context, text string) (domain.Entities, error) {
	rawAuthor, err := e.ask(ctx, AuthorQuestion, text)
	if err != nil {
		return domain.Entities{}, fmt.Errorf("extract author: %w", err)
	}
	rawTitle, err := e.ask(ctx, TitleQuestion, text)
	if err != nil {
		return domain.Entities{}, fmt.Errorf("extract title: %w", err)
	}

	author := CleanAuthor(rawAuthor)
	return domain.Entities{
		Author: author,
		Title:  CleanTitle(rawTitle, author),
	}, nil
}

func (e *Extractor) ask(ctx context.Context, question, text string) (string, error) {
	if e.qa == nil {
		return "", fmt.Errorf("%w: question answerer not configured", domain.ErrExternalService)
	}
	answer, err := e.qa.Answer(ctx, e.model, question, text)
	if err != nil {
		if errors.Is(err, domain.ErrExternalService) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}
	return answer.Text, nil
}
