package classify

import (
	"context"
	"errors"
	"fmt"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/ports"
)

// CandidateLabels is the closed genre taxonomy offered to the zero-shot model.
var CandidateLabels = []string{
	"science fiction",
	"fantasy",
	"self-help",
	"romance",
	"thriller",
}

// Classifier picks the top-ranked genre for a post.
type Classifier struct {
	capability ports.ZeroShotClassifier
	labels     []string
}

var _ ports.GenreClassifier = (*Classifier)(nil)

// New builds a classifier over the fixed candidate labels.
func New(capability ports.ZeroShotClassifier) *Classifier {
	return &Classifier{capability: capability, labels: CandidateLabels}
}

// Classify returns the capability's first-ranked label. The ranking is not
// re-ordered here.
func (c *Classifier) Classify(ctx context.Context, text string) (string, error) {
	if c.capability == nil {
		return "", fmt.Errorf("%w: zero-shot classifier not configured", domain.ErrExternalService)
	}

	ranking, err := c.capability.ClassifyZeroShot(ctx, text, c.labels, true)
	if err != nil {
		if errors.Is(err, domain.ErrExternalService) {
			return "", fmt.Errorf("classify genre: %w", err)
		}
		return "", fmt.Errorf("classify genre: %w: %v", domain.ErrExternalService, err)
	}
	if len(ranking) == 0 || ranking[0].Label == "" {
		return "", fmt.Errorf("classify genre: %w: empty ranking", domain.ErrExternalService)
	}

	return ranking[0].Label, nil
}
