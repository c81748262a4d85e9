// Package decision turns a reconciled feature vector into a loan outcome.
package decision

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// EngineVersion is reported in lookup metadata.
const EngineVersion = "kestrel-1.0"

// Scorer wraps exactly one classifier call per decision.
// No retry and no caching: the same vector always reaches the classifier.
type Scorer struct {
	classifier domain.Classifier
}

// NewScorer creates a scorer for the given classifier.
func NewScorer(classifier domain.Classifier) *Scorer {
	return &Scorer{classifier: classifier}
}

// Score invokes the classifier and maps its label to an Outcome.
func (s *Scorer) Score(ctx context.Context, vec *domain.FeatureVector) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrScoring, err)
	}
	if vec == nil {
		return "", fmt.Errorf("%w: nil feature vector", domain.ErrScoring)
	}

	names, err := s.classifier.FeatureNames()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrScoring, err)
	}
	if len(names) != vec.Len() || len(vec.Values) != vec.Len() {
		return "", fmt.Errorf("%w: vector has %d features, classifier expects %d",
			domain.ErrScoring, vec.Len(), len(names))
	}
	for i, n := range names {
		if vec.Names[i] != n {
			return "", fmt.Errorf("%w: feature %d is %s, classifier expects %s",
				domain.ErrScoring, i, vec.Names[i], n)
		}
	}

	label, err := s.classifier.Predict(vec.Values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrScoring, err)
	}

	outcome, ok := domain.OutcomeFromLabel(label)
	if !ok {
		return "", fmt.Errorf("%w: label %d outside {0,1}", domain.ErrScoring, label)
	}
	return outcome, nil
}

// Classifier returns the wrapped classifier.
func (s *Scorer) Classifier() domain.Classifier {
	return s.classifier
}
