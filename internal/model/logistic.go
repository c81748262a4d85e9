package model

import (
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const defaultThreshold = 0.5

// Logistic is a logistic regression classifier.
type Logistic struct {
	base
	coefficients []float64
	intercept    float64
	threshold    float64
}

func newLogistic(a *Artifact) (*Logistic, error) {
	if len(a.Coefficients) != len(a.FeatureNames) {
		return nil, fmt.Errorf("%w: %d coefficients for %d features",
			domain.ErrArtifactLoad, len(a.Coefficients), len(a.FeatureNames))
	}

	threshold := a.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("%w: threshold %v outside (0,1)", domain.ErrArtifactLoad, threshold)
	}

	return &Logistic{
		base: base{
			kind:           KindLogistic,
			version:        a.Version,
			encoderVersion: a.EncoderVersion,
			names:          append([]string(nil), a.FeatureNames...),
		},
		coefficients: append([]float64(nil), a.Coefficients...),
		intercept:    a.Intercept,
		threshold:    threshold,
	}, nil
}

// Probability returns the approval probability for a vector.
func (l *Logistic) Probability(values []float64) (float64, error) {
	if err := l.checkWidth(values); err != nil {
		return 0, err
	}

	z := l.intercept
	for i, v := range values {
		z += l.coefficients[i] * v
	}
	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0, fmt.Errorf("non-finite probability")
	}
	return p, nil
}

// Predict returns 1 when the probability reaches the threshold.
func (l *Logistic) Predict(values []float64) (int, error) {
	p, err := l.Probability(values)
	if err != nil {
		return 0, err
	}
	if p >= l.threshold {
		return 1, nil
	}
	return 0, nil
}
