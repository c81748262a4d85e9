// Package model loads trained classifier artifacts.
package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Artifact kinds.
const (
	KindLogistic = "logistic"
	KindForest   = "forest"
)

// Artifact is the on-disk form of a classifier.
type Artifact struct {
	Kind           string   `json:"kind"`
	Version        string   `json:"version"`
	EncoderVersion string   `json:"encoderVersion,omitempty"`
	FeatureNames   []string `json:"featureNames"`

	// Logistic regression
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`

	// Tree ensemble
	Trees []Tree `json:"trees,omitempty"`
}

// Classifier is a loaded artifact. It is immutable and safe for concurrent use.
type Classifier interface {
	domain.Classifier

	// EncoderVersion is the encoder artifact this classifier was trained with.
	EncoderVersion() string

	// Kind reports the artifact kind.
	Kind() string
}

// Load reads a classifier artifact from disk.
func Load(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read model: %v", domain.ErrArtifactLoad, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode model %s: %v", domain.ErrArtifactLoad, path, err)
	}
	return FromArtifact(&a)
}

// FromArtifact validates an artifact and builds its classifier.
func FromArtifact(a *Artifact) (Classifier, error) {
	if len(a.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: model declares no feature names", domain.ErrArtifactLoad)
	}

	switch a.Kind {
	case KindLogistic:
		return newLogistic(a)
	case KindForest:
		return newForest(a)
	default:
		return nil, fmt.Errorf("%w: unknown model kind %q", domain.ErrArtifactLoad, a.Kind)
	}
}

// VersionedEncoder is an encoder that reports its artifact version.
type VersionedEncoder interface {
	Version() string
}

// CheckCompatible rejects an encoder set the classifier was not trained with.
// Classifiers that do not declare an encoder version accept any encoder.
func CheckCompatible(c Classifier, enc VersionedEncoder) error {
	want := c.EncoderVersion()
	if want == "" {
		return nil
	}
	if got := enc.Version(); got != want {
		return fmt.Errorf("%w: model %s expects encoders %s, loaded %s",
			domain.ErrArtifactLoad, c.Version(), want, got)
	}
	return nil
}

type base struct {
	kind           string
	version        string
	encoderVersion string
	names          []string
}

func (b *base) FeatureNames() ([]string, error) {
	names := make([]string, len(b.names))
	copy(names, b.names)
	return names, nil
}

func (b *base) Version() string        { return b.version }
func (b *base) EncoderVersion() string { return b.encoderVersion }
func (b *base) Kind() string           { return b.kind }

func (b *base) checkWidth(values []float64) error {
	if len(values) != len(b.names) {
		return fmt.Errorf("expected %d features, got %d", len(b.names), len(values))
	}
	return nil
}
