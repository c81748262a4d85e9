package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

type fakeClassifier struct {
	names []string
	label int
	err   error
	calls int
}

func (f *fakeClassifier) FeatureNames() ([]string, error) { return f.names, nil }
func (f *fakeClassifier) Version() string                 { return "fake-1" }

func (f *fakeClassifier) Predict(values []float64) (int, error) {
	f.calls++
	return f.label, f.err
}

func vector(names ...string) *domain.FeatureVector {
	return &domain.FeatureVector{Names: names, Values: make([]float64, len(names))}
}

func TestScorer(t *testing.T) {
	ctx := context.Background()

	t.Run("Approved", func(t *testing.T) {
		clf := &fakeClassifier{names: []string{"a", "b"}, label: 1}
		outcome, err := NewScorer(clf).Score(ctx, vector("a", "b"))
		if err != nil {
			t.Fatal(err)
		}
		if outcome != domain.OutcomeApproved {
			t.Errorf("expected Approved, got %s", outcome)
		}
		if clf.calls != 1 {
			t.Errorf("expected exactly one classifier call, got %d", clf.calls)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		clf := &fakeClassifier{names: []string{"a"}, label: 0}
		outcome, err := NewScorer(clf).Score(ctx, vector("a"))
		if err != nil {
			t.Fatal(err)
		}
		if outcome != domain.OutcomeRejected {
			t.Errorf("expected Rejected, got %s", outcome)
		}
	})

	t.Run("NoCaching", func(t *testing.T) {
		clf := &fakeClassifier{names: []string{"a"}, label: 1}
		s := NewScorer(clf)
		for i := 0; i < 3; i++ {
			if _, err := s.Score(ctx, vector("a")); err != nil {
				t.Fatal(err)
			}
		}
		if clf.calls != 3 {
			t.Errorf("expected 3 classifier calls, got %d", clf.calls)
		}
	})
}

func TestScorerErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		clf  *fakeClassifier
		vec  *domain.FeatureVector
	}{
		{"ClassifierFailure", &fakeClassifier{names: []string{"a"}, err: errors.New("boom")}, vector("a")},
		{"LengthMismatch", &fakeClassifier{names: []string{"a", "b"}, label: 1}, vector("a")},
		{"OrderMismatch", &fakeClassifier{names: []string{"a", "b"}, label: 1}, vector("b", "a")},
		{"LabelOutOfRange", &fakeClassifier{names: []string{"a"}, label: 2}, vector("a")},
		{"NilVector", &fakeClassifier{names: []string{"a"}, label: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := NewScorer(tt.clf).Score(ctx, tt.vec)
			if !errors.Is(err, domain.ErrScoring) {
				t.Errorf("expected ErrScoring, got %v", err)
			}
			if outcome != "" {
				t.Errorf("expected no outcome, got %s", outcome)
			}
		})
	}

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		clf := &fakeClassifier{names: []string{"a"}, label: 1}
		if _, err := NewScorer(clf).Score(cctx, vector("a")); !errors.Is(err, domain.ErrScoring) {
			t.Errorf("expected ErrScoring, got %v", err)
		}
		if clf.calls != 0 {
			t.Error("classifier must not be called with a cancelled context")
		}
	})
}
