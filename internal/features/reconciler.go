// Package features turns stored customer records into classifier input.
package features

import (
	"fmt"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Reconciler maps a CustomerRecord onto a classifier's feature schema.
// It holds no mutable state.
type Reconciler struct {
	encoder domain.CategoricalEncoder
	logger  *slog.Logger
}

// NewReconciler creates a reconciler backed by the given encoder.
func NewReconciler(encoder domain.CategoricalEncoder, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		encoder: encoder,
		logger:  logger,
	}
}

// Reconcile builds the feature vector for the classifier's expected schema.
func (r *Reconciler) Reconcile(rec *domain.CustomerRecord, classifier domain.Classifier) (*domain.FeatureVector, error) {
	expected, err := classifier.FeatureNames()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaMismatch, err)
	}
	return r.ReconcileWith(rec, expected)
}

// ReconcileWith builds a feature vector ordered exactly as expected.
//
// Identifying columns are dropped, Existing_Loans becomes 1 for "Yes" and 0
// otherwise, categorical columns are encoded and any expected feature still
// missing is zero-filled. A zero-filled feature is indistinguishable from a
// category encoded as 0; Defaulted records which features were filled.
func (r *Reconciler) ReconcileWith(rec *domain.CustomerRecord, expected []string) (*domain.FeatureVector, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", domain.ErrInvalidRecord)
	}
	if err := validateSchema(expected); err != nil {
		return nil, err
	}

	cols := rec.Columns()
	for _, c := range domain.IdentifyingColumns {
		delete(cols, c)
	}

	for _, c := range domain.CategoricalColumns {
		raw, ok := cols[c]
		if !ok {
			continue
		}
		code, err := r.encoder.Encode(c, fmt.Sprint(raw))
		if err != nil {
			return nil, err
		}
		cols[c] = code
	}

	if rec.ExistingLoans == domain.ExistingLoansYes {
		cols[domain.ColumnExistingLoans] = 1.0
	} else {
		cols[domain.ColumnExistingLoans] = 0.0
	}

	vec := &domain.FeatureVector{
		Names:  make([]string, len(expected)),
		Values: make([]float64, len(expected)),
	}
	copy(vec.Names, expected)

	for i, name := range expected {
		raw, ok := cols[name]
		if !ok {
			vec.Defaulted = append(vec.Defaulted, name)
			continue
		}
		v, ok := domain.ToFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%w: feature %s has non-numeric value %v", domain.ErrSchemaMismatch, name, raw)
		}
		vec.Values[i] = v
	}

	if len(vec.Defaulted) > 0 {
		r.logger.Warn("zero-filled missing features",
			"customer", rec.Name,
			"features", vec.Defaulted,
		)
	}

	return vec, nil
}

func validateSchema(expected []string) error {
	if len(expected) == 0 {
		return fmt.Errorf("%w: classifier exposes no feature names", domain.ErrSchemaMismatch)
	}

	identifying := make(map[string]bool, len(domain.IdentifyingColumns))
	for _, c := range domain.IdentifyingColumns {
		identifying[c] = true
	}

	seen := make(map[string]bool, len(expected))
	for _, name := range expected {
		if name == "" {
			return fmt.Errorf("%w: empty feature name", domain.ErrSchemaMismatch)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate feature %s", domain.ErrSchemaMismatch, name)
		}
		if identifying[name] {
			return fmt.Errorf("%w: identifying column %s cannot be a model input", domain.ErrSchemaMismatch, name)
		}
		seen[name] = true
	}
	return nil
}
