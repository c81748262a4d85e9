package domain

// FeatureVector is an ordered feature-name to value mapping whose key
// order matches the classifier schema exactly.
type FeatureVector struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`

	// Defaulted lists features that were absent and zero-filled.
	Defaulted []string `json:"defaulted,omitempty"`
}

// Len returns the number of features.
func (v *FeatureVector) Len() int {
	return len(v.Names)
}

// Get returns the value for a feature name.
func (v *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Has reports whether the vector carries the feature.
func (v *FeatureVector) Has(name string) bool {
	_, ok := v.Get(name)
	return ok
}

// Classifier is a pre-trained binary model.
type Classifier interface {
	// FeatureNames returns the ordered input schema.
	FeatureNames() ([]string, error)

	// Predict returns 1 (approve) or 0 (reject) for an ordered vector.
	Predict(values []float64) (int, error)

	// Version identifies the artifact.
	Version() string
}

// CategoricalEncoder maps category strings to trained numeric codes.
type CategoricalEncoder interface {
	Encode(column, value string) (float64, error)
}
