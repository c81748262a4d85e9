// Package encoder adapts trained label encoders to per-column lookups.
package encoder

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Artifact is the on-disk form of a label encoder set.
// Each column lists its classes in the order the encoder was fitted;
// a value's code is its index in that list.
type Artifact struct {
	Version  string              `json:"version"`
	Encoders map[string][]string `json:"encoders"`
}

// Table holds one encoder per categorical column.
// It is immutable after construction and safe for concurrent use.
type Table struct {
	version string
	codes   map[string]map[string]int
}

// New builds a table from column class lists.
func New(version string, encoders map[string][]string) (*Table, error) {
	t := &Table{
		version: version,
		codes:   make(map[string]map[string]int, len(encoders)),
	}

	for column, classes := range encoders {
		if column == "" {
			return nil, fmt.Errorf("%w: encoder with empty column name", domain.ErrArtifactLoad)
		}
		if len(classes) == 0 {
			return nil, fmt.Errorf("%w: encoder for %s has no classes", domain.ErrArtifactLoad, column)
		}

		codes := make(map[string]int, len(classes))
		for i, class := range classes {
			if _, dup := codes[class]; dup {
				return nil, fmt.Errorf("%w: encoder for %s lists %q twice", domain.ErrArtifactLoad, column, class)
			}
			codes[class] = i
		}
		t.codes[column] = codes
	}

	return t, nil
}

// Load reads an encoder artifact from disk.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read encoders: %v", domain.ErrArtifactLoad, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: decode encoders %s: %v", domain.ErrArtifactLoad, path, err)
	}
	if artifact.Encoders == nil {
		return nil, fmt.Errorf("%w: %s has no encoders", domain.ErrArtifactLoad, path)
	}

	return New(artifact.Version, artifact.Encoders)
}

// Encode maps a category to its trained code.
// Columns without a registered encoder encode as 0.
func (t *Table) Encode(column, value string) (float64, error) {
	codes, ok := t.codes[column]
	if !ok {
		return 0, nil
	}

	code, ok := codes[value]
	if !ok {
		return 0, &domain.UnknownCategoryError{Column: column, Value: value}
	}
	return float64(code), nil
}

// Has reports whether a column has a registered encoder.
func (t *Table) Has(column string) bool {
	_, ok := t.codes[column]
	return ok
}

// Columns returns the registered columns, sorted.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.codes))
	for c := range t.codes {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Classes returns the class list of a column in code order.
func (t *Table) Classes(column string) []string {
	codes, ok := t.codes[column]
	if !ok {
		return nil
	}
	classes := make([]string, len(codes))
	for class, i := range codes {
		classes[i] = class
	}
	return classes
}

// Version identifies the artifact.
func (t *Table) Version() string {
	return t.version
}
