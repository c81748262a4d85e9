package encoder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	table, err := New("enc-1", map[string][]string{
		"Gender":          {"Female", "Male", "Other"},
		"Employment_Type": {"Contract", "Full-time", "Self-employed", "Unemployed"},
	})
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	return table
}

func TestEncode(t *testing.T) {
	table := newTestTable(t)

	t.Run("KnownValue", func(t *testing.T) {
		code, err := table.Encode("Gender", "Male")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != 1 {
			t.Errorf("expected code 1, got %v", code)
		}

		code, err = table.Encode("Employment_Type", "Unemployed")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != 3 {
			t.Errorf("expected code 3, got %v", code)
		}
	})

	t.Run("UnseenValue", func(t *testing.T) {
		_, err := table.Encode("Employment_Type", "Freelancer")
		if !errors.Is(err, domain.ErrUnknownCategory) {
			t.Fatalf("expected ErrUnknownCategory, got %v", err)
		}

		var uce *domain.UnknownCategoryError
		if !errors.As(err, &uce) {
			t.Fatalf("expected *UnknownCategoryError, got %T", err)
		}
		if uce.Column != "Employment_Type" || uce.Value != "Freelancer" {
			t.Errorf("unexpected error fields: %+v", uce)
		}
	})

	t.Run("UnregisteredColumn", func(t *testing.T) {
		code, err := table.Encode("Income_Source", "Salary")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != 0 {
			t.Errorf("expected 0 for unregistered column, got %v", code)
		}
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		if _, err := table.Encode("Gender", "male"); !errors.Is(err, domain.ErrUnknownCategory) {
			t.Errorf("expected lowercase value to be unknown, got %v", err)
		}
	})
}

func TestColumnsAndClasses(t *testing.T) {
	table := newTestTable(t)

	cols := table.Columns()
	if len(cols) != 2 || cols[0] != "Employment_Type" || cols[1] != "Gender" {
		t.Errorf("unexpected columns: %v", cols)
	}

	classes := table.Classes("Gender")
	if len(classes) != 3 || classes[0] != "Female" || classes[2] != "Other" {
		t.Errorf("unexpected classes: %v", classes)
	}
	if table.Classes("Missing") != nil {
		t.Error("expected nil classes for unregistered column")
	}
	if !table.Has("Gender") || table.Has("Income_Source") {
		t.Error("Has returned wrong result")
	}
	if table.Version() != "enc-1" {
		t.Errorf("expected version enc-1, got %s", table.Version())
	}
}

func TestNewRejectsBadEncoders(t *testing.T) {
	tests := []struct {
		name     string
		encoders map[string][]string
	}{
		{"EmptyClasses", map[string][]string{"Gender": {}}},
		{"DuplicateClass", map[string][]string{"Gender": {"Male", "Male"}}},
		{"EmptyColumn", map[string][]string{"": {"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New("v", tt.encoders); !errors.Is(err, domain.ErrArtifactLoad) {
				t.Errorf("expected ErrArtifactLoad, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("Valid", func(t *testing.T) {
		path := filepath.Join(dir, "encoders.json")
		content := `{"version":"2024-01","encoders":{"Gender":["Female","Male"]}}`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		table, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if table.Version() != "2024-01" {
			t.Errorf("expected version 2024-01, got %s", table.Version())
		}
		if code, _ := table.Encode("Gender", "Male"); code != 1 {
			t.Errorf("expected code 1, got %v", code)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.json"))
		if !errors.Is(err, domain.ErrArtifactLoad) {
			t.Errorf("expected ErrArtifactLoad, got %v", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); !errors.Is(err, domain.ErrArtifactLoad) {
			t.Errorf("expected ErrArtifactLoad, got %v", err)
		}
	})

	t.Run("NoEncoders", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		if err := os.WriteFile(path, []byte(`{"version":"x"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); !errors.Is(err, domain.ErrArtifactLoad) {
			t.Errorf("expected ErrArtifactLoad, got %v", err)
		}
	})
}
