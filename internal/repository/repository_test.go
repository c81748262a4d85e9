package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndFindCustomer", func(t *testing.T) {
		age := 41
		rec := &domain.CustomerRecord{
			CustomerID:          "CUST-0007",
			Name:                "Meera Iyer",
			Age:                 &age,
			Gender:              "Female",
			City:                "Chennai",
			BankBalance:         decimal.RequireFromString("85000.50"),
			CIBILScore:          712,
			ExistingLoans:       "No",
			IncomeSource:        "Salary",
			EmploymentType:      "Full-time",
			LoanAmountRequested: decimal.NewFromInt(150000),
			Extra:               map[string]any{"Dependents": 2.0},
		}

		if err := repo.SaveCustomer(ctx, rec); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}

		got, err := repo.FindByName(ctx, "Meera Iyer")
		if err != nil {
			t.Fatalf("FindByName failed: %v", err)
		}
		if got.CustomerID != rec.CustomerID || got.CIBILScore != 712 {
			t.Errorf("unexpected record: %+v", got)
		}
		if !got.BankBalance.Equal(rec.BankBalance) {
			t.Errorf("expected balance %s, got %s", rec.BankBalance, got.BankBalance)
		}
		if got.Age == nil || *got.Age != 41 {
			t.Errorf("expected age 41, got %v", got.Age)
		}
		if got.LoanTenureMonths != nil {
			t.Errorf("expected no tenure, got %v", *got.LoanTenureMonths)
		}
		if got.Extra["Dependents"] != 2.0 {
			t.Errorf("expected extra field to survive, got %v", got.Extra)
		}
	})

	t.Run("SaveCustomerReplaces", func(t *testing.T) {
		rec := &domain.CustomerRecord{
			Name:                "Meera Iyer",
			BankBalance:         decimal.NewFromInt(1000),
			CIBILScore:          590,
			ExistingLoans:       "Yes",
			EmploymentType:      "Contract",
			LoanAmountRequested: decimal.NewFromInt(5000),
		}
		if err := repo.SaveCustomer(ctx, rec); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}

		got, err := repo.FindByName(ctx, "Meera Iyer")
		if err != nil {
			t.Fatal(err)
		}
		if got.CIBILScore != 590 || got.EmploymentType != "Contract" {
			t.Errorf("expected replaced record, got %+v", got)
		}
	})

	t.Run("FindByNameIsExact", func(t *testing.T) {
		for _, name := range []string{"meera iyer", "Meera", "Meera Iyer "} {
			if _, err := repo.FindByName(ctx, name); !errors.Is(err, domain.ErrCustomerNotFound) {
				t.Errorf("FindByName(%q): expected ErrCustomerNotFound, got %v", name, err)
			}
		}
	})

	t.Run("SaveCustomerRequiresName", func(t *testing.T) {
		if err := repo.SaveCustomer(ctx, &domain.CustomerRecord{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("SaveAndGetLookup", func(t *testing.T) {
		a := &domain.LookupActivity{
			ID:           "lookup-001",
			Name:         "Meera Iyer",
			Outcome:      domain.OutcomeRejected,
			ModelVersion: "lr-1",
			Reasons: domain.ReasonSet{
				{RuleID: "cibil-score", Text: "Low CIBIL Score", Detail: "Less than 650", Leaning: domain.LeaningRejection},
			},
			Timestamp: time.Now().UTC().Truncate(time.Second),
			TotalMs:   12,
		}

		if err := repo.SaveLookup(ctx, a); err != nil {
			t.Fatalf("SaveLookup failed: %v", err)
		}

		got, err := repo.GetLookup(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetLookup failed: %v", err)
		}
		if got.Outcome != domain.OutcomeRejected || got.ModelVersion != "lr-1" || got.TotalMs != 12 {
			t.Errorf("unexpected lookup: %+v", got)
		}
		if len(got.Reasons) != 1 || got.Reasons[0].Text != "Low CIBIL Score" {
			t.Errorf("unexpected reasons: %+v", got.Reasons)
		}
		if got.RationaleDisagrees {
			t.Error("expected RationaleDisagrees false")
		}
	})

	t.Run("ListLookupsByName", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Second)
		for i, id := range []string{"hist-1", "hist-2", "hist-3"} {
			a := &domain.LookupActivity{
				ID:                 id,
				Name:               "Arjun Das",
				Outcome:            domain.OutcomeApproved,
				Reasons:            domain.ReasonSet{},
				ModelVersion:       "lr-1",
				RationaleDisagrees: i == 2,
				Timestamp:          base.Add(time.Duration(i) * time.Minute),
			}
			if err := repo.SaveLookup(ctx, a); err != nil {
				t.Fatal(err)
			}
		}

		lookups, err := repo.ListLookupsByName(ctx, "Arjun Das", 2)
		if err != nil {
			t.Fatalf("ListLookupsByName failed: %v", err)
		}
		if len(lookups) != 2 {
			t.Fatalf("expected 2 lookups, got %d", len(lookups))
		}
		if lookups[0].ID != "hist-3" || lookups[1].ID != "hist-2" {
			t.Errorf("expected newest first, got %s, %s", lookups[0].ID, lookups[1].ID)
		}
		if !lookups[0].RationaleDisagrees {
			t.Error("expected hist-3 to carry the disagreement flag")
		}

		none, err := repo.ListLookupsByName(ctx, "Nobody", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(none) != 0 {
			t.Errorf("expected no lookups, got %d", len(none))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetLookup(ctx, "nonexistent")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.RepositoryConfig
		want string
	}{
		{
			name: "Defaults",
			cfg:  domain.RepositoryConfig{Driver: "postgres"},
			want: "host='localhost' port=5432 dbname='kestrel' sslmode='disable'",
		},
		{
			name: "QuotedCredentials",
			cfg: domain.RepositoryConfig{
				Driver:           "postgres",
				PostgresHost:     "db.internal",
				PostgresPort:     6432,
				PostgresDB:       "loans",
				PostgresUser:     "kestrel",
				PostgresPassword: `it's a secret`,
				PostgresSSLMode:  "require",
			},
			want: `host='db.internal' port=6432 dbname='loans' sslmode='require' user='kestrel' password='it\'s a secret'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := postgresDSN(tt.cfg); got != tt.want {
				t.Errorf("postgresDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trail", "kestrel.db")

	repo, err := New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer repo.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected database file at %s: %v", path, err)
	}
}
