// Package repository provides SQL persistence for customers and lookups.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DefaultListLimit caps history queries that pass no limit.
const DefaultListLimit = 50

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) createSchema() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// FindByName retrieves the customer whose name matches exactly.
func (r *SQLRepository) FindByName(ctx context.Context, name string) (*domain.CustomerRecord, error) {
	query := `SELECT document FROM customers WHERE name = ?`

	var document string
	err := r.db.QueryRowContext(ctx, r.rebind(query), name).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	return domain.RecordFromDocument(doc)
}

// SaveCustomer inserts or replaces a customer keyed by name.
func (r *SQLRepository) SaveCustomer(ctx context.Context, rec *domain.CustomerRecord) error {
	if rec == nil || strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("%w: customer name is required", domain.ErrInvalidInput)
	}

	document, err := json.Marshal(rec.Columns())
	if err != nil {
		return fmt.Errorf("failed to encode customer: %w", err)
	}

	query := `
		INSERT INTO customers (name, customer_id, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			customer_id = excluded.customer_id,
			document = excluded.document,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.Name, rec.CustomerID, string(document), time.Now().UTC(),
	)
	return err
}

// SaveLookup stores a completed lookup.
func (r *SQLRepository) SaveLookup(ctx context.Context, a *domain.LookupActivity) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: lookup id is required", domain.ErrInvalidInput)
	}

	reasons, _ := json.Marshal(a.Reasons)

	disagrees := 0
	if a.RationaleDisagrees {
		disagrees = 1
	}

	query := `
		INSERT INTO lookups (
			id, name, outcome, reasons, model_version,
			rationale_disagrees, timestamp, total_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.Name, string(a.Outcome), string(reasons), a.ModelVersion,
		disagrees, a.Timestamp, a.TotalMs,
	)
	return err
}

const selectLookup = `
	SELECT id, name, outcome, reasons, model_version,
		   rationale_disagrees, timestamp, total_ms
	FROM lookups
`

// GetLookup retrieves a lookup by ID.
func (r *SQLRepository) GetLookup(ctx context.Context, lookupID string) (*domain.LookupActivity, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(selectLookup+` WHERE id = ?`), lookupID)

	a, err := scanLookup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListLookupsByName returns a customer's lookups, newest first.
func (r *SQLRepository) ListLookupsByName(ctx context.Context, name string, limit int) ([]*domain.LookupActivity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := selectLookup + ` WHERE name = ? ORDER BY timestamp DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lookups []*domain.LookupActivity
	for rows.Next() {
		a, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, a)
	}

	return lookups, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLookup(s scanner) (*domain.LookupActivity, error) {
	var a domain.LookupActivity
	var outcome, reasons string
	var disagrees int

	if err := s.Scan(
		&a.ID, &a.Name, &outcome, &reasons, &a.ModelVersion,
		&disagrees, &a.Timestamp, &a.TotalMs,
	); err != nil {
		return nil, err
	}

	a.Outcome = domain.Outcome(outcome)
	a.RationaleDisagrees = disagrees == 1
	if err := json.Unmarshal([]byte(reasons), &a.Reasons); err != nil {
		return nil, fmt.Errorf("failed to parse reasons for lookup %s: %w", a.ID, err)
	}
	return &a, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
