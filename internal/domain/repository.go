// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// RecordStore is the customer record collaborator.
type RecordStore interface {
	// FindByName returns the record whose name matches exactly.
	// Returns ErrCustomerNotFound on a miss.
	FindByName(ctx context.Context, name string) (*CustomerRecord, error)

	// SaveCustomer inserts or replaces a record, keyed by name.
	SaveCustomer(ctx context.Context, rec *CustomerRecord) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Repository persists customers and the lookup activity trail.
type Repository interface {
	RecordStore

	SaveLookup(ctx context.Context, activity *LookupActivity) error
	GetLookup(ctx context.Context, lookupID string) (*LookupActivity, error)
	ListLookupsByName(ctx context.Context, name string, limit int) ([]*LookupActivity, error)
}

// ActivityRecorder receives one entry per finished lookup.
type ActivityRecorder interface {
	Record(ctx context.Context, result *LookupResult) error
	RecordMiss(ctx context.Context, name string) error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `mapstructure:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `mapstructure:"postgresHost"`
	PostgresPort     int    `mapstructure:"postgresPort"`
	PostgresUser     string `mapstructure:"postgresUser"`
	PostgresPassword string `mapstructure:"postgresPassword"`
	PostgresDB       string `mapstructure:"postgresDb"`
	PostgresSSLMode  string `mapstructure:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

// StoreConfig selects and configures the customer record store.
type StoreConfig struct {
	// Type is "mongo" or "sql" (reuses the repository database).
	Type string `mapstructure:"type"`

	MongoURI        string        `mapstructure:"mongoUri"`
	MongoUsername   string        `mapstructure:"mongoUsername"`
	MongoPassword   string        `mapstructure:"mongoPassword"`
	MongoDatabase   string        `mapstructure:"mongoDatabase"`
	MongoCollection string        `mapstructure:"mongoCollection"`
	MaxPoolSize     uint64        `mapstructure:"maxPoolSize"`
	ConnectTimeout  time.Duration `mapstructure:"connectTimeout"`

	// QueryTimeout bounds each record fetch.
	QueryTimeout time.Duration `mapstructure:"queryTimeout"`
}
