package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

// schemaCustomers keeps each customer as the raw store document so that
// fields outside the typed record survive a round trip.
const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    name TEXT PRIMARY KEY,
    customer_id TEXT,
    document TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_customer_id ON customers(customer_id);
`

const schemaLookups = `
CREATE TABLE IF NOT EXISTS lookups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    outcome TEXT NOT NULL,
    reasons TEXT NOT NULL,
    model_version TEXT NOT NULL,
    rationale_disagrees INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    total_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_lookups_name ON lookups(name, timestamp);
CREATE INDEX IF NOT EXISTS idx_lookups_outcome ON lookups(outcome);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaLookups,
	}
}
