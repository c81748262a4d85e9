package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	defaultCollection   = "customers"
	defaultQueryTimeout = 5 * time.Second
)

// Store implements domain.RecordStore over a customers collection.
// Documents use the store column names (Name, CIBIL_Score, ...).
type Store struct {
	client       *Client
	coll         *mongo.Collection
	queryTimeout time.Duration
}

// NewStore creates a record store on the configured collection.
func NewStore(client *Client, cfg domain.StoreConfig) *Store {
	collection := cfg.MongoCollection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Store{
		client:       client,
		coll:         client.Database.Collection(collection),
		queryTimeout: timeout,
	}
}

// FindByName returns the first document whose Name matches exactly.
func (s *Store) FindByName(ctx context.Context, name string) (*domain.CustomerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.M{"_id": 0})

	var doc bson.M
	err := s.coll.FindOne(ctx, bson.M{domain.ColumnName: name}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}

	return domain.RecordFromDocument(normalize(doc))
}

// SaveCustomer upserts a customer document keyed by Name.
func (s *Store) SaveCustomer(ctx context.Context, rec *domain.CustomerRecord) error {
	if rec == nil || strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("%w: customer name is required", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx,
		bson.M{domain.ColumnName: rec.Name},
		rec.Columns(),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save customer: %w", err)
	}
	return nil
}

// EnsureIndexes creates the Name index used by lookups.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: domain.ColumnName, Value: 1}},
		Options: options.Index().SetName("name_idx"),
	})
	return err
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// normalize converts driver-specific values into plain Go values.
func normalize(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case primitive.Decimal128:
			out[k] = t.String()
		case primitive.ObjectID:
			out[k] = t.Hex()
		case primitive.DateTime:
			out[k] = t.Time().UTC()
		default:
			out[k] = v
		}
	}
	return out
}
