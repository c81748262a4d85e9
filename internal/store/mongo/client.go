// Package mongo implements the customer record store on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Client bundles a connected driver client and its database.
type Client struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connector abstracts the driver calls made while connecting.
type Connector interface {
	Connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)
	Ping(ctx context.Context, client *mongo.Client) error
}

// DefaultConnector uses the real driver.
type DefaultConnector struct{}

func (DefaultConnector) Connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	return mongo.Connect(ctx, opts)
}

func (DefaultConnector) Ping(ctx context.Context, client *mongo.Client) error {
	return client.Ping(ctx, nil)
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg domain.StoreConfig) (*Client, error) {
	return connectWithConnector(ctx, cfg, DefaultConnector{})
}

func connectWithConnector(ctx context.Context, cfg domain.StoreConfig, connector Connector) (*Client, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("%w: mongo uri is required", domain.ErrInvalidInput)
	}
	if cfg.MongoDatabase == "" {
		return nil, fmt.Errorf("%w: mongo database is required", domain.ErrInvalidInput)
	}

	safeURI := redactURI(cfg.MongoURI)
	slog.Info("connecting to MongoDB", "uri", safeURI, "database", cfg.MongoDatabase)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout * 2).
		SetHeartbeatInterval(10 * time.Second)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MongoUsername != "" {
		clientOpts.SetAuth(options.Credential{
			Username: cfg.MongoUsername,
			Password: cfg.MongoPassword,
		})
	}

	client, err := connector.Connect(ctx, clientOpts)
	if err != nil {
		slog.Error("failed to connect to MongoDB", "uri", safeURI, "error", err)
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := connector.Ping(ctx, client); err != nil {
		slog.Error("MongoDB ping failed", "uri", safeURI, "error", err)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	slog.Info("connected to MongoDB", "uri", safeURI, "database", cfg.MongoDatabase)

	return &Client{
		Client:   client,
		Database: client.Database(cfg.MongoDatabase),
	}, nil
}

// Disconnect closes the driver client.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Disconnect(ctx)
}

// redactURI hides credentials embedded in a connection string.
func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}
