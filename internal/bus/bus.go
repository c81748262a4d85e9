// Package bus carries lookup requests and their outcomes between the API,
// workers and operators. Payloads on every lookup topic are JSON.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// New returns the bus named by cfg.Type: "channel" keeps lookups in this
// process, "nats" shares them across kestrel instances.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	}
	return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
}

// PublishJSON encodes v and publishes it on topic.
func PublishJSON(ctx context.Context, b domain.EventBus, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return b.Publish(ctx, topic, payload)
}

// RequestLookup sends a lookup request and waits for the worker's reply.
func RequestLookup(ctx context.Context, b domain.EventBus, req domain.LookupRequest) (*domain.LookupReply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode lookup request: %w", err)
	}

	raw, err := b.Request(ctx, domain.TopicLookupRequested, payload)
	if err != nil {
		return nil, err
	}

	var reply domain.LookupReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("invalid lookup reply: %w", err)
	}
	return &reply, nil
}
