package domain

import (
	"context"
	"errors"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)

	// Reply answers a message received through Request.
	Reply(ctx context.Context, msg *Message, payload []byte) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// MetadataReplyTo is the metadata key carrying the reply subject of a request.
const MetadataReplyTo = "reply_to"

// ReplyTo returns the reply subject of a request message, if any.
func (m *Message) ReplyTo() string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	return m.Metadata[MetadataReplyTo]
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `mapstructure:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `mapstructure:"channelBufferSize"`

	// NATS settings (Pro tier)
	NATSUrl           string `mapstructure:"natsUrl"`
	NATSToken         string `mapstructure:"natsToken"`
	NATSMaxReconnects int    `mapstructure:"natsMaxReconnects"`
	NATSReconnectWait int    `mapstructure:"natsReconnectWait"` // seconds
}

// Standard topic names for the lookup pipeline.
const (
	TopicLookupRequested = "kestrel.lookup.requested"
	TopicLookupDecided   = "kestrel.lookup.decided"
	TopicLookupFailed    = "kestrel.lookup.failed"
	TopicLookupCompleted = "kestrel.lookup.completed"
)

// LookupRequest is the payload of an asynchronous lookup request.
type LookupRequest struct {
	RequestID string `json:"requestId"`
	Name      string `json:"name"`
	TraceID   string `json:"traceId,omitempty"`
}

// LookupFailure is published when an asynchronous lookup cannot complete.
type LookupFailure struct {
	RequestID string `json:"requestId"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
	Column    string `json:"column,omitempty"`
	Value     string `json:"value,omitempty"`
}

// NewLookupFailure describes err for bus consumers.
func NewLookupFailure(requestID, name string, err error) *LookupFailure {
	f := &LookupFailure{
		RequestID: requestID,
		Name:      name,
		Kind:      ErrorKind(err),
		Error:     err.Error(),
	}
	var uc *UnknownCategoryError
	if errors.As(err, &uc) {
		f.Column = uc.Column
		f.Value = uc.Value
	}
	return f
}

// LookupReply answers a lookup request. Exactly one field is set.
type LookupReply struct {
	Response *LookupResponse `json:"response,omitempty"`
	Failure  *LookupFailure  `json:"failure,omitempty"`
}
