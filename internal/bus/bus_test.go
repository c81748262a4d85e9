package bus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var receivedMsg *domain.Message

		var wg sync.WaitGroup
		wg.Add(1)

		_, err := bus.Subscribe(ctx, domain.TopicLookupDecided, func(ctx context.Context, msg *domain.Message) error {
			receivedMsg = msg
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, domain.TopicLookupDecided, []byte("hello")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		waitTimeout(t, &wg, time.Second)

		if string(receivedMsg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(receivedMsg.Payload))
		}
		if receivedMsg.Topic != domain.TopicLookupDecided {
			t.Errorf("expected topic %q, got %q", domain.TopicLookupDecided, receivedMsg.Topic)
		}
		if receivedMsg.ID == "" {
			t.Error("expected message ID to be set")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var decided, failed atomic.Int32

		bus.Subscribe(ctx, "isolation.decided", func(ctx context.Context, msg *domain.Message) error {
			decided.Add(1)
			return nil
		})
		bus.Subscribe(ctx, "isolation.failed", func(ctx context.Context, msg *domain.Message) error {
			failed.Add(1)
			return nil
		})

		bus.Publish(ctx, "isolation.decided", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if decided.Load() != 1 {
			t.Errorf("decided should receive 1 message, got %d", decided.Load())
		}
		if failed.Load() != 0 {
			t.Errorf("failed should receive 0 messages, got %d", failed.Load())
		}
	})

	t.Run("RequiresTopic", func(t *testing.T) {
		if err := bus.Publish(ctx, "", []byte("data")); err == nil {
			t.Error("expected error for empty topic")
		}
		_, err := bus.Subscribe(ctx, "", func(ctx context.Context, msg *domain.Message) error { return nil })
		if err == nil {
			t.Error("expected error for empty topic")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var received atomic.Int32
		sub, _ := bus.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			received.Add(1)
			return nil
		})

		bus.Publish(ctx, "unsub.topic", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		bus.Publish(ctx, "unsub.topic", []byte("msg2"))
		time.Sleep(50 * time.Millisecond)

		if received.Load() != 1 {
			t.Errorf("expected 1 message before unsubscribe, got %d", received.Load())
		}

		bus.mu.RLock()
		_, stillRegistered := bus.subscriptions["unsub.topic"]
		bus.mu.RUnlock()
		if stillRegistered {
			t.Error("expected subscription to be removed from the bus")
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int32
		var wg sync.WaitGroup
		wg.Add(2)

		for i := 0; i < 2; i++ {
			bus.Subscribe(ctx, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				wg.Done()
				return nil
			})
		}

		bus.Publish(ctx, "multi.topic", []byte("broadcast"))
		waitTimeout(t, &wg, time.Second)

		if count.Load() != 2 {
			t.Errorf("expected 2 deliveries, got %d", count.Load())
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, "my.topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		defer sub.Unsubscribe()

		if sub.Topic() != "my.topic" {
			t.Errorf("expected topic 'my.topic', got '%s'", sub.Topic())
		}
	})
}

func TestChannelBusRequestReply(t *testing.T) {
	bus := NewChannelBus(10)
	defer bus.Close()

	ctx := context.Background()

	t.Run("RepliesToRequester", func(t *testing.T) {
		bus.Subscribe(ctx, domain.TopicLookupRequested, func(ctx context.Context, msg *domain.Message) error {
			if msg.ReplyTo() == "" {
				t.Error("expected request to carry a reply topic")
			}
			return bus.Reply(ctx, msg, append([]byte("echo:"), msg.Payload...))
		})

		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		reply, err := bus.Request(reqCtx, domain.TopicLookupRequested, []byte("Rahul Sharma"))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if string(reply) != "echo:Rahul Sharma" {
			t.Errorf("unexpected reply %q", string(reply))
		}
	})

	t.Run("TimesOutWithoutResponder", func(t *testing.T) {
		reqCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		if _, err := bus.Request(reqCtx, "nobody.listens", []byte("x")); err == nil {
			t.Error("expected timeout error")
		}
	})

	t.Run("ReplyRequiresReplyTopic", func(t *testing.T) {
		msg := &domain.Message{ID: "m-1", Topic: "plain"}
		if err := bus.Reply(ctx, msg, []byte("x")); err == nil {
			t.Error("expected error replying to a plain message")
		}
	})
}

func TestLookupPayloads(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	t.Run("PublishJSON", func(t *testing.T) {
		got := make(chan domain.LookupRequest, 1)
		b.Subscribe(ctx, "lookup.test", func(ctx context.Context, msg *domain.Message) error {
			var req domain.LookupRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				t.Errorf("payload is not JSON: %v", err)
			}
			got <- req
			return nil
		})

		if err := PublishJSON(ctx, b, "lookup.test", domain.LookupRequest{RequestID: "r-1", Name: "Priya Nair"}); err != nil {
			t.Fatalf("PublishJSON failed: %v", err)
		}

		select {
		case req := <-got:
			if req.RequestID != "r-1" || req.Name != "Priya Nair" {
				t.Errorf("unexpected request %+v", req)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("PublishJSONEncodeError", func(t *testing.T) {
		if err := PublishJSON(ctx, b, "lookup.test", make(chan int)); err == nil {
			t.Error("expected encode error")
		}
	})

	t.Run("RequestLookup", func(t *testing.T) {
		b.Subscribe(ctx, domain.TopicLookupRequested, func(ctx context.Context, msg *domain.Message) error {
			var req domain.LookupRequest
			json.Unmarshal(msg.Payload, &req)
			reply, _ := json.Marshal(domain.LookupReply{Failure: &domain.LookupFailure{
				RequestID: req.RequestID,
				Name:      req.Name,
				Kind:      domain.KindNotFound,
				Error:     "customer not found",
			}})
			return b.Reply(ctx, msg, reply)
		})

		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		reply, err := RequestLookup(reqCtx, b, domain.LookupRequest{RequestID: "r-2", Name: "Nobody"})
		if err != nil {
			t.Fatalf("RequestLookup failed: %v", err)
		}
		if reply.Response != nil || reply.Failure == nil {
			t.Fatalf("expected a failure reply, got %+v", reply)
		}
		if reply.Failure.RequestID != "r-2" || reply.Failure.Kind != domain.KindNotFound {
			t.Errorf("unexpected failure %+v", reply.Failure)
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)

	ctx := context.Background()

	bus.Subscribe(ctx, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}

	if err := bus.Publish(ctx, "close.topic", []byte("data")); err == nil {
		t.Error("expected error after close")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping error after close")
	}
}

func TestNATSSubject(t *testing.T) {
	b := &NATSBus{}

	tests := []struct {
		topic string
		want  string
	}{
		{domain.TopicLookupRequested, "kestrel.lookup.requested"},
		{"lookup.audit", "kestrel.lookup.audit"},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := b.makeSubject(tt.topic); got != tt.want {
				t.Errorf("makeSubject(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		cfg := domain.EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 50,
		}

		bus, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer bus.Close()

		if _, ok := bus.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()

	ctx := context.Background()

	var received atomic.Int32
	const messageCount = 100

	var wg sync.WaitGroup
	wg.Add(messageCount)

	bus.Subscribe(ctx, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	for i := 0; i < messageCount; i++ {
		bus.Publish(ctx, "load.topic", []byte("msg"))
	}

	waitTimeout(t, &wg, 5*time.Second)

	if received.Load() != messageCount {
		t.Errorf("expected %d messages, got %d", messageCount, received.Load())
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timeout waiting for messages")
	}
}
