// Package worker serves asynchronous lookup requests from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Looker runs one lookup. *lookup.Service satisfies it.
type Looker interface {
	Lookup(ctx context.Context, name string) (*domain.LookupResult, error)
}

// Worker consumes lookup requests and publishes their outcomes.
type Worker struct {
	bus    domain.EventBus
	looker Looker

	subscriptions []domain.Subscription
	sem           chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	mu        sync.Mutex
	processed int64
	failed    int64
}

// Config holds worker configuration.
type Config struct {
	// Concurrency bounds lookups in flight. Zero means 4.
	Concurrency int
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, looker Looker) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    eventBus,
		looker: looker,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to lookup requests.
func (w *Worker) Start(cfg Config) error {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	w.sem = make(chan struct{}, cfg.Concurrency)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicLookupRequested, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicLookupRequested, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("lookup worker started",
		"topic", domain.TopicLookupRequested,
		"concurrency", cfg.Concurrency,
	)
	return nil
}

// handleMessage hands the request to a bounded goroutine pool.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		// The subscription context ends on Unsubscribe; in-flight work
		// runs on the worker context until Stop drains it.
		w.process(w.ctx, msg)
	}()
	return nil
}

// process runs a lookup and publishes the decision or the failure.
func (w *Worker) process(ctx context.Context, msg *domain.Message) {
	start := time.Now()

	var req domain.LookupRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse lookup request",
			"message_id", msg.ID,
			"error", err,
		)
		w.publishFailure(ctx, msg, domain.NewLookupFailure(msg.ID, "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)))
		return
	}
	if req.RequestID == "" {
		req.RequestID = msg.ID
	}

	slog.Debug("processing lookup request",
		"request_id", req.RequestID,
		"name", req.Name,
		"trace_id", req.TraceID,
	)

	result, err := w.looker.Lookup(ctx, req.Name)
	if err != nil {
		w.publishFailure(ctx, msg, domain.NewLookupFailure(req.RequestID, req.Name, err))
		return
	}

	resp := result.ToResponse()
	if req.TraceID != "" {
		resp.Metadata.TraceID = req.TraceID
	}
	if err := bus.PublishJSON(ctx, w.bus, domain.TopicLookupDecided, resp); err != nil {
		slog.Error("failed to publish decision",
			"request_id", req.RequestID,
			"error", err,
		)
	}
	w.reply(ctx, msg, &domain.LookupReply{Response: resp})

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()

	slog.Info("lookup request processed",
		"request_id", req.RequestID,
		"name", req.Name,
		"status", resp.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) publishFailure(ctx context.Context, msg *domain.Message, failure *domain.LookupFailure) {
	w.mu.Lock()
	w.failed++
	w.mu.Unlock()

	level := slog.LevelWarn
	if failure.Kind == domain.KindNotFound {
		level = slog.LevelInfo
	}
	slog.Log(ctx, level, "lookup request failed",
		"request_id", failure.RequestID,
		"name", failure.Name,
		"kind", failure.Kind,
		"error", failure.Error,
	)

	if err := bus.PublishJSON(ctx, w.bus, domain.TopicLookupFailed, failure); err != nil {
		slog.Error("failed to publish lookup failure",
			"request_id", failure.RequestID,
			"error", err,
		)
	}
	w.reply(ctx, msg, &domain.LookupReply{Failure: failure})
}

// reply answers request-reply callers; plain publishes have no reply topic.
func (w *Worker) reply(ctx context.Context, msg *domain.Message, reply *domain.LookupReply) {
	if msg.ReplyTo() == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := w.bus.Reply(ctx, msg, payload); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("failed to reply to lookup request",
			"message_id", msg.ID,
			"error", err,
		)
	}
}

// Stop gracefully stops the worker and waits for in-flight lookups.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()
	w.cancel()

	slog.Info("lookup worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed,
		Failed:            w.failed,
	}
}
