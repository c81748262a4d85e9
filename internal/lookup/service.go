// Package lookup runs the end-to-end loan decision for one customer name.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/rationale"
)

// Service orchestrates fetch, reconcile, score and explain.
// It keeps no per-lookup state, so concurrent calls are independent.
type Service struct {
	store      domain.RecordStore
	reconciler *features.Reconciler
	scorer     *decision.Scorer
	explainer  *rationale.Engine
	recorder   domain.ActivityRecorder

	encoderVersion string
	tracer         trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder notifies the recorder after every lookup.
func WithRecorder(r domain.ActivityRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithEncoderVersion reports the encoder artifact version in metadata.
func WithEncoderVersion(v string) Option {
	return func(s *Service) { s.encoderVersion = v }
}

// NewService wires a lookup service.
func NewService(store domain.RecordStore, reconciler *features.Reconciler, scorer *decision.Scorer, explainer *rationale.Engine, opts ...Option) *Service {
	s := &Service{
		store:      store,
		reconciler: reconciler,
		scorer:     scorer,
		explainer:  explainer,
		tracer:     otel.Tracer("kestrel/lookup"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup decides the loan status for the customer with the exact name.
//
// A miss returns domain.ErrCustomerNotFound without invoking the classifier.
// Any reconcile, encode or score failure aborts with no partial outcome.
func (s *Service) Lookup(ctx context.Context, name string) (*domain.LookupResult, error) {
	start := time.Now()

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "lookup.Lookup",
		trace.WithAttributes(attribute.String("customer.name", name)),
	)
	defer span.End()

	traceID := ""
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	rec, err := s.store.FindByName(ctx, name)
	fetchMs := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			slog.Info("customer not found", "customer", name, "trace_id", traceID)
			span.SetAttributes(attribute.Bool("customer.found", false))
			s.recordMiss(ctx, name)
			return nil, err
		}
		return nil, s.fail(span, name, fmt.Errorf("fetch customer: %w", err))
	}

	classifier := s.scorer.Classifier()

	vec, err := s.reconciler.Reconcile(rec, classifier)
	if err != nil {
		return nil, s.fail(span, name, err)
	}

	scoreStart := time.Now()
	outcome, err := s.scorer.Score(ctx, vec)
	if err != nil {
		return nil, s.fail(span, name, err)
	}
	scoreMs := time.Since(scoreStart).Milliseconds()

	reasons := s.explainer.Explain(rec, outcome)
	disagrees := rationale.Disagrees(outcome, reasons)

	result := &domain.LookupResult{
		ID:                 uuid.New().String(),
		Name:               name,
		Record:             *rec,
		Outcome:            outcome,
		Reasons:            reasons,
		Features:           *vec,
		Timestamp:          time.Now().UTC(),
		RationaleDisagrees: disagrees,
		Metadata: domain.LookupMetadata{
			TraceID:        traceID,
			FetchMs:        fetchMs,
			ScoreMs:        scoreMs,
			TotalMs:        time.Since(start).Milliseconds(),
			ModelVersion:   classifier.Version(),
			EncoderVersion: s.encoderVersion,
			EngineVersion:  decision.EngineVersion,
		},
	}

	span.SetAttributes(
		attribute.Bool("customer.found", true),
		attribute.String("lookup.id", result.ID),
		attribute.String("lookup.outcome", string(outcome)),
		attribute.Bool("lookup.rationale_disagrees", disagrees),
	)

	if disagrees {
		slog.Warn("rationale does not support outcome",
			"lookup_id", result.ID,
			"customer", name,
			"outcome", outcome,
		)
	}

	slog.Info("lookup completed",
		"lookup_id", result.ID,
		"customer", name,
		"outcome", outcome,
		"reasons", len(reasons),
		"duration_ms", result.Metadata.TotalMs,
	)

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, result); err != nil {
			slog.Error("failed to record lookup activity", "lookup_id", result.ID, "error", err)
		}
	}

	return result, nil
}

// Classifier exposes the classifier used for scoring.
func (s *Service) Classifier() domain.Classifier {
	return s.scorer.Classifier()
}

// RuleIDs lists the rationale rules in evaluation order.
func (s *Service) RuleIDs() []string {
	return s.explainer.RuleIDs()
}

// EncoderVersion reports the configured encoder artifact version.
func (s *Service) EncoderVersion() string {
	return s.encoderVersion
}

func (s *Service) recordMiss(ctx context.Context, name string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordMiss(ctx, name); err != nil {
		slog.Error("failed to record lookup miss", "customer", name, "error", err)
	}
}

func (s *Service) fail(span trace.Span, name string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, domain.ErrorKind(err))

	var uce *domain.UnknownCategoryError
	if errors.As(err, &uce) {
		slog.Warn("lookup rejected unknown category",
			"customer", name,
			"column", uce.Column,
			"value", uce.Value,
		)
		return err
	}

	slog.Error("lookup failed", "customer", name, "kind", domain.ErrorKind(err), "error", err)
	return err
}
