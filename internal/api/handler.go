package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/activity"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// LookupService runs lookups and describes the loaded classifier.
// *lookup.Service satisfies it.
type LookupService interface {
	Lookup(ctx context.Context, name string) (*domain.LookupResult, error)
	Classifier() domain.Classifier
	RuleIDs() []string
	EncoderVersion() string
}

// ActivityReader reads the lookup trail. *activity.Recorder satisfies it.
type ActivityReader interface {
	Get(ctx context.Context, lookupID string) (*domain.LookupActivity, error)
	History(ctx context.Context, name string, limit int) ([]*domain.LookupActivity, error)
	Today(ctx context.Context) (*activity.Stats, error)
}

// Deps are the collaborators the handlers need. Only Lookup is required.
type Deps struct {
	Lookup         LookupService
	Activity       ActivityReader
	Store          domain.RecordStore
	Cache          domain.Cache
	Bus            domain.EventBus
	EncoderColumns []string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	deps    Deps
	version string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, version string) *Handler {
	return &Handler{deps: deps, version: version}
}

// LookupRequest is the request body for POST /lookups.
type LookupRequest struct {
	Name string `json:"name"`
}

// AsyncLookupResponse acknowledges POST /lookups/async.
type AsyncLookupResponse struct {
	RequestID string `json:"requestId"`
	Topic     string `json:"topic"`
}

// ModelResponse describes the loaded classifier for GET /model.
type ModelResponse struct {
	Version        string   `json:"version"`
	EncoderVersion string   `json:"encoderVersion,omitempty"`
	FeatureNames   []string `json:"featureNames"`
	EncoderColumns []string `json:"encoderColumns"`
	RationaleRules []string `json:"rationaleRules"`
	EngineVersion  string   `json:"engineVersion"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Lookup handles POST /lookups.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeLookupRequest(w, r)
	if !ok {
		return
	}

	result, err := h.deps.Lookup.Lookup(ctx, req.Name)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	resp := result.ToResponse()
	if traceID := GetTraceID(ctx); traceID != "" {
		resp.Metadata.TraceID = traceID
	}
	writeJSON(w, http.StatusOK, resp)
}

// LookupAsync handles POST /lookups/async by queueing the request on the bus.
// The outcome is published on kestrel.lookup.decided or kestrel.lookup.failed.
func (h *Handler) LookupAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.deps.Bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event bus not available"})
		return
	}

	req, ok := decodeLookupRequest(w, r)
	if !ok {
		return
	}

	msg := domain.LookupRequest{
		RequestID: uuid.New().String(),
		Name:      req.Name,
		TraceID:   GetTraceID(ctx),
	}
	if err := bus.PublishJSON(ctx, h.deps.Bus, domain.TopicLookupRequested, msg); err != nil {
		slog.Error("failed to queue lookup", "request_id", msg.RequestID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "failed to queue lookup"})
		return
	}

	writeJSON(w, http.StatusAccepted, AsyncLookupResponse{
		RequestID: msg.RequestID,
		Topic:     domain.TopicLookupRequested,
	})
}

func decodeLookupRequest(w http.ResponseWriter, r *http.Request) (*LookupRequest, bool) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid JSON request body",
			Kind:  domain.KindInvalidInput,
		})
		return nil, false
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "name is required",
			Kind:  domain.KindInvalidInput,
		})
		return nil, false
	}
	return &req, true
}

// GetLookup handles GET /lookups/{id}.
func (h *Handler) GetLookup(w http.ResponseWriter, r *http.Request) {
	lookupID := chi.URLParam(r, "id")

	if h.deps.Activity == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "activity trail not available"})
		return
	}

	act, err := h.deps.Activity.Get(r.Context(), lookupID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "lookup not found", Kind: domain.KindNotFound})
			return
		}
		slog.Error("failed to get lookup", "lookup_id", lookupID, "error", err)
		writeLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, act)
}

// CustomerLookups handles GET /customers/{name}/lookups.
func (h *Handler) CustomerLookups(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if h.deps.Activity == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "activity trail not available"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "limit must be a positive integer",
				Kind:  domain.KindInvalidInput,
			})
			return
		}
		limit = n
	}

	history, err := h.deps.Activity.History(r.Context(), name, limit)
	if err != nil {
		slog.Error("failed to list lookups", "customer", name, "error", err)
		writeLookupError(w, err)
		return
	}
	if history == nil {
		history = []*domain.LookupActivity{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"count":   len(history),
		"lookups": history,
	})
}

// Stats handles GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Activity == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "activity trail not available"})
		return
	}

	stats, err := h.deps.Activity.Today(r.Context())
	if err != nil {
		slog.Error("failed to read stats", "error", err)
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Model handles GET /model.
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	classifier := h.deps.Lookup.Classifier()

	names, err := classifier.FeatureNames()
	if err != nil {
		writeLookupError(w, err)
		return
	}

	columns := h.deps.EncoderColumns
	if columns == nil {
		columns = []string{}
	}

	writeJSON(w, http.StatusOK, ModelResponse{
		Version:        classifier.Version(),
		EncoderVersion: h.deps.Lookup.EncoderVersion(),
		FeatureNames:   names,
		EncoderColumns: columns,
		RationaleRules: h.deps.Lookup.RuleIDs(),
		EngineVersion:  h.version,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	components := map[string]string{}

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			return
		}
		components[name] = "ok"
	}

	if h.deps.Store != nil {
		check("store", h.deps.Store.Ping)
	}
	if h.deps.Cache != nil {
		check("cache", h.deps.Cache.Ping)
	}
	if h.deps.Bus != nil {
		check("bus", h.deps.Bus.Ping)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}

// Ready reports whether lookups can be served: the classifier must expose
// its feature schema and the record store must answer.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Lookup.Classifier().FeatureNames(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
			"kind":  domain.KindSchemaMismatch,
			"error": err.Error(),
		})
		return
	}

	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "record store unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeLookupError maps pipeline errors to HTTP responses.
func writeLookupError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}

	status := http.StatusInternalServerError
	switch kind {
	case domain.KindInvalidInput:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
		resp.Error = "customer not found"
	case domain.KindUnknownCategory:
		status = http.StatusUnprocessableEntity
		var uc *domain.UnknownCategoryError
		if errors.As(err, &uc) {
			resp.Column = uc.Column
			resp.Value = uc.Value
		}
	case domain.KindInternal:
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		resp.Error = "internal server error"
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
