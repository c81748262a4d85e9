package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// LookupStore persists lookup activity. domain.Repository satisfies it.
type LookupStore interface {
	SaveLookup(ctx context.Context, activity *domain.LookupActivity) error
	GetLookup(ctx context.Context, lookupID string) (*domain.LookupActivity, error)
	ListLookupsByName(ctx context.Context, name string, limit int) ([]*domain.LookupActivity, error)
}

// Counter outcomes beyond Approved and Rejected.
const outcomeNotFound = "not_found"

// Recorder implements domain.ActivityRecorder. Every sink is optional.
type Recorder struct {
	store     LookupStore
	cache     domain.Cache
	bus       domain.EventBus
	file      *FileLog
	window    time.Duration
	lookupTTL time.Duration
	now       func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithStore persists lookups.
func WithStore(s LookupStore) Option { return func(r *Recorder) { r.store = s } }

// WithCache caches lookups by ID for ttl and keeps outcome counters.
func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(r *Recorder) {
		r.cache = c
		r.lookupTTL = ttl
	}
}

// WithBus publishes kestrel.lookup.completed events.
func WithBus(b domain.EventBus) Option { return func(r *Recorder) { r.bus = b } }

// WithFileLog appends a line per lookup to the activity log.
func WithFileLog(l *FileLog) Option { return func(r *Recorder) { r.file = l } }

// WithCounterWindow sets how long daily counters live.
func WithCounterWindow(d time.Duration) Option { return func(r *Recorder) { r.window = d } }

// NewRecorder creates an activity recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		window:    24 * time.Hour,
		lookupTTL: 24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record fans a completed lookup out to every configured sink.
// A failing sink does not stop the others; their errors are joined.
func (r *Recorder) Record(ctx context.Context, result *domain.LookupResult) error {
	if result == nil {
		return fmt.Errorf("%w: nil lookup result", domain.ErrInvalidInput)
	}
	act := result.Activity()
	var errs []error

	if r.store != nil {
		if err := r.store.SaveLookup(ctx, act); err != nil {
			errs = append(errs, fmt.Errorf("save lookup: %w", err))
		}
	}

	if r.cache != nil {
		if err := r.cache.SetLookup(ctx, act, r.lookupTTL); err != nil {
			errs = append(errs, fmt.Errorf("cache lookup: %w", err))
		}
		if _, err := r.cache.IncrementCounter(ctx, r.counterKey(act.Timestamp, string(act.Outcome)), r.window); err != nil {
			errs = append(errs, fmt.Errorf("increment counter: %w", err))
		}
	}

	if r.file != nil {
		r.file.Checked(ctx, act.Name, act.Outcome)
	}

	if r.bus != nil {
		if err := bus.PublishJSON(ctx, r.bus, domain.TopicLookupCompleted, act); err != nil {
			errs = append(errs, fmt.Errorf("publish completion: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RecordMiss counts a lookup for an unknown name.
func (r *Recorder) RecordMiss(ctx context.Context, name string) error {
	if r.cache == nil {
		return nil
	}
	if _, err := r.cache.IncrementCounter(ctx, r.counterKey(r.now(), outcomeNotFound), r.window); err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

// Get returns a recorded lookup, checking the cache before the store.
func (r *Recorder) Get(ctx context.Context, lookupID string) (*domain.LookupActivity, error) {
	if r.cache != nil {
		act, err := r.cache.GetLookup(ctx, lookupID)
		if err != nil {
			slog.Warn("lookup cache read failed", "lookup_id", lookupID, "error", err)
		} else if act != nil {
			return act, nil
		}
	}
	if r.store == nil {
		return nil, domain.ErrNotFound
	}

	act, err := r.store.GetLookup(ctx, lookupID)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		_ = r.cache.SetLookup(ctx, act, r.lookupTTL)
	}
	return act, nil
}

// History lists recorded lookups for a customer name, newest first.
func (r *Recorder) History(ctx context.Context, name string, limit int) ([]*domain.LookupActivity, error) {
	if r.store == nil {
		return []*domain.LookupActivity{}, nil
	}
	return r.store.ListLookupsByName(ctx, name, limit)
}

// Stats is the per-day outcome tally.
type Stats struct {
	Date     string `json:"date"`
	Approved int64  `json:"approved"`
	Rejected int64  `json:"rejected"`
	NotFound int64  `json:"notFound"`
	Total    int64  `json:"total"`
}

// Stats reads the counters for the day containing t.
func (r *Recorder) Stats(ctx context.Context, t time.Time) (*Stats, error) {
	s := &Stats{Date: r.day(t)}
	if r.cache == nil {
		return s, nil
	}

	fields := []struct {
		outcome string
		dst     *int64
	}{
		{string(domain.OutcomeApproved), &s.Approved},
		{string(domain.OutcomeRejected), &s.Rejected},
		{outcomeNotFound, &s.NotFound},
	}
	for _, f := range fields {
		n, err := r.cache.Counter(ctx, r.counterKey(t, f.outcome))
		if err != nil {
			return nil, fmt.Errorf("read counter: %w", err)
		}
		*f.dst = n
		s.Total += n
	}
	return s, nil
}

// Today reads the counters for the current day.
func (r *Recorder) Today(ctx context.Context) (*Stats, error) {
	return r.Stats(ctx, r.now())
}

func (r *Recorder) counterKey(t time.Time, outcome string) string {
	return fmt.Sprintf("stats:%s:%s", r.day(t), outcome)
}

// day formats t as a calendar date in the recorder clock's zone, so lookups
// stamped in UTC land on the same day as misses and Today.
func (r *Recorder) day(t time.Time) string {
	now := r.now()
	if t.IsZero() {
		t = now
	}
	return t.In(now.Location()).Format(dateLayout)
}
