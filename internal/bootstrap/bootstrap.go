// Package bootstrap wires Kestrel's components from a domain.Config.
// Both the HTTP server and kestrelctl start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/activity"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/encoder"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/lookup"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/rationale"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/store/mongo"
)

// Artifacts are the trained classifier and the encoders it was fitted with.
type Artifacts struct {
	Classifier model.Classifier
	Encoder    *encoder.Table
}

// LoadArtifacts loads both artifacts and checks they belong together.
// Any failure wraps domain.ErrArtifactLoad; the service must not start.
func LoadArtifacts(cfg domain.ArtifactsConfig) (*Artifacts, error) {
	classifier, err := model.Load(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	enc, err := encoder.Load(cfg.EncoderPath)
	if err != nil {
		return nil, err
	}
	if err := model.CheckCompatible(classifier, enc); err != nil {
		return nil, err
	}
	if _, err := classifier.FeatureNames(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactLoad, err)
	}
	return &Artifacts{Classifier: classifier, Encoder: enc}, nil
}

// NewLookupService builds the reconcile, score and explain pipeline over store.
func NewLookupService(arts *Artifacts, store domain.RecordStore, recorder domain.ActivityRecorder) (*lookup.Service, error) {
	explainer, err := rationale.NewDefaultEngine(slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to compile rationale rules: %w", err)
	}

	opts := []lookup.Option{lookup.WithEncoderVersion(arts.Encoder.Version())}
	if recorder != nil {
		opts = append(opts, lookup.WithRecorder(recorder))
	}

	return lookup.NewService(
		store,
		features.NewReconciler(arts.Encoder, slog.Default()),
		decision.NewScorer(arts.Classifier),
		explainer,
		opts...,
	), nil
}

// OpenStore returns the configured customer record store. The "sql" store
// reuses the repository database.
func OpenStore(ctx context.Context, cfg domain.StoreConfig, repo *repository.SQLRepository) (domain.RecordStore, error) {
	switch cfg.Type {
	case "sql":
		if repo == nil {
			return nil, errors.New("sql store requires a repository")
		}
		return repo, nil

	case "mongo":
		client, err := mongo.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := mongo.NewStore(client, cfg)
		if err := store.EnsureIndexes(ctx); err != nil {
			slog.Warn("failed to ensure customer indexes", "error", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// App holds every long-lived component.
type App struct {
	Config    *domain.Config
	Artifacts *Artifacts
	Store     domain.RecordStore
	Repo      *repository.SQLRepository
	Cache     domain.Cache
	Bus       domain.EventBus
	FileLog   *activity.FileLog
	Recorder  *activity.Recorder
	Lookup    *lookup.Service

	closers []func() error
}

// New loads artifacts first so a broken deployment fails before touching
// any backend, then opens the backends and composes the lookup service.
func New(ctx context.Context, cfg *domain.Config) (*App, error) {
	app := &App{Config: cfg}

	arts, err := LoadArtifacts(cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	app.Artifacts = arts
	slog.Info("artifacts loaded",
		"model_version", arts.Classifier.Version(),
		"model_kind", arts.Classifier.Kind(),
		"encoder_version", arts.Encoder.Version(),
	)

	if err := app.open(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.Config

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	store, err := OpenStore(ctx, cfg.Store, repo)
	if err != nil {
		return fmt.Errorf("failed to initialize record store: %w", err)
	}
	a.Store = store
	if domain.RecordStore(repo) != store {
		a.closers = append(a.closers, store.Close)
	}
	slog.Info("record store initialized", "type", cfg.Store.Type)

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.Cache = c
	a.closers = append(a.closers, c.Close)
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	b, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	a.Bus = b
	a.closers = append(a.closers, b.Close)
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	fileLog, err := activity.OpenFileLog(cfg.Activity.Dir)
	if err != nil {
		return err
	}
	a.FileLog = fileLog
	a.closers = append(a.closers, fileLog.Close)

	a.Recorder = activity.NewRecorder(
		activity.WithStore(repo),
		activity.WithCache(c, cfg.Cache.LookupTTL),
		activity.WithBus(b),
		activity.WithFileLog(fileLog),
		activity.WithCounterWindow(cfg.Activity.CounterWindow),
	)

	svc, err := NewLookupService(a.Artifacts, store, a.Recorder)
	if err != nil {
		return err
	}
	a.Lookup = svc
	return nil
}

// Close releases components in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
