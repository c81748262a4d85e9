// Package config loads Kestrel configuration from an optional YAML file and
// KESTREL_* environment variables on top of the tier defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. KESTREL_STORE_MONGOURI.
const EnvPrefix = "KESTREL"

// Load builds the configuration. path may be empty.
//
// Precedence, lowest first: tier defaults, config file, environment.
// KESTREL_TIER=pro (or tier: pro in the file) starts from domain.ProConfig.
func Load(path string) (*domain.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, "", reflect.TypeOf(domain.Config{}))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := domain.DefaultConfig()
	if domain.Tier(strings.ToLower(v.GetString("tier"))) == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers every leaf key so environment values reach Unmarshal
// even when the config file does not mention them.
func bindEnvs(v *viper.Viper, prefix string, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
			bindEnvs(v, key, f.Type)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// Validate rejects configurations the service cannot start with.
func Validate(cfg *domain.Config) error {
	var errs []error

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Tier != domain.TierCommunity && cfg.Tier != domain.TierPro {
		errs = append(errs, fmt.Errorf("unknown tier %q", cfg.Tier))
	}

	switch cfg.Store.Type {
	case "mongo":
		if cfg.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongoUri is required for the mongo store"))
		}
	case "sql":
	default:
		errs = append(errs, fmt.Errorf("unsupported store type %q", cfg.Store.Type))
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported repository driver %q", cfg.Repository.Driver))
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported cache type %q", cfg.Cache.Type))
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		errs = append(errs, fmt.Errorf("unsupported event bus type %q", cfg.EventBus.Type))
	}

	if cfg.Artifacts.ModelPath == "" || cfg.Artifacts.EncoderPath == "" {
		errs = append(errs, errors.New("artifacts.modelPath and artifacts.encoderPath are required"))
	}

	if cfg.Worker.Enabled && cfg.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", cfg.Worker.Concurrency))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}
