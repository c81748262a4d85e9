package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `mapstructure:"server" json:"server"`

	// Tier determines which backends are used
	Tier Tier `mapstructure:"tier" json:"tier"`

	// Component configurations
	Store      StoreConfig      `mapstructure:"store" json:"store"`
	Repository RepositoryConfig `mapstructure:"repository" json:"repository"`
	Cache      CacheConfig      `mapstructure:"cache" json:"cache"`
	EventBus   EventBusConfig   `mapstructure:"eventBus" json:"eventBus"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts" json:"artifacts"`
	Activity   ActivityConfig   `mapstructure:"activity" json:"activity"`
	Worker     WorkerConfig     `mapstructure:"worker" json:"worker"`

	// Observability
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `mapstructure:"host" json:"host"`
	Port         int    `mapstructure:"port" json:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout" json:"readTimeout"`   // seconds
	WriteTimeout int    `mapstructure:"writeTimeout" json:"writeTimeout"` // seconds
}

// ArtifactsConfig points at the trained classifier and its encoders.
type ArtifactsConfig struct {
	ModelPath   string `mapstructure:"modelPath" json:"modelPath"`
	EncoderPath string `mapstructure:"encoderPath" json:"encoderPath"`
}

// ActivityConfig controls the lookup activity trail.
type ActivityConfig struct {
	// Dir holds loan_activity.log and its rotated copies.
	Dir string `mapstructure:"dir" json:"dir"`

	// RotateSchedule is a cron expression; the default rotates at 18:00 daily.
	RotateSchedule string `mapstructure:"rotateSchedule" json:"rotateSchedule"`

	// CounterWindow is how long a day's outcome counters live.
	CounterWindow time.Duration `mapstructure:"counterWindow" json:"counterWindow"`
}

// WorkerConfig controls the in-process consumer of async lookup requests.
type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled" json:"enabled"`
	Concurrency int  `mapstructure:"concurrency" json:"concurrency"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName string `mapstructure:"serviceName" json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-process cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Store: StoreConfig{
			Type:            "mongo",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "loan_db",
			MongoCollection: "customers",
			MaxPoolSize:     20,
			ConnectTimeout:  10 * time.Second,
			QueryTimeout:    5 * time.Second,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			LookupTTL:    24 * time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Artifacts: ArtifactsConfig{
			ModelPath:   "artifacts/loan_model.json",
			EncoderPath: "artifacts/label_encoders.json",
		},
		Activity: ActivityConfig{
			Dir:            "logs",
			RotateSchedule: "0 18 * * *",
			CounterWindow:  24 * time.Hour,
		},
		Worker: WorkerConfig{
			Enabled:     false,
			Concurrency: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:          "postgres",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresDB:      "kestrel",
		PostgresSSLMode: "disable",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		LookupTTL:      24 * time.Hour,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}
