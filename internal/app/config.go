package app

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port         string `envconfig:"PORT" default:"8080"`
	LogMode      string `envconfig:"LOG_MODE" default:"development"`
	LogRedaction bool   `envconfig:"LOG_REDACTION_ENABLED" default:"true"`
	LogHashSalt  string `envconfig:"LOG_HASH_SALT"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"memory"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"illumyn.db"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisChannel  string `envconfig:"REDIS_CHANNEL" default:"illumyn:sse"`

	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAITimeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`

	DocStore         string   `envconfig:"DOC_STORE" default:"local"`
	DocDir           string   `envconfig:"DOC_DIR" default:"./data/documents"`
	GCSBucket        string   `envconfig:"GCS_BUCKET"`
	GCSPrefix        string   `envconfig:"GCS_PREFIX" default:"documents/"`
	GCSEmulatorHost  string   `envconfig:"STORAGE_EMULATOR_HOST"`
	MaxDocumentBytes int64    `envconfig:"MAX_DOCUMENT_BYTES" default:"20971520"`
	MaxSourceChars   int      `envconfig:"MAX_SOURCE_CHARS" default:"60000"`
	AllowedDocTypes  []string `envconfig:"ALLOWED_DOCUMENT_TYPES" default:"application/pdf"`

	FastWorkers     int           `envconfig:"FAST_WORKERS" default:"4"`
	HeavyWorkers    int           `envconfig:"HEAVY_WORKERS" default:"2"`
	FastQueueDepth  int           `envconfig:"FAST_QUEUE_DEPTH" default:"256"`
	HeavyQueueDepth int           `envconfig:"HEAVY_QUEUE_DEPTH" default:"256"`
	AttemptTimeout  time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"90s"`
	LeaseTTL        time.Duration `envconfig:"LEASE_TTL" default:"30s"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	RetryMax    int           `envconfig:"RETRY_MAX" default:"3"`
	RetryBase   time.Duration `envconfig:"RETRY_BASE" default:"1s"`
	RetryCap    time.Duration `envconfig:"RETRY_CAP" default:"30s"`
	RetryJitter float64       `envconfig:"RETRY_JITTER" default:"0.2"`

	FreshnessWindow time.Duration `envconfig:"FRESHNESS_WINDOW" default:"24h"`
	Retention       time.Duration `envconfig:"JOB_RETENTION" default:"168h"`

	RankingInterval time.Duration `envconfig:"RANKING_INTERVAL" default:"5m"`
	RankingWindow   time.Duration `envconfig:"RANKING_WINDOW" default:"168h"`
	RankingHalfLife time.Duration `envconfig:"RANKING_HALF_LIFE" default:"24h"`
	RankingMax      int           `envconfig:"RANKING_MAX_ENTRIES" default:"500"`

	AuthDisabled     bool     `envconfig:"AUTH_DISABLED" default:"false"`
	SessionJWTSecret string   `envconfig:"SESSION_JWT_SECRET"`
	AllowedOrigins   []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	OtelEnabled     bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OtelService     string  `envconfig:"OTEL_SERVICE_NAME" default:"illumyn-api"`
	OtelEnvironment string  `envconfig:"OTEL_ENVIRONMENT" default:"development"`
	OtelVersion     string  `envconfig:"OTEL_SERVICE_VERSION" default:"dev"`
	OtelEndpoint    string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `envconfig:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelInsecure    bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
	OtelSampleRatio float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1"`
}

// LoadConfig reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be memory, postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.DocStore {
	case "local", "gcs":
	default:
		return fmt.Errorf("DOC_STORE must be local or gcs, got %q", c.DocStore)
	}
	if c.DocStore == "gcs" && c.GCSBucket == "" {
		return errors.New("GCS_BUCKET required when DOC_STORE=gcs")
	}
	if !c.AuthDisabled && c.SessionJWTSecret == "" {
		return errors.New("SESSION_JWT_SECRET required unless AUTH_DISABLED=true")
	}
	if c.RetryMax < 0 {
		return errors.New("RETRY_MAX must not be negative")
	}
	return nil
}
