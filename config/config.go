package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/audiodeck-backend/models"
	"github.com/vnkhanh/audiodeck-backend/services"
)

const (
	ProviderElevenLabs = "elevenlabs"
	ProviderGoogle     = "google"
)

// Config holds every setting of the service. It is read once in main and
// passed down explicitly.
type Config struct {
	Port        string   `envconfig:"PORT" default:"8080"`
	GinMode     string   `envconfig:"GIN_MODE" default:"debug"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty   bool     `envconfig:"LOG_PRETTY" default:"false"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
	JWTSecret   string   `envconfig:"JWT_SECRET"`

	// Postgres; DATABASE_URL wins over the individual parts
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBPort         string `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME" default:"postgres"`
	DBSSLMode      string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`

	SupabaseURL string `envconfig:"SUPABASE_URL"`
	SupabaseKey string `envconfig:"SUPABASE_KEY"`
	AudioBucket string `envconfig:"AUDIO_BUCKET" default:"audio-files"`

	TTSProvider       string `envconfig:"TTS_PROVIDER" default:"elevenlabs"`
	ElevenLabsAPIKey  string `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL string `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io"`
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID" default:"21m00Tcm4TlvDq8ikWAM"`
	ElevenLabsModelID string `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_turbo_v2_5"`
	GoogleCredentials string `envconfig:"GOOGLE_CREDENTIALS_JSON"`
	GoogleVoice       string `envconfig:"GOOGLE_VOICE"`

	SynthTimeout        time.Duration `envconfig:"SYNTH_TIMEOUT" default:"30s"`
	StorageTimeout      time.Duration `envconfig:"STORAGE_TIMEOUT" default:"15s"`
	SynthMaxAttempts    int           `envconfig:"SYNTH_MAX_ATTEMPTS" default:"3"`
	SynthInitialBackoff time.Duration `envconfig:"SYNTH_INITIAL_BACKOFF" default:"500ms"`
	SynthMaxBackoff     time.Duration `envconfig:"SYNTH_MAX_BACKOFF" default:"5s"`

	CommitConcurrency int    `envconfig:"COMMIT_CONCURRENCY" default:"4"`
	DefaultLanguage   string `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	MaxCards          int    `envconfig:"MAX_CARDS" default:"2000"`
	MaxUploadMB       int64  `envconfig:"MAX_UPLOAD_MB" default:"50"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail on first use.
func (c *Config) Validate() error {
	var errs []error

	switch c.TTSProvider {
	case ProviderElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			errs = append(errs, errors.New("ELEVENLABS_API_KEY is required for the elevenlabs provider"))
		}
	case ProviderGoogle:
		if c.GoogleCredentials == "" {
			errs = append(errs, errors.New("GOOGLE_CREDENTIALS_JSON is required for the google provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider))
	}

	if c.SupabaseURL == "" || c.SupabaseKey == "" {
		errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required"))
	}
	if !services.IsSupportedLanguage(c.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("DEFAULT_LANGUAGE %q is not supported", c.DefaultLanguage))
	}
	if c.CommitConcurrency < 1 {
		errs = append(errs, errors.New("COMMIT_CONCURRENCY must be at least 1"))
	}
	if c.SynthMaxAttempts < 1 {
		errs = append(errs, errors.New("SYNTH_MAX_ATTEMPTS must be at least 1"))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be at least 1"))
	}
	return errors.Join(errs...)
}

// DSN is the Postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

// PipelineConfig is the slice of Config the orchestrator needs.
func (c *Config) PipelineConfig() services.PipelineConfig {
	return services.PipelineConfig{
		DefaultLanguage: strings.ToLower(c.DefaultLanguage),
		Concurrency:     c.CommitConcurrency,
		MaxCards:        c.MaxCards,
	}
}

// RetryConfig is the synthesizer retry policy.
func (c *Config) RetryConfig() services.RetryConfig {
	return services.RetryConfig{
		MaxAttempts:       c.SynthMaxAttempts,
		InitialBackoff:    c.SynthInitialBackoff,
		MaxBackoff:        c.SynthMaxBackoff,
		BackoffMultiplier: 2.0,
		AttemptTimeout:    c.SynthTimeout,
	}
}

// InitDB connects to Postgres, sizes the pool and migrates audio_cache.
func InitDB(cfg *Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.GinMode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Msg("postgres connected & migrated")
	return db, nil
}

// Migrate creates or updates the tables this service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.AudioCache{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
