package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Generator   GeneratorConfig
	Preferences PreferenceConfig
	Cache       CacheConfig
	Rescan      RescanConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GeneratorConfig holds default GA parameters and resource bounds.
type GeneratorConfig struct {
	PopulationSize int
	MaxGenerations int
	MutationRate   float64
	ElitismCount   int
	NumSolutions   int
	Workers        int
	MaxDailySlots  int
	Weekdays       int
}

// PreferenceConfig maps faculty preference types to fitness weights.
type PreferenceConfig struct {
	Soft               bool
	PreferredWeight    float64
	NotAvailableWeight float64
}

// CacheConfig tunes memoization of derived timetable data.
type CacheConfig struct {
	Enabled       bool
	LockedSlotTTL time.Duration
	SummaryTTL    time.Duration
}

// RescanConfig governs the background conflict rescan queue.
type RescanConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Generator = GeneratorConfig{
		PopulationSize: v.GetInt("GA_POPULATION_SIZE"),
		MaxGenerations: v.GetInt("GA_MAX_GENERATIONS"),
		MutationRate:   v.GetFloat64("GA_MUTATION_RATE"),
		ElitismCount:   v.GetInt("GA_ELITISM_COUNT"),
		NumSolutions:   v.GetInt("GA_NUM_SOLUTIONS"),
		Workers:        v.GetInt("GA_WORKERS"),
		MaxDailySlots:  v.GetInt("MAX_DAILY_SLOTS"),
		Weekdays:       v.GetInt("SCHEDULING_WEEKDAYS"),
	}

	cfg.Preferences = PreferenceConfig{
		Soft:               v.GetBool("PREFERENCE_SOFT"),
		PreferredWeight:    v.GetFloat64("PREF_WEIGHT"),
		NotAvailableWeight: v.GetFloat64("NOT_AVAILABLE_WEIGHT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("CACHE_ENABLED"),
		LockedSlotTTL: parseDuration(v.GetString("CACHE_LOCKED_SLOT_TTL"), 5*time.Minute),
		SummaryTTL:    parseDuration(v.GetString("CACHE_SUMMARY_TTL"), 10*time.Minute),
	}

	cfg.Rescan = RescanConfig{
		Workers:    v.GetInt("RESCAN_WORKERS"),
		BufferSize: v.GetInt("RESCAN_BUFFER_SIZE"),
		MaxRetries: v.GetInt("RESCAN_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RESCAN_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timeweaver")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GA_POPULATION_SIZE", 20)
	v.SetDefault("GA_MAX_GENERATIONS", 50)
	v.SetDefault("GA_MUTATION_RATE", 0.1)
	v.SetDefault("GA_ELITISM_COUNT", 2)
	v.SetDefault("GA_NUM_SOLUTIONS", 5)
	v.SetDefault("GA_WORKERS", 4)
	v.SetDefault("MAX_DAILY_SLOTS", 8)
	v.SetDefault("SCHEDULING_WEEKDAYS", 5)

	v.SetDefault("PREFERENCE_SOFT", true)
	v.SetDefault("PREF_WEIGHT", 1.0)
	v.SetDefault("NOT_AVAILABLE_WEIGHT", -9999.0)

	v.SetDefault("CACHE_ENABLED", true)

	v.SetDefault("RESCAN_WORKERS", 2)
	v.SetDefault("RESCAN_BUFFER_SIZE", 16)
	v.SetDefault("RESCAN_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
