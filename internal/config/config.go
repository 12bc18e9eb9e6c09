package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Overpass OverpassConfig
	Geocode  GeocodeConfig
	Scraper  ScraperConfig
	Schedule ScheduleConfig
	Kafka    KafkaConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	RateLimit int // requests per second per client
}

type WorkerConfig struct {
	BufferSize int
}

type OverpassConfig struct {
	URL     string
	Timeout time.Duration
}

// GeocodeMode selects how addresses are filled in.
type GeocodeMode string

const (
	// GeocodeFast stores the coordinate string as the address.
	GeocodeFast GeocodeMode = "fast"
	// GeocodeAccurate reverse-geocodes every element.
	GeocodeAccurate GeocodeMode = "accurate"
)

type GeocodeConfig struct {
	URL            string
	Mode           GeocodeMode
	Timeout        time.Duration // forward lookups for place scopes
	ReverseTimeout time.Duration
	ReverseDelay   time.Duration // minimum gap between reverse lookups
	CacheSize      int
}

type ScraperConfig struct {
	RequestDelay    time.Duration
	ScopeDelay      time.Duration
	BatchSize       int
	BatchDelay      time.Duration
	AbortOnDegraded bool
	UserAgent       string
	RegionsFile     string
}

type ScheduleConfig struct {
	Enabled  bool
	Interval time.Duration
	Regions  []string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether a publisher should be started.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string
	URL    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvInt("API_RATE_LIMIT", 10),
		},
		Worker: WorkerConfig{
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Overpass: OverpassConfig{
			URL:     getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			Timeout: getEnvDuration("OVERPASS_TIMEOUT", 330*time.Second),
		},
		Geocode: GeocodeConfig{
			URL:            getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
			Mode:           GeocodeMode(strings.ToLower(getEnv("GEOCODE_MODE", string(GeocodeFast)))),
			Timeout:        getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second),
			ReverseTimeout: getEnvDuration("REVERSE_GEOCODE_TIMEOUT", 5*time.Second),
			ReverseDelay:   getEnvDuration("REVERSE_GEOCODE_DELAY", 100*time.Millisecond),
			CacheSize:      getEnvInt("GEOCODE_CACHE_SIZE", 10000),
		},
		Scraper: ScraperConfig{
			RequestDelay:    getEnvDuration("SCRAPER_REQUEST_DELAY", 2*time.Second),
			ScopeDelay:      getEnvDuration("SCRAPER_SCOPE_DELAY", 5*time.Second),
			BatchSize:       getEnvInt("SCRAPER_BATCH_SIZE", 2),
			BatchDelay:      getEnvDuration("SCRAPER_BATCH_DELAY", 15*time.Second),
			AbortOnDegraded: getEnvBool("SCRAPER_ABORT_ON_DEGRADED", true),
			UserAgent:       getEnv("USER_AGENT", "abandoned_explorer_scraper/1.0"),
			RegionsFile:     getEnv("REGIONS_FILE", ""),
		},
		Schedule: ScheduleConfig{
			Enabled:  getEnvBool("SCHEDULE_ENABLED", false),
			Interval: getEnvDuration("SCHEDULE_INTERVAL", 24*time.Hour),
			Regions:  getEnvList("SCHEDULE_REGIONS", nil),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "abandoned-locations"),
		},
		DB: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			Path:   getEnv("DB_PATH", "./data/abandoned-explorer.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("API rate limit must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres":
		if c.DB.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
	}

	if c.Geocode.Mode != GeocodeFast && c.Geocode.Mode != GeocodeAccurate {
		return fmt.Errorf("invalid geocode mode: %s", c.Geocode.Mode)
	}
	if c.Geocode.CacheSize < 1 {
		return fmt.Errorf("geocode cache size must be at least 1")
	}

	if c.Scraper.RequestDelay < 0 || c.Scraper.ScopeDelay < 0 || c.Scraper.BatchDelay < 0 {
		return fmt.Errorf("scraper delays must not be negative")
	}
	if c.Scraper.BatchSize < 1 {
		return fmt.Errorf("scraper batch size must be at least 1")
	}
	if c.Scraper.UserAgent == "" {
		return fmt.Errorf("USER_AGENT must not be empty")
	}

	if c.Schedule.Enabled {
		if c.Schedule.Interval < time.Hour {
			return fmt.Errorf("schedule interval must be at least 1 hour")
		}
		if len(c.Schedule.Regions) == 0 {
			return fmt.Errorf("SCHEDULE_REGIONS is required when scheduling is enabled")
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
