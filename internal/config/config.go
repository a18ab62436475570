package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseDriver  string
	DatabaseURL     string
	RedisURL        string
	StatsCacheTTL   time.Duration
	Timezone        string
	Location        *time.Location
	CORSAllowOrigin string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ATTENDANCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Attendance API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	ttl, err := parseDuration(v.GetString("stats.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	window, err := parseDuration(v.GetString("rate_limit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	timezone := strings.TrimSpace(v.GetString("app.timezone"))
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		StatsCacheTTL:   ttl,
		Timezone:        timezone,
		Location:        location,
		CORSAllowOrigin: v.GetString("cors.allow_origins"),
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: window,
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 60
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
