// Package config builds runtime configuration from the environment so main
// stays lean. Each subsystem gets its own struct; FromEnv assembles them all.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration for the server binary.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    RedisConfig
	Kafka    Kafka
	CDC      CDC
	Stream   Stream
	Tokens   Tokens
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres holds the storage DSN. Empty means in-memory stores (dev mode).
type Postgres struct {
	URL string
}

// RedisConfig holds the shared-cache connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the activity relay. Empty brokers disables the relay.
type Kafka struct {
	Brokers []string
	Topic   string
}

// CDC configures the change-log proxy upstream.
type CDC struct {
	UpstreamURL string
	Secret      string
}

// Stream tunes the push-stream dispatcher.
type Stream struct {
	KeepAliveInterval time.Duration
	BufferSize        int
	CatchUpLimit      int
}

// Tokens configures cache-token minting.
type Tokens struct {
	SigningKey string
	TTL        time.Duration
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("SYNCLINE_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_ACTIVITY_TOPIC", "syncline.activity"),
		},
		CDC: CDC{
			UpstreamURL: os.Getenv("CDC_UPSTREAM_URL"),
			Secret:      os.Getenv("CDC_UPSTREAM_SECRET"),
		},
		Stream: Stream{
			KeepAliveInterval: envDuration("STREAM_KEEPALIVE_INTERVAL", 25*time.Second),
			BufferSize:        envInt("STREAM_BUFFER_SIZE", 64),
			CatchUpLimit:      envInt("STREAM_CATCHUP_LIMIT", 1000),
		},
		Tokens: Tokens{
			SigningKey: envOr("CACHE_TOKEN_SIGNING_KEY", "dev-cache-token-key"),
			TTL:        envDuration("CACHE_TOKEN_TTL", 5*time.Minute),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
