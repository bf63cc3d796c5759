package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Postgres.URL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, "syncline.activity", cfg.Kafka.Topic)
	assert.Equal(t, 25*time.Second, cfg.Stream.KeepAliveInterval)
	assert.Equal(t, 64, cfg.Stream.BufferSize)
	assert.Equal(t, 1000, cfg.Stream.CatchUpLimit)
	assert.Equal(t, 5*time.Minute, cfg.Tokens.TTL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SYNCLINE_ADDR", ":9999")
	t.Setenv("DATABASE_URL", "postgres://localhost/syncline")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("STREAM_BUFFER_SIZE", "128")
	t.Setenv("STREAM_KEEPALIVE_INTERVAL", "10s")
	t.Setenv("CACHE_TOKEN_TTL", "90s")

	cfg := FromEnv()

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/syncline", cfg.Postgres.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 128, cfg.Stream.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.Stream.KeepAliveInterval)
	assert.Equal(t, 90*time.Second, cfg.Tokens.TTL)
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("STREAM_BUFFER_SIZE", "lots")
	t.Setenv("STREAM_KEEPALIVE_INTERVAL", "soon")

	cfg := FromEnv()
	assert.Equal(t, 64, cfg.Stream.BufferSize)
	assert.Equal(t, 25*time.Second, cfg.Stream.KeepAliveInterval)
}
