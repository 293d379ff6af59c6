package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"GO_ENV", "TCP_HOST", "TCP_PORT", "HTTP_PORT", "LIVENESS_TIMEOUT", "BLOCKING_TIMEOUT",
		"ACCEPT_TIMEOUT", "REQUEST_QUEUE_SIZE", "REMATCH_ENABLED", "FLEET_FILE", "RATE_LIMIT",
		"RATE_BURST", "DATABASE_URL", "REDIS_URL", "REDIS_PASSWORD", "LOG_LEVEL", "LOG_FORMAT",
		"SERVER_ADDR", "UDP_PORT", "UDP_SUBSCRIBER_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1250, cfg.TCPPort)
	assert.Equal(t, "0.0.0.0:1250", cfg.TCPAddr())
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, "0.0.0.0:1251", cfg.UDPAddr())
	assert.Equal(t, 5*time.Minute, cfg.UDPSubscriberTimeout)
	assert.Equal(t, 30*time.Second, cfg.LivenessTimeout)
	assert.Equal(t, 20*time.Second, cfg.BlockingTimeout)
	assert.Equal(t, time.Second, cfg.AcceptTimeout)
	assert.Equal(t, 1024, cfg.RequestQueueSize)
	assert.True(t, cfg.RematchEnabled)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "localhost:1250", cfg.ServerAddr)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("TCP_PORT", "4000")
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("UDP_PORT", "0")
	t.Setenv("BLOCKING_TIMEOUT", "5s")
	t.Setenv("REMATCH_ENABLED", "false")
	t.Setenv("GO_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.TCPPort)
	assert.Empty(t, cfg.HTTPAddr(), "port 0 disables the status API")
	assert.Empty(t, cfg.UDPAddr(), "port 0 disables the notifier")
	assert.Equal(t, 5*time.Second, cfg.BlockingTimeout)
	assert.False(t, cfg.RematchEnabled)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Setenv("TCP_PORT", "not-a-port")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "TCP_PORT")

	t.Setenv("TCP_PORT", "")
	t.Setenv("LIVENESS_TIMEOUT", "soon")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "LIVENESS_TIMEOUT")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		TCPPort:          0,
		HTTPPort:         70000,
		LivenessTimeout:  time.Second,
		BlockingTimeout:  0,
		AcceptTimeout:    time.Second,
		RequestQueueSize: 1,
		RateLimit:        1,
		RateBurst:        1,
		LogLevel:         "verbose",
		LogFormat:        "text",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TCP_PORT")
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "BLOCKING_TIMEOUT")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.NotContains(t, err.Error(), "LOG_FORMAT")
}

func TestValidate_PortClash(t *testing.T) {
	cfg := &Config{
		TCPPort: 9000, HTTPPort: 9000,
		LivenessTimeout: time.Second, BlockingTimeout: time.Second, AcceptTimeout: time.Second,
		RequestQueueSize: 1, RateLimit: 1, RateBurst: 1,
		LogLevel: "info", LogFormat: "json",
	}
	assert.ErrorContains(t, cfg.Validate(), "must differ")
}

func TestValidate_UDP(t *testing.T) {
	cfg := &Config{
		TCPPort: 9000, HTTPPort: 9001, UDPPort: 9000,
		LivenessTimeout: time.Second, BlockingTimeout: time.Second, AcceptTimeout: time.Second,
		RequestQueueSize: 1, RateLimit: 1, RateBurst: 1,
		LogLevel: "info", LogFormat: "json",
	}
	assert.ErrorContains(t, cfg.Validate(), "UDP_SUBSCRIBER_TIMEOUT")

	cfg.UDPSubscriberTimeout = time.Minute
	assert.NoError(t, cfg.Validate(), "UDP may share the TCP port number")

	cfg.UDPPort = -1
	assert.ErrorContains(t, cfg.Validate(), "UDP_PORT")
}
