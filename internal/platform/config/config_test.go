package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 100, cfg.MaxConnectionsPerIP)
	assert.InDelta(t, 10.0, cfg.ConnectionRatePerIP, 0.001)
	assert.Equal(t, 20, cfg.ConnectionBurstPerIP)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CustomPortAndEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("MAX_WEBSOCKET_CONNECTIONS", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 50, cfg.MaxWebSocketConnections)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"non-numeric port", "PORT", "http", `PORT must be a number between 1 and 65535, got "http"`},
		{"port out of range", "PORT", "70000", `PORT must be a number between 1 and 65535, got "70000"`},
		{"zero port", "PORT", "0", `PORT must be a number between 1 and 65535, got "0"`},
		{"zero max connections", "MAX_WEBSOCKET_CONNECTIONS", "0", "MAX_WEBSOCKET_CONNECTIONS must be positive"},
		{"negative per-ip", "MAX_CONNECTIONS_PER_IP", "-1", "MAX_CONNECTIONS_PER_IP must be positive"},
		{"zero rate", "CONNECTION_RATE_PER_IP", "0", "CONNECTION_RATE_PER_IP must be positive"},
		{"zero burst", "CONNECTION_BURST_PER_IP", "0", "CONNECTION_BURST_PER_IP must be positive"},
		{"zero shutdown timeout", "SHUTDOWN_TIMEOUT", "0s", "SHUTDOWN_TIMEOUT must be positive"},
		{"bad log format", "LOG_FORMAT", "xml", `LOG_FORMAT must be text or json, got "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_UnparsableValue(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load environment variables")
}

func TestLoadLoadTest_DefaultValues(t *testing.T) {
	cfg, err := LoadLoadTest()
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:8080/", cfg.URL)
	assert.Equal(t, 1, cfg.VUs)
	assert.Equal(t, 1, cfg.Iterations)
	assert.Equal(t, "Hello server", cfg.Message)
	assert.Equal(t, 3*time.Second, cfg.SessionDuration)
}

func TestLoadLoadTest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"http scheme", "LOADTEST_URL", "http://localhost:8080/", "LOADTEST_URL must be a ws:// or wss:// URL"},
		{"missing host", "LOADTEST_URL", "ws:///path", "LOADTEST_URL must be a ws:// or wss:// URL"},
		{"zero vus", "LOADTEST_VUS", "0", "LOADTEST_VUS must be at least 1"},
		{"zero iterations", "LOADTEST_ITERATIONS", "0", "LOADTEST_ITERATIONS must be at least 1"},
		{"zero session", "LOADTEST_SESSION", "0s", "LOADTEST_SESSION must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadLoadTest()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
