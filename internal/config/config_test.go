package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lendora")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int32(10), cfg.DatabaseMaxConns)
	assert.Equal(t, 24*time.Hour, cfg.InvoiceWorkerInterval)
	assert.Equal(t, "console", cfg.Telemetry.Exporter)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.S3.Enabled())
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, float64(10), cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lendora")
	t.Setenv("ENV", "production")
	t.Setenv("AUTH0_DOMAIN", "lendora.eu.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.lendora.test")
	t.Setenv("CORS_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("S3_BUCKET", "lendora-docs")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER", "otlp")
	t.Setenv("INVOICE_WORKER_INTERVAL", "1h30m")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.S3.Enabled())
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "otlp", cfg.Telemetry.Exporter)
	assert.Equal(t, 90*time.Minute, cfg.InvoiceWorkerInterval)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing database",
			env:  map[string]string{"ENV": "development"},
			want: "DATABASE_URL is required",
		},
		{
			name: "production without auth",
			env:  map[string]string{"DATABASE_URL": "postgres://x", "ENV": "production"},
			want: "AUTH0_DOMAIN is required",
		},
		{
			name: "unknown exporter",
			env:  map[string]string{"DATABASE_URL": "postgres://x", "ENV": "development", "OTEL_EXPORTER": "jaeger"},
			want: "OTEL_EXPORTER must be",
		},
		{
			name: "bad interval",
			env:  map[string]string{"DATABASE_URL": "postgres://x", "ENV": "development", "INVOICE_WORKER_INTERVAL": "daily"},
			want: "INVOICE_WORKER_INTERVAL is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
