package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.monitororbs.jp/en/download", cfg.BaseURL)
	assert.Equal(t, "downloaded_CSVs", cfg.DownloadDir)
	assert.Equal(t, "stations/transformed/json", cfg.JSONDir)
	assert.Equal(t, "stations/transformed/csv", cfg.CSVDir)
	assert.Equal(t, "stations/station_by_id.json", cfg.StationsFile)
	assert.Equal(t, "stations/station_points.csv", cfg.StationPointsFile)
	assert.Equal(t, "stations/alps_seawater_data.csv", cfg.ALPSSeawaterFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 1000, cfg.MatchCacheSize)
	assert.False(t, cfg.XLSXEnabled)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "orbs-station-records", cfg.KafkaTopic)
	assert.Equal(t, time.Second, cfg.DownloadMinDelay)
	assert.Equal(t, 5*time.Second, cfg.DownloadMaxDelay)
	assert.Equal(t, 10*time.Second, cfg.DownloadTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ORBS_BASE_URL", "http://localhost:8000/download")
	t.Setenv("DOWNLOAD_DIR", "/data/raw")
	t.Setenv("JSON_DIR", "/data/json")
	t.Setenv("CSV_DIR", "/data/csv")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("WORKERS", "8")
	t.Setenv("MATCH_CACHE_SIZE", "50")
	t.Setenv("XLSX_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-records")
	t.Setenv("DOWNLOAD_MIN_DELAY", "0s")
	t.Setenv("DOWNLOAD_MAX_DELAY", "2s")
	t.Setenv("DOWNLOAD_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/download", cfg.BaseURL)
	assert.Equal(t, "/data/raw", cfg.DownloadDir)
	assert.Equal(t, "/data/json", cfg.JSONDir)
	assert.Equal(t, "/data/csv", cfg.CSVDir)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 50, cfg.MatchCacheSize)
	assert.True(t, cfg.XLSXEnabled)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-records", cfg.KafkaTopic)
	assert.Equal(t, time.Duration(0), cfg.DownloadMinDelay)
	assert.Equal(t, 2*time.Second, cfg.DownloadMaxDelay)
	assert.Equal(t, 3*time.Second, cfg.DownloadTimeout)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JSON_DIR=/from/dotenv\nCSV_DIR=/from/dotenv/csv\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("CSV_DIR", "/from/env")
	t.Cleanup(func() { os.Unsetenv("JSON_DIR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.JSONDir)
	assert.Equal(t, "/from/env", cfg.CSVDir, "environment wins over .env")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"WORKERS", "0"},
		{"WORKERS", "65"},
		{"WORKERS", "many"},
		{"MATCH_CACHE_SIZE", "0"},
		{"XLSX_ENABLED", "sometimes"},
		{"DOWNLOAD_MIN_DELAY", "-1s"},
		{"DOWNLOAD_MAX_DELAY", "soon"},
		{"DOWNLOAD_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_MaxDelayBelowMinDelay(t *testing.T) {
	t.Setenv("DOWNLOAD_MIN_DELAY", "5s")
	t.Setenv("DOWNLOAD_MAX_DELAY", "1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_MAX_DELAY")
}
