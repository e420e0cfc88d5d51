package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

const maxWorkers = 64

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Input and output locations.
	BaseURL           string
	DownloadDir       string
	JSONDir           string
	CSVDir            string
	StationsFile      string
	StationPointsFile string
	ALPSSeawaterFile  string

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	Workers        int
	MatchCacheSize int
	XLSXEnabled    bool

	// Optional Kafka publishing of station records.
	KafkaBrokers []string
	KafkaTopic   string

	// Portal downloader pacing.
	DownloadMinDelay time.Duration
	DownloadMaxDelay time.Duration
	DownloadTimeout  time.Duration
}

// KafkaEnabled reports whether station records should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads a .env file when present, then environment variables, applying
// defaults where unset. Variables already set in the environment win over
// the .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("WORKERS", 1, 1, maxWorkers)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("MATCH_CACHE_SIZE", 1000, 1, 0)
	if err != nil {
		return nil, err
	}
	xlsx, err := parseBool("XLSX_ENABLED", false)
	if err != nil {
		return nil, err
	}

	minDelay, err := parseDuration("DOWNLOAD_MIN_DELAY", "1s", true)
	if err != nil {
		return nil, err
	}
	maxDelay, err := parseDuration("DOWNLOAD_MAX_DELAY", "5s", true)
	if err != nil {
		return nil, err
	}
	if maxDelay < minDelay {
		return nil, fmt.Errorf("DOWNLOAD_MAX_DELAY (%s) is less than DOWNLOAD_MIN_DELAY (%s)", maxDelay, minDelay)
	}
	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", "10s", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:           sharedcfg.EnvOrDefault("ORBS_BASE_URL", "https://www.monitororbs.jp/en/download"),
		DownloadDir:       sharedcfg.EnvOrDefault("DOWNLOAD_DIR", "downloaded_CSVs"),
		JSONDir:           sharedcfg.EnvOrDefault("JSON_DIR", "stations/transformed/json"),
		CSVDir:            sharedcfg.EnvOrDefault("CSV_DIR", "stations/transformed/csv"),
		StationsFile:      sharedcfg.EnvOrDefault("STATIONS_FILE", "stations/station_by_id.json"),
		StationPointsFile: sharedcfg.EnvOrDefault("STATION_POINTS_FILE", "stations/station_points.csv"),
		ALPSSeawaterFile:  sharedcfg.EnvOrDefault("ALPS_SEAWATER_FILE", "stations/alps_seawater_data.csv"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		HTTPAddr:          os.Getenv("HTTP_ADDR"),
		ShutdownTimeout:   shutdownTimeout,
		Workers:           workers,
		MatchCacheSize:    cacheSize,
		XLSXEnabled:       xlsx,
		KafkaTopic:        sharedcfg.EnvOrDefault("KAFKA_TOPIC", "orbs-station-records"),
		DownloadMinDelay:  minDelay,
		DownloadMaxDelay:  maxDelay,
		DownloadTimeout:   downloadTimeout,
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}
	return cfg, nil
}

// parseInt reads an integer variable bounded below by lo and, when hi > 0,
// above by hi.
func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || (hi > 0 && n > hi) {
		if hi > 0 {
			return 0, fmt.Errorf("invalid %s %q: must be an integer in [%d, %d]", key, s, lo, hi)
		}
		return 0, fmt.Errorf("invalid %s %q: must be an integer >= %d", key, s, lo)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: must be a boolean", key, s)
	}
	return b, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (!allowZero && d == 0) {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}
