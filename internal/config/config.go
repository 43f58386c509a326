package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sink names accepted in SINK.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
	SinkKafka  = "kafka"
)

// Config holds all service settings, populated from environment variables.
// The per-basin data source URLs and processing time range live in the
// region catalog file instead.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Alignment parameters.
	TimeInterval   time.Duration
	BoxSizeDegrees float64
	RMWMultiple    float64       // distance cut as a multiple of RMW; 0 disables
	NNTolerance    time.Duration // 0 means no limit
	Workers        int
	HurricanesOnly bool

	// Output sink selection.
	Sink         string
	OutputDir    string
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string

	// GLM object store.
	S3Bucket string
	S3Prefix string
	S3Region string
	CacheDir string

	// Region catalog.
	CatalogPath string
	Region      string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	interval, err := parsePositiveMinutes("TIME_INTERVAL_MINUTES", 30)
	if err != nil {
		return nil, err
	}

	boxSize, err := parseBoxSize()
	if err != nil {
		return nil, err
	}

	rmwMultiple, err := parseRMWMultiple()
	if err != nil {
		return nil, err
	}

	tolerance, err := parseTolerance()
	if err != nil {
		return nil, err
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		TimeInterval:   interval,
		BoxSizeDegrees: boxSize,
		RMWMultiple:    rmwMultiple,
		NNTolerance:    tolerance,
		Workers:        workers,
		HurricanesOnly: sharedcfg.EnvOrDefault("HURRICANES_ONLY", "true") == "true",

		Sink:         sharedcfg.EnvOrDefault("SINK", SinkCSV),
		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		SQLitePath:   sharedcfg.EnvOrDefault("SQLITE_PATH", "out/aligned.db"),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "aligned-rows"),

		S3Bucket: sharedcfg.EnvOrDefault("S3_BUCKET", "noaa-goes16"),
		S3Prefix: sharedcfg.EnvOrDefault("S3_PREFIX", "glm-groups"),
		S3Region: sharedcfg.EnvOrDefault("S3_REGION", "us-east-1"),
		CacheDir: sharedcfg.EnvOrDefault("CACHE_DIR", "cache"),

		CatalogPath: sharedcfg.EnvOrDefault("REGION_CATALOG", "regions.yaml"),
		Region:      sharedcfg.EnvOrDefault("REGION", "north_atlantic"),
	}

	switch cfg.Sink {
	case SinkCSV, SinkSQLite:
	case SinkKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required for the kafka sink")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required for the kafka sink")
		}
	default:
		return nil, fmt.Errorf("unknown SINK %q", cfg.Sink)
	}
	if cfg.S3Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}

	return cfg, nil
}

func parsePositiveMinutes(key string, def int) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return time.Duration(n) * time.Minute, nil
}

func parseBoxSize() (float64, error) {
	s := sharedcfg.EnvOrDefault("BOX_SIZE_DEGREES", "6")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("BOX_SIZE_DEGREES must be a positive number, got %q", s)
	}
	return v, nil
}

// parseRMWMultiple reads the event distance cut as a multiple of the
// radius of maximum winds. Zero keeps the spatial box as the only filter.
func parseRMWMultiple() (float64, error) {
	s := sharedcfg.EnvOrDefault("RMW_MULTIPLE", "0")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("RMW_MULTIPLE must be a non-negative number, got %q", s)
	}
	return v, nil
}

// parseTolerance reads NN_TOLERANCE as a Go duration. Zero disables the
// nearest-neighbor limit.
func parseTolerance() (time.Duration, error) {
	s := sharedcfg.EnvOrDefault("NN_TOLERANCE", "3h")
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("NN_TOLERANCE must be a non-negative duration, got %q", s)
	}
	return d, nil
}

func parseWorkers() (int, error) {
	s := sharedcfg.EnvOrDefault("WORKERS", "4")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("WORKERS must be a positive integer, got %q", s)
	}
	return n, nil
}
