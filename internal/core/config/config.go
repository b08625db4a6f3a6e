// Package config reads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FeedCfg configures the Kafka consumer of harvested record batches.
type FeedCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
	// empty disables membership publishing
	ResultsTopic string
	ResultsQueue int
}

type Config struct {
	Addr             string
	LogLevel         string
	LogConsole       bool
	LogSampleN       int
	LayersFile       string
	MetricsEnabled   bool
	ClassifyCache    string
	ClassifyCacheTTL time.Duration
	ClassifyLRUSize  int
	RedisAddr        string
	RedisDB          int
	RedisPoolSize    int
	PurgeStaleCache  bool
	CacheOpTimeout   time.Duration
	MaxBatchRecords  int
	Feed             FeedCfg
}

// FromEnv reads settings from the environment. Call LoadDotEnv first to
// pick up a .env file.
func FromEnv() Config {
	cacheKind := strings.ToLower(strings.TrimSpace(getenv("CLASSIFY_CACHE", "none")))
	switch cacheKind {
	case "none", "lru", "redis":
	default:
		cacheKind = "none"
	}

	lruSize := getint("CLASSIFY_LRU_SIZE", 10000)
	if lruSize <= 0 {
		lruSize = 10000
	}
	maxBatch := getint("MAX_BATCH_RECORDS", 5000)
	if maxBatch <= 0 {
		maxBatch = 5000
	}

	return Config{
		Addr:             getenv("ADDR", ":8090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogConsole:       getbool("LOG_CONSOLE", false),
		LogSampleN:       getint("LOG_SAMPLE_N", 0),
		LayersFile:       getenv("LAYERS_FILE", "layers.yaml"),
		MetricsEnabled:   getbool("METRICS_ENABLED", true),
		ClassifyCache:    cacheKind,
		ClassifyCacheTTL: getduration("CLASSIFY_CACHE_TTL", 10*time.Minute),
		ClassifyLRUSize:  lruSize,
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisDB:          getint("REDIS_DB", 0),
		RedisPoolSize:    getint("REDIS_POOL_SIZE", 64),
		PurgeStaleCache:  getbool("CLASSIFY_CACHE_PURGE_STALE", true),
		CacheOpTimeout:   getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		MaxBatchRecords:  maxBatch,
		Feed: FeedCfg{
			Enabled: getbool("FEED_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "csw-records"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "knownlayers-classifier"),

			ResultsTopic: strings.TrimSpace(getenv("KAFKA_RESULTS_TOPIC", "")),
			ResultsQueue: getint("KAFKA_RESULTS_QUEUE", 1024),
		},
	}
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment without overriding variables that are already set. Missing
// files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
