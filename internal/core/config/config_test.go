package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != ":8090" || cfg.LayersFile != "layers.yaml" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ClassifyCache != "none" || cfg.ClassifyCacheTTL != 10*time.Minute {
		t.Fatalf("unexpected cache defaults %+v", cfg)
	}
	if cfg.Feed.Enabled || cfg.Feed.Topic != "csw-records" || cfg.Feed.ResultsTopic != "" {
		t.Fatalf("unexpected feed defaults %+v", cfg.Feed)
	}
	if cfg.RedisDB != 0 || cfg.RedisPoolSize != 64 || !cfg.PurgeStaleCache {
		t.Fatalf("unexpected redis defaults db=%d pool=%d purge=%t", cfg.RedisDB, cfg.RedisPoolSize, cfg.PurgeStaleCache)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("CLASSIFY_CACHE", "Redis")
	t.Setenv("CLASSIFY_CACHE_TTL", "30s")
	t.Setenv("CLASSIFY_LRU_SIZE", "-4")
	t.Setenv("FEED_ENABLED", "yes")
	t.Setenv("METRICS_ENABLED", "0")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CLASSIFY_CACHE_PURGE_STALE", "false")

	cfg := FromEnv()
	if cfg.Addr != ":9999" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.ClassifyCache != "redis" || cfg.ClassifyCacheTTL != 30*time.Second {
		t.Fatalf("cache=%q ttl=%s", cfg.ClassifyCache, cfg.ClassifyCacheTTL)
	}
	if cfg.ClassifyLRUSize != 10000 {
		t.Fatalf("lru size=%d want fallback 10000", cfg.ClassifyLRUSize)
	}
	if !cfg.Feed.Enabled || cfg.MetricsEnabled {
		t.Fatalf("feed=%t metrics=%t", cfg.Feed.Enabled, cfg.MetricsEnabled)
	}
	if cfg.RedisDB != 2 || cfg.PurgeStaleCache {
		t.Fatalf("redis db=%d purge=%t", cfg.RedisDB, cfg.PurgeStaleCache)
	}
}

func TestFromEnv_UnknownCacheFallsBack(t *testing.T) {
	t.Setenv("CLASSIFY_CACHE", "memcached")
	if got := FromEnv().ClassifyCache; got != "none" {
		t.Fatalf("cache=%q want none", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LAYERS_FILE=/etc/knownlayers/layers.yaml\nADDR=:7000\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ADDR", ":1234")
	// registered so cleanup restores it, then cleared so the file can set it
	t.Setenv("LAYERS_FILE", "")
	_ = os.Unsetenv("LAYERS_FILE")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg := FromEnv()
	if cfg.Addr != ":1234" {
		t.Fatalf("addr=%q; existing env must win", cfg.Addr)
	}
	if cfg.LayersFile != "/etc/knownlayers/layers.yaml" {
		t.Fatalf("layers file=%q", cfg.LayersFile)
	}
}
