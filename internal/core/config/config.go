// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
	GroupID string
}

type EventsCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
	Queue   int
}

type CacheCfg struct {
	Enabled   bool
	TTL       time.Duration
	LocalSize int
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	RedisPrefix   string
	OpTimeout     time.Duration
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	RankingAPIURL     string
	HTTPClientTimeout time.Duration

	GazetteerPath    string
	GazetteerH3Res   int
	FilterSchemaPath string

	DefaultBarrierKind string
	SessionMax         int
	InventoryEnabled   bool

	Cache        CacheCfg
	Invalidation InvalidationCfg
	Events       EventsCfg

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	brokers := splitCSV(getenv("KAFKA_BROKERS", "localhost:9092"))

	res := getint("GAZETTEER_H3_RES", 5)
	if res < 0 || res > 15 {
		res = 5
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		RankingAPIURL:     strings.TrimRight(getenv("RANKING_API_URL", "http://localhost:5000"), "/"),
		HTTPClientTimeout: getduration("HTTP_CLIENT_TIMEOUT", 30*time.Second),

		GazetteerPath:    getenv("GAZETTEER_PATH", "data/units.geojson"),
		GazetteerH3Res:   res,
		FilterSchemaPath: getenv("FILTER_SCHEMA_PATH", ""),

		DefaultBarrierKind: getenv("DEFAULT_BARRIER_KIND", "dams"),
		SessionMax:         getint("SESSION_MAX", 1024),
		InventoryEnabled:   getbool("INVENTORY_ENABLED", true),

		Cache: CacheCfg{
			Enabled:   getbool("RANK_CACHE_ENABLED", true),
			TTL:       getduration("RANK_CACHE_TTL", 10*time.Minute),
			LocalSize: getint("RANK_CACHE_LOCAL_SIZE", 256),
			RedisAddr:     getenv("REDIS_ADDR", ""),
			RedisDB:       getint("REDIS_DB", 0),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisPrefix:   getenv("REDIS_PREFIX", "prioritizer:"),
			OpTimeout:     getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("INVALIDATION_TOPIC", "ranking-data-published"),
			Brokers: brokers,
			GroupID: getenv("KAFKA_GROUP_ID", "barrier-prioritizer"),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Topic:   getenv("EVENTS_TOPIC", "workflow-events"),
			Brokers: brokers,
			Queue:   getint("EVENTS_QUEUE", 1024),
		},

		MetricsEnabled: getbool("METRICS_ENABLED", true),
		MetricsAddr:    getenv("METRICS_ADDR", ""),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
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

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
