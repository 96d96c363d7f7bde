package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string
	// RulesetPath points at a YAML ruleset; empty selects the embedded default.
	RulesetPath string

	Auth      AuthConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Scorer    ScorerConfig
	Diff      DiffConfig
}

// AuthConfig verifies bearer tokens minted by the identity provider.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// RateLimitConfig throttles API callers. A zero rate disables throttling.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

// RedisConfig configures the scorer response cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the audit store. An empty URL selects the
// in-memory store.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
}

// KafkaConfig configures audit forwarding. No brokers disables it.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	BufferCapacity int
}

// ScorerConfig configures the external risk scorer. An empty URL keeps
// classification rule-based.
type ScorerConfig struct {
	URL           string
	Timeout       time.Duration
	MaxInFlight   int
	RatePerSecond float64
	Burst         int
	CacheTTL      time.Duration
}

type DiffConfig struct {
	MaxClauses          int
	SimilarityThreshold float64
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        getEnv("REGASSIST_ADDR", ":8080"),
		LogLevel:    getEnv("REGASSIST_LOG_LEVEL", "info"),
		LogFormat:   getEnv("REGASSIST_LOG_FORMAT", "json"),
		RulesetPath: os.Getenv("REGASSIST_RULESET"),
		Auth: AuthConfig{
			// Empty leaves the /v1 routes unauthenticated.
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:        getEnv("JWT_ISSUER", "regassist"),
			Audience:      getEnv("JWT_AUDIENCE", "regassist-api"),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getFloat("REGASSIST_RATE_PER_SECOND", 0),
			Burst:     getInt("REGASSIST_RATE_BURST", 20),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 10),
		},
		Kafka: KafkaConfig{
			Brokers:        getList("KAFKA_BROKERS"),
			Topic:          getEnv("KAFKA_AUDIT_TOPIC", "regassist.audit"),
			BufferCapacity: getInt("KAFKA_BUFFER_CAPACITY", 1024),
		},
		Scorer: ScorerConfig{
			URL:           os.Getenv("SCORER_URL"),
			Timeout:       getDuration("SCORER_TIMEOUT", 5*time.Second),
			MaxInFlight:   getInt("SCORER_MAX_IN_FLIGHT", 4),
			RatePerSecond: getFloat("SCORER_RATE_PER_SECOND", 0),
			Burst:         getInt("SCORER_BURST", 4),
			CacheTTL:      getDuration("SCORER_CACHE_TTL", 24*time.Hour),
		},
		Diff: DiffConfig{
			MaxClauses:          getInt("DIFF_MAX_CLAUSES", 5000),
			SimilarityThreshold: getFloat("DIFF_SIMILARITY_THRESHOLD", 0.3),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for part := range strings.SplitSeq(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
