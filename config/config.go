// Package config loads process configuration from the environment, with an
// optional .env file for local development. Every empirical tuning constant
// has a default here so a zero-config start still behaves sensibly.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the generation and retrieval layers need at startup.
type Config struct {
	// Cache layer.
	CacheCapacity      int
	CacheSweepInterval time.Duration
	RedisURL           string // empty selects the in-memory backend

	// Provider gateway.
	ResponseCacheTTL time.Duration
	AffinityTTL      time.Duration

	// Backend credentials. An empty key leaves that provider unavailable.
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// Embedding store.
	EmbeddingDBPath string

	// Retrieval tuning. Oversampling factors and the similarity threshold are
	// empirical; the right values depend on embedding quality and corpus size.
	NativeOversample    int
	FallbackOversample  int
	SimilarityThreshold float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		CacheCapacity:      envInt("AICORE_CACHE_CAPACITY", 10000),
		CacheSweepInterval: envDuration("AICORE_CACHE_SWEEP_INTERVAL", 5*time.Minute),
		RedisURL:           os.Getenv("AICORE_REDIS_URL"),

		ResponseCacheTTL: envDuration("AICORE_RESPONSE_CACHE_TTL", time.Hour),
		AffinityTTL:      envDuration("AICORE_AFFINITY_TTL", 24*time.Hour),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),

		EmbeddingDBPath: envString("AICORE_EMBEDDING_DB_PATH", "embeddings.db"),

		NativeOversample:    envInt("AICORE_NATIVE_OVERSAMPLE", 10),
		FallbackOversample:  envInt("AICORE_FALLBACK_OVERSAMPLE", 3),
		SimilarityThreshold: envFloat("AICORE_SIMILARITY_THRESHOLD", 0.7),
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
