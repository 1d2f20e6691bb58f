// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/graceverse/study-api/internal/models"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string
	RedisURL    string

	// Authentication
	JWTSecret      string
	JWTExpiry      time.Duration
	AnonJWTSecret  string
	AnonSessionTTL time.Duration

	// LLM providers
	UseMock         bool
	LLMProvider     string // "openai" or "anthropic", primary provider
	OpenAIAPIKey    string
	AnthropicAPIKey string
	LLMTimeout      time.Duration
	LLMMaxRetries   int

	// Payments
	PaymentsWebhookSecret string

	// Token economy
	Costs      map[models.Language]int // per-language generation cost, parsed from COSTS_JSON
	PlanLimits map[models.Plan]int     // per-plan daily limit, parsed from PLAN_LIMITS_JSON

	// Spaced repetition tuning
	MinEaseFactor   float64
	MaxIntervalDays int

	// CORS
	CORSOrigins []string

	// Rate limiting: anonymous and Standard generation-miss limits
	AnonRateLimit      int
	AnonRateWindow     time.Duration
	StandardRateLimit  int
	StandardRateWindow time.Duration

	// Derived: used to salt fingerprint-adjacent secrets, never for fingerprinting itself.
	signingKey []byte
}

// defaultCosts is the per-language generation cost in tokens.
var defaultCosts = map[models.Language]int{
	models.LangEnglish:   10,
	models.LangHindi:     20,
	models.LangMalayalam: 20,
}

// defaultPlanLimits is the daily token allotment per plan; Premium is a
// sentinel large enough to be effectively unlimited.
var defaultPlanLimits = map[models.Plan]int{
	models.PlanFree:     8,
	models.PlanStandard: 20,
	models.PlanPlus:     50,
	models.PlanPremium:  1_000_000_000,
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DB_URL", getEnv("DATABASE_URL", "file:study.db?_journal=WAL&_timeout=5000")),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTExpiry:      getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		AnonJWTSecret:  getEnv("ANON_JWT_SECRET", ""),
		AnonSessionTTL: getEnvDuration("ANON_SESSION_TTL", 24*time.Hour),

		UseMock:         getEnvBool("USE_MOCK", false),
		LLMProvider:     getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMTimeout:      getEnvDuration("LLM_TIMEOUT", 20*time.Second),
		LLMMaxRetries:   getEnvInt("LLM_MAX_RETRIES", 3),

		PaymentsWebhookSecret: getEnv("PAYMENTS_WEBHOOK_SECRET", ""),

		MinEaseFactor:   getEnvFloat("MIN_EASE_FACTOR", 1.3),
		MaxIntervalDays: getEnvInt("MAX_INTERVAL_DAYS", 180),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		AnonRateLimit:      getEnvInt("ANON_RATE_LIMIT", 3),
		AnonRateWindow:     getEnvDuration("ANON_RATE_WINDOW", 8*time.Hour),
		StandardRateLimit:  getEnvInt("STANDARD_RATE_LIMIT", 10),
		StandardRateWindow: getEnvDuration("STANDARD_RATE_WINDOW", time.Hour),
	}

	costs, err := parseCosts(getEnv("COSTS_JSON", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid COSTS_JSON: %w", err)
	}
	cfg.Costs = costs

	limits, err := parsePlanLimits(getEnv("PLAN_LIMITS_JSON", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAN_LIMITS_JSON: %w", err)
	}
	cfg.PlanLimits = limits

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AnonJWTSecret == "" {
		cfg.AnonJWTSecret = cfg.JWTSecret
	}
	if !cfg.UseMock && cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("at least one of OPENAI_API_KEY or ANTHROPIC_API_KEY is required unless USE_MOCK=true")
	}

	cfg.signingKey = deriveSigningKey(cfg.JWTSecret)

	return cfg, nil
}

// Cost returns the per-generation token cost for lang, falling back to the
// English cost if an override table is missing an entry (should not happen
// for the three recognized languages).
func (c *Config) Cost(lang models.Language) int {
	if cost, ok := c.Costs[lang]; ok {
		return cost
	}
	return defaultCosts[models.LangEnglish]
}

// DailyLimit returns the daily token allotment for plan.
func (c *Config) DailyLimit(plan models.Plan) int {
	if limit, ok := c.PlanLimits[plan]; ok {
		return limit
	}
	return defaultPlanLimits[models.PlanFree]
}

// SigningKey returns the 32-byte HKDF-derived key for JWT_SECRET. Nothing in
// the service reads it; anonymous device fingerprints are hashed with plain
// SHA-256, not with this key.
func (c *Config) SigningKey() []byte {
	return c.signingKey
}

func parseCosts(raw string) (map[models.Language]int, error) {
	out := make(map[models.Language]int, len(defaultCosts))
	for k, v := range defaultCosts {
		out[k] = v
	}
	if raw == "" {
		return out, nil
	}
	var parsed map[string]int
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}
	for k, v := range parsed {
		out[models.Language(k)] = v
	}
	return out, nil
}

func parsePlanLimits(raw string) (map[models.Plan]int, error) {
	out := make(map[models.Plan]int, len(defaultPlanLimits))
	for k, v := range defaultPlanLimits {
		out[k] = v
	}
	if raw == "" {
		return out, nil
	}
	var parsed map[string]int
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}
	for k, v := range parsed {
		out[models.Plan(k)] = v
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// deriveSigningKey creates a 32-byte key from a secret string using HKDF.
func deriveSigningKey(secret string) []byte {
	salt := []byte("study-api-signing-key-v1")
	info := []byte("hkdf-derived-signing-key")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}
	return key
}
