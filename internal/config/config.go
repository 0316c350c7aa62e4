package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	Matching  MatchingConfig
	RateLimit RateLimitConfig
	Port      string
	APITokens []string
}

type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MatchingConfig tunes the scoring pipeline and its fetch layer.
type MatchingConfig struct {
	AnomalyK         float64
	MinAnomalyBatch  int
	TrendThreshold   float64
	TrendMinRecent   float64
	TrendWindow      time.Duration
	Concurrency      int
	FetchTimeout     time.Duration
	CandidateLimit   int
	TrendCacheTTL    time.Duration
	PrefCacheTTL     time.Duration
	// ContentModelPath points at a JSON linear content model. Empty keeps
	// tag overlap scoring.
	ContentModelPath string
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var p parser
	cfg := &Config{
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        p.intVal("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "nightlife_matching"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.intVal("REDIS_DB", "4"),
		},
		Matching: MatchingConfig{
			AnomalyK:         p.floatVal("ANOMALY_K", "2"),
			MinAnomalyBatch:  p.intVal("MIN_ANOMALY_BATCH", "3"),
			TrendThreshold:   p.floatVal("TREND_THRESHOLD", "1.5"),
			TrendMinRecent:   p.floatVal("TREND_MIN_RECENT", "10"),
			TrendWindow:      time.Duration(p.intVal("TREND_WINDOW_HOURS", "24")) * time.Hour,
			Concurrency:      p.intVal("SCORING_CONCURRENCY", "8"),
			FetchTimeout:     time.Duration(p.intVal("FETCH_TIMEOUT_MS", "3000")) * time.Millisecond,
			CandidateLimit:   p.intVal("CANDIDATE_LIMIT", "100"),
			TrendCacheTTL:    time.Duration(p.intVal("TREND_CACHE_TTL_SECONDS", "300")) * time.Second,
			PrefCacheTTL:     time.Duration(p.intVal("PREF_CACHE_TTL_SECONDS", "600")) * time.Second,
			ContentModelPath: getEnv("CONTENT_MODEL_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			Max:    p.intVal("RATE_LIMIT_MAX", "100"),
			Window: time.Duration(p.intVal("RATE_LIMIT_WINDOW_SECONDS", "60")) * time.Second,
		},
		Port:      getEnv("SERVER_PORT", "8084"),
		APITokens: splitList(getEnv("API_TOKENS", "")),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Matching.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m MatchingConfig) validate() error {
	switch {
	case m.AnomalyK <= 0:
		return fmt.Errorf("ANOMALY_K must be positive, got %v", m.AnomalyK)
	case m.TrendThreshold <= 0:
		return fmt.Errorf("TREND_THRESHOLD must be positive, got %v", m.TrendThreshold)
	case m.Concurrency <= 0:
		return fmt.Errorf("SCORING_CONCURRENCY must be positive, got %d", m.Concurrency)
	case m.FetchTimeout <= 0:
		return fmt.Errorf("FETCH_TIMEOUT_MS must be positive, got %s", m.FetchTimeout)
	case m.CandidateLimit <= 0:
		return fmt.Errorf("CANDIDATE_LIMIT must be positive, got %d", m.CandidateLimit)
	}
	return nil
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) intVal(key, fallback string) int {
	v, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) floatVal(key, fallback string) float64 {
	v, err := strconv.ParseFloat(getEnv(key, fallback), 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
