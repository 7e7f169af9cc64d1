package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Scheduler struct {
	TickSpec        string
	DueWindow       time.Duration
	PublishEpsilon  time.Duration
	SubmissionDelay time.Duration
}

type Publisher struct {
	ProxyURL      string
	PollInterval  time.Duration
	PollAttempts  int
	QuotaLimit    int
	QuotaCacheTTL time.Duration
	ProgressGrace time.Duration
}

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	InstagramRedirectURI  string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	R2                    R2
	Scheduler             Scheduler
	Publisher             Publisher
	SecretKey             string
	CookieName            string
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		InstagramRedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Scheduler: Scheduler{
			TickSpec:        getEnv("SCHEDULER_TICK_SPEC", "@every 00h01m00s"),
			DueWindow:       getDurationEnv("SCHEDULER_DUE_WINDOW", 15*time.Minute),
			PublishEpsilon:  getDurationEnv("SCHEDULER_PUBLISH_EPSILON", time.Minute),
			SubmissionDelay: getDurationEnv("SCHEDULER_SUBMISSION_DELAY", 2*time.Second),
		},
		Publisher: Publisher{
			ProxyURL:      getEnv("PUBLISH_PROXY_URL", ""),
			PollInterval:  getDurationEnv("PUBLISH_POLL_INTERVAL", time.Second),
			PollAttempts:  getIntEnv("PUBLISH_POLL_ATTEMPTS", 60),
			QuotaLimit:    getIntEnv("PUBLISH_QUOTA_LIMIT", 25),
			QuotaCacheTTL: getDurationEnv("PUBLISH_QUOTA_CACHE_TTL", time.Minute),
			ProgressGrace: getDurationEnv("PUBLISH_PROGRESS_GRACE", 3*time.Second),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
