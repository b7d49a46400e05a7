package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string

	StoreDriver            string
	StoreTimeout           time.Duration
	FirebaseProject        string
	FirebaseServiceAccount string
	FirebaseCredentials    string
	DatabaseURL            string

	AuthMode  string
	JWTSecret string

	RateLimitDriver        string
	RateLimitMessages      int
	RateLimitWindow        time.Duration
	RedisURL               string
	HTTPRateLimitPerMinute int

	KafkaBrokers      []string
	KafkaMessageTopic string

	StorageBucket      string
	MaxAttachmentBytes int64
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreDriver:            getEnv("STORE_DRIVER", "firestore"),
		StoreTimeout:           getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
		FirebaseProject:        getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccount: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		FirebaseCredentials:    getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		DatabaseURL:            getEnv("DATABASE_URL", ""),

		AuthMode:  getEnv("AUTH_MODE", "firebase"),
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		RateLimitDriver:        getEnv("RATE_LIMIT_DRIVER", "memory"),
		RateLimitMessages:      getEnvAsInt("RATE_LIMIT_MESSAGES", 10),
		RateLimitWindow:        getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		HTTPRateLimitPerMinute: getEnvAsInt("HTTP_RATE_LIMIT_PER_MINUTE", 120),

		KafkaBrokers:      getEnvAsList("KAFKA_BROKERS"),
		KafkaMessageTopic: getEnv("KAFKA_MESSAGE_TOPIC", "messages.sent"),

		StorageBucket:      getEnv("STORAGE_BUCKET", ""),
		MaxAttachmentBytes: getEnvAsInt64("MAX_ATTACHMENT_BYTES", 10<<20), // 10 MiB
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
