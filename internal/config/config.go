package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server binary reads from the environment.
type Config struct {
	Port        string
	Environment string

	// StorageDriver is "postgres" (gorm + Redis) or "memory".
	StorageDriver string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret []byte
	TokenTTL  time.Duration

	TelegramBotToken string
	CORSOrigins      []string

	Chat ChatConfig
}

// ChatConfig carries the matching, presence and typing cadences.
type ChatConfig struct {
	PollInterval         time.Duration
	MatchTimeout         time.Duration // 0 disables the timeout
	HeartbeatInterval    time.Duration
	PresenceTTL          time.Duration
	CountRefreshInterval time.Duration
	TypingIdleTimeout    time.Duration
	RelayResyncInterval  time.Duration
	DetachGrace          time.Duration
}

// DefaultChatConfig returns the reference cadences.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		PollInterval:         DefaultPollInterval,
		MatchTimeout:         DefaultMatchTimeout,
		HeartbeatInterval:    DefaultHeartbeatInterval,
		PresenceTTL:          DefaultPresenceTTL,
		CountRefreshInterval: DefaultCountRefreshInterval,
		TypingIdleTimeout:    DefaultTypingIdleTimeout,
		RelayResyncInterval:  DefaultRelayResyncInterval,
		DetachGrace:          DefaultDetachGrace,
	}
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),
		DatabaseURL:   getEnv("DATABASE_URL", "host=localhost user=user password=password dbname=strangerchat port=5432 sslmode=disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6380"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		JWTSecret: []byte(getEnv("JWT_SECRET", "change-me")),
		TokenTTL:  getDuration("TOKEN_TTL", 72*time.Hour),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		CORSOrigins:      getList("CORS_ORIGINS", []string{"*"}),

		Chat: ChatConfig{
			PollInterval:         getDuration("POLL_INTERVAL", DefaultPollInterval),
			MatchTimeout:         getDuration("MATCH_TIMEOUT", DefaultMatchTimeout),
			HeartbeatInterval:    getDuration("HEARTBEAT_INTERVAL", DefaultHeartbeatInterval),
			PresenceTTL:          getDuration("PRESENCE_TTL", DefaultPresenceTTL),
			CountRefreshInterval: getDuration("COUNT_REFRESH_INTERVAL", DefaultCountRefreshInterval),
			TypingIdleTimeout:    getDuration("TYPING_IDLE_TIMEOUT", DefaultTypingIdleTimeout),
			RelayResyncInterval:  getDuration("RELAY_RESYNC_INTERVAL", DefaultRelayResyncInterval),
			DetachGrace:          getDuration("DETACH_GRACE", DefaultDetachGrace),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARNING: Invalid integer for %s (%q), using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("WARNING: Invalid duration for %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
