package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string
	JWTSecret  string

	// Groq-compatible completion endpoint
	GroqBaseURL string
	GroqAPIKey  string

	// session storage
	StoreDriver   string // memory | sqlite | redis
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HistoryLimit int
	SaveDebounce time.Duration
	CannedDelay  time.Duration
}

func Load() Config {
	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8080"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	baseURL := os.Getenv("GROQ_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}

	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "agentchat.db"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	historyLimit := 50
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			historyLimit = n
		}
	}

	saveDebounce := time.Second
	if v := os.Getenv("SAVE_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			saveDebounce = time.Duration(n) * time.Millisecond
		}
	}

	cannedDelay := time.Second
	if v := os.Getenv("CANNED_REPLY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cannedDelay = time.Duration(n) * time.Millisecond
		}
	}

	return Config{
		ListenAddr: listen,
		JWTSecret:  secret,

		GroqBaseURL: baseURL,
		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),

		StoreDriver:   driver,
		SQLitePath:    sqlitePath,
		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		HistoryLimit: historyLimit,
		SaveDebounce: saveDebounce,
		CannedDelay:  cannedDelay,
	}
}
