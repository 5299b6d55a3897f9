package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Backend selection: DatabaseURL (PostgreSQL) wins over DatabasePath
	// (SQLite), which wins over MongoURL. With none set, storage is in memory.
	DatabaseURL  string
	DatabasePath string
	MongoURL     string
	DBName       string

	JWTSecret   string
	CORSOrigins string

	StoreTimeout     time.Duration
	PersistQueueSize int
	WSPingInterval   time.Duration
	WSReadTimeout    time.Duration

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	StunServers  string
	TurnServer   string
	TurnUsername string
	TurnPassword string
}

// Load reads configuration from the environment. Variables from the file
// named by PEYVAND_ENV_FILE (or ./.env) are applied first without
// overriding anything already set.
func Load() *Config {
	envFile := getEnv("PEYVAND_ENV_FILE", ".env")
	_ = godotenv.Load(envFile)

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabasePath:     getEnv("DATABASE_PATH", ""),
		MongoURL:         getEnv("MONGO_URL", ""),
		DBName:           getEnv("DB_NAME", "peyvand"),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		CORSOrigins:      getEnv("CORS_ORIGINS", "*"),
		StoreTimeout:     parseDuration(getEnv("STORE_TIMEOUT", ""), 5*time.Second),
		PersistQueueSize: parseInt(getEnv("PERSIST_QUEUE_SIZE", ""), 1024),
		WSPingInterval:   parseDuration(getEnv("WS_PING_INTERVAL", ""), 54*time.Second),
		WSReadTimeout:    parseDuration(getEnv("WS_READ_TIMEOUT", ""), 60*time.Second),
		VAPIDPublicKey:   getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:  getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber:  getEnv("VAPID_SUBSCRIBER", "admin@peyvand.local"),
		StunServers:      getEnv("STUN_SERVERS", "stun:stun.l.google.com:19302"),
		TurnServer:       getEnv("TURN_SERVER", ""),
		TurnUsername:     getEnv("TURN_USERNAME", ""),
		TurnPassword:     getEnv("TURN_PASSWORD", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	val, err := strconv.Atoi(s)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func parseDuration(s string, def time.Duration) time.Duration {
	val, err := time.ParseDuration(s)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
