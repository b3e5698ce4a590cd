package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	BotToken      string
	AdminChatID   string
	HTTPPort      string
	MySQLDSN      string
	RedisAddr     string
	AppEnv        string
	FrontendLocal string
	FrontendBuild string
	PublicURL     string
	QueueSize     int
	WorkerCount   int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load reads the environment. Missing bot credentials or a missing store
// launch URL are fatal startup conditions.
func Load() (Config, error) {
	cfg := Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		AdminChatID:   os.Getenv("ADMIN_CHAT_ID"),
		HTTPPort:      getenv("HTTP_PORT", "5000"),
		MySQLDSN:      getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/herdstore?parseTime=true"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		AppEnv:        getenv("APP_ENV", "development"),
		FrontendLocal: os.Getenv("FRONTEND_LOCAL"),
		FrontendBuild: os.Getenv("FRONTEND_BUILD"),
		PublicURL:     os.Getenv("PUBLIC_URL"),
		QueueSize:     atoiEnv("NOTIFY_QUEUE_SIZE", 1000),
		WorkerCount:   atoiEnv("NOTIFY_WORKERS", 4),
	}

	if cfg.BotToken == "" {
		return Config{}, errors.New("BOT_TOKEN not provided")
	}
	if cfg.FrontendURL() == "" {
		return Config{}, errors.New("store launch URL not defined: set FRONTEND_LOCAL or FRONTEND_BUILD for the current APP_ENV")
	}
	return cfg, nil
}

func (c Config) IsDev() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// FrontendURL picks the Mini App launch URL for the current environment.
func (c Config) FrontendURL() string {
	if c.IsDev() {
		return c.FrontendLocal
	}
	return c.FrontendBuild
}
