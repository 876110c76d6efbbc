package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	PricebookPath         string
	AuthSecret            string
	DetailCacheTTLSeconds int
}

func Load() Config {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("DETAIL_CACHE_TTL_SECONDS", "900"))
	if err != nil || ttl < 1 {
		ttl = 900
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		PricebookPath:         os.Getenv("PRICEBOOK_CSV"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		DetailCacheTTLSeconds: ttl,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
