package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI           string
	DBName             string
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
	CookieDomain       string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:           mustEnv("MONGO_URI"),
		DBName:             getEnvOrDefault("DB_NAME", "streamhub"),
		AccessTokenSecret:  mustEnv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: mustEnv("REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     mustDuration("ACCESS_TOKEN_TTL", time.Minute),
		RefreshTokenTTL:    mustDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
		BcryptCost:         mustInt("BCRYPT_COST"),
		CookieDomain:       getEnvOrDefault("COOKIE_DOMAIN", ""),
	}
	if AppEnv.AccessTokenSecret == AppEnv.RefreshTokenSecret {
		log.Fatal("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		log.Fatalf("ENV %s is required", key)
	}
	return value
}

// mustDuration reads a required positive integer env var and scales it by
// unit (ACCESS_TOKEN_TTL is in minutes, REFRESH_TOKEN_TTL in days).
func mustDuration(key string, unit time.Duration) time.Duration {
	parsed := mustInt(key)
	return time.Duration(parsed) * unit
}

func mustInt(key string) int {
	value := mustEnv(key)
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		log.Fatalf("ENV %s must be a positive integer, got %q", key, value)
	}
	return parsed
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
