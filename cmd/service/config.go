package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	MediaDir string
	StateDir string

	JWTSecret     []byte
	SessionTTL    time.Duration
	AdminUsername string
	AdminPassword string

	MaxUploadBytes int64
	DatabaseURL    string
	RedisURL       string
	PlayerToken    string

	AllowedOrigin   string
	SocketOrigins   []string
	LogFile         string
	ShutdownTimeout time.Duration
}

func loadConfigFromEnv() (Config, error) {
	cfg := Config{
		Port:           getenv("PORT", "3001"),
		MediaDir:       getenv("MEDIA_DIR", "./public/media"),
		StateDir:       getenv("STATE_DIR", "./state"),
		JWTSecret:      []byte(getenv("JWT_SECRET", "")),
		AdminUsername:  getenv("ADMIN_USERNAME", ""),
		AdminPassword:  getenv("ADMIN_PASSWORD", ""),
		MaxUploadBytes: int64(getenvInt("MAX_UPLOAD_MB", 1024)) << 20,
		DatabaseURL:    getenv("DATABASE_URL", ""),
		RedisURL:       getenv("REDIS_URL", ""),
		PlayerToken:    getenv("PLAYER_TOKEN", ""),
		AllowedOrigin:  getenv("CORS_ALLOWED_ORIGIN", ""),
		SocketOrigins:  splitList(getenv("WS_ALLOWED_ORIGINS", "")),
		LogFile:        getenv("LOG_FILE", ""),
	}

	if len(cfg.JWTSecret) == 0 {
		return Config{}, errors.New("mural: JWT_SECRET is required")
	}

	var err error
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", "12h"); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getenvDuration(key, def string) (time.Duration, error) {
	raw := getenv(key, def)
	dur, err := time.ParseDuration(raw)
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("mural: invalid duration in %s=%s", key, raw)
	}
	return dur, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
