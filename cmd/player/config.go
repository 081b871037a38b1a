package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ManifestURL   string
	Interval      time.Duration
	Transition    time.Duration
	VideoWatchdog time.Duration
	VideoLength   time.Duration
	PreserveIndex bool

	WSURL       string
	PlaysURL    string
	PlayerToken string
	PlayerName  string
	LogFile     string
}

// loadConfig reads flags, each defaulting to its environment variable.
func loadConfig(args []string) (Config, error) {
	host, _ := os.Hostname()
	if host == "" {
		host = "player"
	}

	interval, err := getenvDuration("MANIFEST_INTERVAL", "60s")
	if err != nil {
		return Config{}, err
	}
	watchdog, err := getenvDuration("VIDEO_WATCHDOG", "0s")
	if err != nil {
		return Config{}, err
	}
	videoLength, err := getenvDuration("VIDEO_LENGTH", "0s")
	if err != nil {
		return Config{}, err
	}
	preserve, err := getenvBool("PRESERVE_INDEX", false)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	var transitionMs int
	fs := flag.NewFlagSet("player", flag.ContinueOnError)
	fs.StringVar(&cfg.ManifestURL, "manifest", getenv("MANIFEST_URL", "http://localhost:3001/api/manifest"), "manifest URL")
	fs.DurationVar(&cfg.Interval, "interval", interval, "manifest poll interval")
	fs.IntVar(&transitionMs, "transition-ms", getenvInt("TRANSITION_MS", 300), "fade duration in milliseconds")
	fs.DurationVar(&cfg.VideoWatchdog, "video-watchdog", watchdog, "advance a video that never ends after this long (0 = off)")
	fs.DurationVar(&cfg.VideoLength, "video-length", videoLength, "headless display: report video end after this long (0 = never)")
	fs.BoolVar(&cfg.PreserveIndex, "preserve-index", preserve, "keep the position when a reload keeps the same playlist")
	fs.StringVar(&cfg.WSURL, "ws", getenv("WS_URL", ""), "push websocket URL (optional)")
	fs.StringVar(&cfg.PlaysURL, "plays", getenv("PLAYS_URL", ""), "proof-of-play URL (optional)")
	fs.StringVar(&cfg.PlayerToken, "token", getenv("PLAYER_TOKEN", ""), "shared player token")
	fs.StringVar(&cfg.PlayerName, "name", getenv("PLAYER_NAME", host), "player name used in play reports")
	fs.StringVar(&cfg.LogFile, "log-file", getenv("LOG_FILE", ""), "also log to this rotated file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.ManifestURL == "" {
		return Config{}, fmt.Errorf("player: manifest URL is required")
	}
	if transitionMs < 0 {
		return Config{}, fmt.Errorf("player: transition must not be negative")
	}
	cfg.Transition = time.Duration(transitionMs) * time.Millisecond
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
	if err != nil || v < 0 {
		return def
	}
	return v
}

func getenvBool(key string, def bool) (bool, error) {
	raw := getenv(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("player: invalid boolean in %s=%s", key, raw)
	}
	return v, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	raw := getenv(key, def)
	dur, err := time.ParseDuration(raw)
	if err != nil || dur < 0 {
		return 0, fmt.Errorf("player: invalid duration in %s=%s", key, raw)
	}
	return dur, nil
}
