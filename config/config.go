package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"area-bot/internal/domain/entity"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string
	ServerMode    string

	SegmenterURL     string
	SegmenterTimeout time.Duration

	DisplayWidth   int
	DefaultUnit    string
	ScratchDir     string
	MaxUploadBytes int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		ServerMode:    getEnv("SERVER_MODE", "debug"),
		SegmenterURL:  getEnv("SEGMENTER_URL", "http://localhost:8000"),
		DefaultUnit:   getEnv("DEFAULT_UNIT", "unit"),
		ScratchDir:    getEnv("SCRATCH_DIR", "./images"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.SegmenterTimeout, err = getDuration("SEGMENTER_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DisplayWidth, err = getInt("DISPLAY_WIDTH", 700); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 20<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	switch cfg.ServerMode {
	case "debug", "release", "test":
	default:
		return nil, fmt.Errorf("SERVER_MODE must be debug, release or test, got %q", cfg.ServerMode)
	}
	if cfg.DisplayWidth <= 0 {
		return nil, fmt.Errorf("DISPLAY_WIDTH must be positive, got %d", cfg.DisplayWidth)
	}
	if err := entity.ValidateUnit(cfg.DefaultUnit); err != nil {
		return nil, fmt.Errorf("DEFAULT_UNIT: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
