package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"area-bot/config"
	"area-bot/internal/api/httpapi"
	"area-bot/internal/api/telegram"
	"area-bot/internal/container"
	"area-bot/internal/domain/port"
	"area-bot/internal/infrastructure/segmenter"
	"area-bot/internal/infrastructure/staging"
	"area-bot/internal/infrastructure/storage"
	"area-bot/internal/infrastructure/vision"
	"area-bot/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.ServerMode); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.L()

	if cfg.TelegramToken == "" && cfg.HTTPAddr == "" {
		log.Fatal("either TELEGRAM_TOKEN or HTTP_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилище сессий: Redis, если указан адрес, иначе память процесса
	var sessions port.SessionRepository
	if cfg.RedisAddr != "" {
		redisRepo := storage.NewRedisSessionRepository(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.SessionTTL)
		if err := redisRepo.Ping(ctx); err != nil {
			log.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer redisRepo.Close()
		sessions = redisRepo
		log.Info("sessions stored in redis", zap.String("addr", cfg.RedisAddr))
	} else {
		sessions = storage.NewMemorySessionRepository()
	}

	stager, err := staging.New(cfg.ScratchDir)
	if err != nil {
		log.Fatal("failed to prepare scratch dir", zap.Error(err))
	}
	log.Info("scratch dir ready", zap.String("path", stager.Root()))

	// Собираем сервисы приложения
	appContainer := container.New(container.Deps{
		Sessions:     sessions,
		Segmenter:    segmenter.NewClient(cfg.SegmenterURL, cfg.SegmenterTimeout),
		Renderer:     vision.NewRenderer(),
		Stager:       stager,
		DisplayWidth: cfg.DisplayWidth,
		DefaultUnit:  cfg.DefaultUnit,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer)
		if err != nil {
			log.Fatal("failed to create bot", zap.Error(err))
		}
		g.Go(func() error {
			log.Info("bot is running")
			return bot.Run(ctx)
		})
	}

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(httpapi.NewHandler(appContainer, cfg.MaxUploadBytes), cfg.ServerMode),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", zap.Error(err))
		return
	}
	log.Info("service stopped")
}
