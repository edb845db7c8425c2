package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewards_webapp/internal/ads"
	"rewards_webapp/internal/bot"
	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/config"
	"rewards_webapp/internal/db"
	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/game"
	httpServer "rewards_webapp/internal/http"
	"rewards_webapp/internal/http/handlers"
	"rewards_webapp/internal/http/middleware"
	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/service"
	"rewards_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", "error", err)
	}
	if Version == "dev" {
		Version = cfg.Version
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx := context.Background()
	clk := clock.Real()

	// хранилище
	var store repository.Store
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect failed", "error", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate failed", "error", err)
		}
		store = repository.NewPgStore(pool)
	default:
		log.Warn("using in-memory store, data is lost on restart")
		store = repository.NewMemoryStore(clk)
	}

	// подтверждения рекламы: redis, чтобы callback и запрос могли попасть на разные инстансы
	var redisClient *redis.Client
	var adProvider interface {
		ads.Provider
		ads.Confirmer
	}
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed", "addr", cfg.RedisAddr, "error", err)
		}
		adProvider = ads.NewRedisProvider(redisClient, cfg.AdConfirmationTTL)
	} else {
		log.Warn("REDIS_ADDR not set: ad confirmations and rate limits are per-process")
		adProvider = ads.NewMemoryProvider(clk, cfg.AdConfirmationTTL)
	}

	wheel := game.NewWheel()
	rewardsService := service.NewRewardsService(store, adProvider, wheel, clk, service.RewardsConfig{
		Tiers:     cfg.WithdrawTiers,
		Methods:   cfg.WithdrawMethods,
		TaskLinks: cfg.TaskLinks,
		TxTimeout: cfg.TxTimeout,
	})
	adminService := service.NewAdminService(store, cfg.TxTimeout)

	// live обновления записи во все вкладки пользователя
	hub := ws.NewHub()
	pushUser := func(u domain.User) {
		hub.SendToUser(u.ID, ws.Message{Type: "user", Data: rewardsService.View(u)})
	}
	rewardsService.SetCommitCallback(pushUser)
	adminService.SetCommitCallback(pushUser)

	// админ бот запускается до HTTP сервера, чтобы callback был установлен
	var adminBot *bot.AdminBot
	if cfg.AdminBotEnabled && len(cfg.AdminTelegramIDs) > 0 {
		adminBot, err = bot.NewAdminBot(cfg.BotToken, adminService, cfg.AdminTelegramIDs)
		if err != nil {
			log.Error("failed to start admin bot", "error", err)
		} else {
			go adminBot.Start()
			log.Info("admin bot started", "admin_ids", cfg.AdminTelegramIDs)

			rewardsService.SetWithdrawalNotifyCallback(func(w domain.Withdrawal) {
				go adminBot.NotifyAdminsNewWithdrawal(w)
			})
			adminService.SetReviewCallback(func(w domain.Withdrawal) {
				go adminBot.NotifyUserReviewed(w)
			})
		}
	}

	sweeper, err := service.NewResetSweeper(store, cfg.DailyResetSweep, clk)
	if err != nil {
		logger.Fatal("reset sweeper", "error", err)
	}
	sweeper.Start()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handlers.Handler{
		Rewards:          rewardsService,
		Sessions:         service.NewSessionIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Confirmer:        adProvider,
		Wheel:            wheel,
		Hub:              hub,
		BotToken:         cfg.BotToken,
		BotUsername:      cfg.BotUsername,
		WebAppShortName:  cfg.WebAppShortName,
		AdCallbackSecret: cfg.AdCallbackSecret,
		AllowOrigins:     cfg.AllowOrigins,
		Version:          Version,
		Now:              clk.Now,
	}
	r := httpServer.NewRouter(h, middleware.NewRateLimiter(redisClient, cfg.RateLimitPerMinute))

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	if adminBot != nil {
		adminBot.Stop()
	}
	if err := sweeper.Stop(); err != nil {
		log.Warn("reset sweeper stop", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
