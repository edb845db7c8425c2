package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rewards_webapp/internal/rewards"

	"github.com/joho/godotenv"
)

// Драйверы хранилища
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultTaskLinks - каналы, на которые ведут четыре ежедневных задания
var DefaultTaskLinks = []string{
	"https://t.me/AGuttuGhosh",
	"https://t.me/AGuttuGhoshChat",
	"https://t.me/ShopEarnHub4102h",
	"https://t.me/earningsceret",
}

type Config struct {
	AppPort     string
	Version     string
	LogLevel    string
	LogFormat   string
	StoreDriver string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BotToken         string
	BotUsername      string
	WebAppShortName  string
	JWTSecret        string
	JWTTTL           time.Duration
	AdminBotEnabled  bool
	AdminTelegramIDs []int64

	AdCallbackSecret  string
	AdConfirmationTTL time.Duration

	WithdrawTiers   rewards.Tiers
	WithdrawMethods []string
	TaskLinks       []string

	TxTimeout          time.Duration
	RateLimitPerMinute int
	DailyResetSweep    string // cron, UTC
	AllowOrigins       []string
}

// Load читает .env (если есть) и окружение
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "8080"),
		Version:          getEnv("APP_VERSION", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		StoreDriver:      getEnv("STORE_DRIVER", StorePostgres),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		BotToken:         os.Getenv("BOT_TOKEN"),
		BotUsername:      os.Getenv("BOT_USERNAME"),
		WebAppShortName:  getEnv("WEBAPP_SHORT_NAME", "app"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AdCallbackSecret: os.Getenv("AD_CALLBACK_SECRET"),
		DailyResetSweep:  getEnv("DAILY_RESET_SWEEP", "5 0 * * *"),
		AllowOrigins:     splitList(os.Getenv("ALLOW_ORIGINS")),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AdConfirmationTTL, err = getDuration("AD_CONFIRMATION_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TxTimeout, err = getDuration("TX_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.AdminBotEnabled, err = getBool("ADMIN_BOT_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.AdminTelegramIDs, err = ParseIDs(os.Getenv("ADMIN_TELEGRAM_IDS")); err != nil {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_IDS: %w", err)
	}
	if cfg.WithdrawTiers, err = rewards.ParseTiers(getEnv("WITHDRAW_TIERS", rewards.DefaultTiersConfig)); err != nil {
		return nil, fmt.Errorf("WITHDRAW_TIERS: %w", err)
	}

	cfg.WithdrawMethods = splitList(os.Getenv("WITHDRAW_METHODS"))
	if len(cfg.WithdrawMethods) == 0 {
		cfg.WithdrawMethods = rewards.DefaultMethods
	}
	cfg.TaskLinks = splitList(os.Getenv("TASK_LINKS"))
	if len(cfg.TaskLinks) == 0 {
		cfg.TaskLinks = DefaultTaskLinks
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL обязателен для STORE_DRIVER=postgres")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("неизвестный STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET обязателен")
	}
	if len(c.TaskLinks) != 4 {
		return fmt.Errorf("TASK_LINKS: нужно ровно 4 ссылки, получено %d", len(c.TaskLinks))
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT должен быть положительным")
	}
	if c.AdminBotEnabled && c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN обязателен для админ бота")
	}
	return nil
}

// ParseIDs разбирает список telegram id через запятую
func ParseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("неверный id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
