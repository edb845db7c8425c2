package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WITHDRAW_TIERS", "")
	t.Setenv("TASK_LINKS", "")
	t.Setenv("TX_TIMEOUT", "")
	t.Setenv("ADMIN_BOT_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Len(t, cfg.TaskLinks, 4)
	require.Equal(t, 5*time.Second, cfg.TxTimeout)
	require.EqualValues(t, 1750, cfg.WithdrawTiers.Min())
	require.Equal(t, "app", cfg.WebAppShortName)
	require.Empty(t, cfg.AllowOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BOT_USERNAME", "rewards_bot")
	t.Setenv("ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ADMIN_BOT_ENABLED", "true")
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_IDS", "1, 2,3")
	t.Setenv("WITHDRAW_TIERS", "500:0.05:once,1000:0.10")
	t.Setenv("WITHDRAW_METHODS", "ton")
	t.Setenv("TX_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, cfg.AdminTelegramIDs)
	require.Len(t, cfg.WithdrawTiers, 2)
	require.Equal(t, []string{"ton"}, cfg.WithdrawMethods)
	require.Equal(t, 2*time.Second, cfg.TxTimeout)
	require.Equal(t, "rewards_bot", cfg.BotUsername)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", StorePostgres)
	t.Setenv("DATABASE_URL", "")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("ADMIN_TELEGRAM_IDS", "abc")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("ADMIN_TELEGRAM_IDS", "")
	t.Setenv("TASK_LINKS", "https://t.me/a,https://t.me/b")
	_, err = Load()
	require.Error(t, err)
}
