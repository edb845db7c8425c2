package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"rewards_webapp/internal/ads"
	"rewards_webapp/internal/game"
	"rewards_webapp/internal/http/middleware"
	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/rewards"
	"rewards_webapp/internal/service"
	"rewards_webapp/internal/ws"

	"github.com/gin-gonic/gin"
)

// Handler - все HTTP ручки мини-приложения
type Handler struct {
	Rewards   *service.RewardsService
	Sessions  *service.SessionIssuer
	Confirmer ads.Confirmer
	Wheel     *game.Wheel
	Hub       *ws.Hub

	BotToken         string
	BotUsername      string
	WebAppShortName  string
	AdCallbackSecret string
	AllowOrigins     []string
	Version          string

	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func getUserID(c *gin.Context) (int64, bool) {
	return middleware.GetUserID(c)
}

// коды ошибок для фронта
const (
	codePrecondition = "precondition_failed"
	codeExternal     = "external_dependency"
	codeNotFound     = "not_found"
	codeTimeout      = "timeout"
	codeInternal     = "internal"
)

// errorStatus сопоставляет ошибку действия с HTTP статусом
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rewards.ErrPreconditionFailed):
		return http.StatusBadRequest, codePrecondition
	case errors.Is(err, rewards.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, rewards.ErrExternalDependency):
		return http.StatusServiceUnavailable, codeExternal
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// respond отдает результат действия. При ошибке вместе с ней уходит
// свежая запись, если сервис смог ее перечитать
func respond(c *gin.Context, res *service.ActionResult, err error) {
	if err == nil {
		c.JSON(http.StatusOK, res)
		return
	}

	status, code := errorStatus(err)
	body := gin.H{"error": err.Error(), "code": code}
	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		body["error"] = "internal error"
	}
	if res != nil {
		body["user"] = res.User
		body["eligibility"] = res.Eligibility
	}
	c.JSON(status, body)
}

// Health - для балансировщика
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.Version})
}

// Config - статичные настройки для фронта
func (h *Handler) Config(c *gin.Context) {
	var segments []game.SpinBand
	if h.Wheel != nil {
		segments = h.Wheel.Bands
	}
	c.JSON(http.StatusOK, gin.H{
		"tiers":      h.Rewards.Tiers(),
		"methods":    h.Rewards.Methods(),
		"task_links": h.Rewards.TaskLinks(),
		"wheel":      segments,
		"limits": gin.H{
			"daily_spins":      rewards.DailyFreeSpins,
			"daily_ad_spins":   rewards.DailyAdSpins,
			"daily_ads":        rewards.MaxDailyAds,
			"ad_cooldown_secs": int(rewards.AdCooldown / time.Second),
		},
	})
}
