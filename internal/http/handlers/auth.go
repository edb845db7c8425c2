package handlers

import (
	"errors"
	"net/http"

	"rewards_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// AuthTelegram проверяет init_data, создает или обновляет пользователя и выдает токен сессии
func (h *Handler) AuthTelegram(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_data is required"})
		return
	}

	identity, err := service.ParseTelegramIdentity(req.InitData, h.BotToken, h.now())
	if err != nil {
		msg := "invalid init data"
		if errors.Is(err, service.ErrInitDataExpired) {
			msg = "init data expired"
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}

	res, err := h.Rewards.Bootstrap(c.Request.Context(), *identity)
	if err != nil {
		respond(c, nil, err)
		return
	}

	token, exp, err := h.Sessions.Issue(identity.Profile.ID)
	if err != nil {
		respond(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":          token,
		"expires_at":     exp,
		"created":        res.Created,
		"referral_error": res.ReferralError,
		"user":           res.User,
		"eligibility":    res.Eligibility,
	})
}

// Me - текущая запись, дневной сброс сохраняется если нужен
func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Rewards.Refresh(c.Request.Context(), userID)
	respond(c, res, err)
}

// Eligibility - что доступно прямо сейчас, без записи
func (h *Handler) Eligibility(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Rewards.GetEligibility(c.Request.Context(), userID)
	respond(c, res, err)
}
