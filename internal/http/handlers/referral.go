package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const referralListLimit = 100

type ApplyReferralRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyReferralCode применяет чужой код, бонус получают оба
func (h *Handler) ApplyReferralCode(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req ApplyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	res, err := h.Rewards.PerformReferral(c.Request.Context(), userID, req.Code)
	respond(c, res, err)
}

// GetReferrals - свой код, ссылка для шаринга и список приглашенных
func (h *Handler) GetReferrals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	res, err := h.Rewards.GetEligibility(ctx, userID)
	if err != nil {
		respond(c, nil, err)
		return
	}

	referred, err := h.Rewards.ListReferrals(ctx, userID, referralListLimit)
	if err != nil {
		respond(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":      res.User.ReferralCode,
		"link":      h.referralLink(res.User.ReferralCode),
		"count":     res.User.ReferralsCount,
		"used_code": res.User.ReferralCodeUsed,
		"referrals": referred,
	})
}

// https://t.me/bot_username/webapp_short_name?startapp=ref_CODE
// открывает веб аппку сразу
func (h *Handler) referralLink(code string) string {
	if h.BotUsername == "" {
		return ""
	}
	return "https://t.me/" + h.BotUsername + "/" + h.WebAppShortName + "?startapp=ref_" + code
}
