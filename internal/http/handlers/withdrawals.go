package handlers

import (
	"net/http"

	"rewards_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

const withdrawalListLimit = 50

type WithdrawRequest struct {
	Points  int64  `json:"points" binding:"required,min=1"`
	Method  string `json:"method" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// RequestWithdrawal списывает поинты и создает заявку на ручную выплату
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points, method and address are required"})
		return
	}

	res, err := h.Rewards.PerformWithdrawal(c.Request.Context(), userID, service.WithdrawalRequest{
		Points:  req.Points,
		Method:  req.Method,
		Address: req.Address,
	})
	respond(c, res, err)
}

// GetWithdrawals - история заявок пользователя
func (h *Handler) GetWithdrawals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	list, err := h.Rewards.ListWithdrawals(c.Request.Context(), userID, withdrawalListLimit)
	if err != nil {
		respond(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}
