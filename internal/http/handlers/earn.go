package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Spin - бесплатное вращение колеса
func (h *Handler) Spin(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Rewards.PerformSpin(c.Request.Context(), userID)
	respond(c, res, err)
}

// AdSpin - реклама за два вращения, когда бесплатные закончились
func (h *Handler) AdSpin(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Rewards.PerformAdSpin(c.Request.Context(), userID)
	respond(c, res, err)
}

// WatchAd - реклама за поинты
func (h *Handler) WatchAd(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Rewards.PerformWatchAd(c.Request.Context(), userID)
	respond(c, res, err)
}

// OpenTask отмечает задание (1-4) и возвращает его ссылку
func (h *Handler) OpenTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	task, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task number"})
		return
	}
	res, err := h.Rewards.MarkTaskOpened(c.Request.Context(), userID, task)
	respond(c, res, err)
}

// ClaimTasks - награда за все задания дня
func (h *Handler) ClaimTasks(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Rewards.PerformTaskClaim(c.Request.Context(), userID)
	respond(c, res, err)
}
