package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rewards_webapp/internal/ads"
	"rewards_webapp/internal/logger"

	"github.com/gin-gonic/gin"
)

// AdCallback - серверный callback рекламной сети о досмотренной рекламе.
// GET /api/ads/callback?user_id=..&ts=..&sig=..
func (h *Handler) AdCallback(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	ts, err := strconv.ParseInt(c.Query("ts"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ts"})
		return
	}

	log := logger.WithContext(c.Request.Context()).With("user_id", userID)
	if err := ads.VerifyCallback(h.AdCallbackSecret, userID, ts, c.Query("sig"), h.now()); err != nil {
		if errors.Is(err, ads.ErrCallbackMissing) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "callback disabled"})
			return
		}
		log.Warn("ad callback rejected", "error", err)
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	if err := h.Confirmer.ConfirmCallback(c.Request.Context(), userID, ts); err != nil {
		if errors.Is(err, ads.ErrDuplicateCallback) {
			log.Warn("ad callback replayed", "ts", ts)
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Error("ad confirmation not stored", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "confirmation failed"})
		return
	}

	log.Debug("ad confirmed")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
