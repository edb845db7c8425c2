package handlers

import (
	"net/http"

	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Live открывает websocket, в который приходят обновления записи пользователя
func (h *Handler) Live(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(h.AllowOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range h.AllowOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("ws upgrade failed", "error", err)
		return
	}

	go ws.NewClient(userID, conn, h.Hub).Run()
}
