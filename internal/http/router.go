package http

import (
	"rewards_webapp/internal/http/handlers"
	"rewards_webapp/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter собирает gin с общими middleware и всеми маршрутами
func NewRouter(h *handlers.Handler, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestContext(), middleware.CORS(h.AllowOrigins))
	RegisterRoutes(r, h, limiter)
	return r
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, limiter *middleware.RateLimiter) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/config", h.Config)
	api.GET("/ads/callback", h.AdCallback)
	api.POST("/auth/telegram", limiter.Middleware(), h.AuthTelegram)

	authed := api.Group("", middleware.Auth(h.Sessions), limiter.Middleware())
	authed.GET("/me", h.Me)
	authed.GET("/eligibility", h.Eligibility)

	authed.POST("/spin", h.Spin)
	authed.POST("/ad-spin", h.AdSpin)
	authed.POST("/watch-ad", h.WatchAd)

	authed.POST("/tasks/open/:n", h.OpenTask)
	authed.POST("/tasks/claim", h.ClaimTasks)

	authed.POST("/referral", h.ApplyReferralCode)
	authed.GET("/referrals", h.GetReferrals)

	authed.POST("/withdrawals", h.RequestWithdrawal)
	authed.GET("/withdrawals", h.GetWithdrawals)

	authed.GET("/ws", h.Live)
}
