package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitefolio/backend/internal/model"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// 헬스체크 엔드포인트
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// 루트 엔드포인트
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "sitefolio auth API server is running",
	})
}

type HealthHandler struct {
	postgres pinger
	redis    pinger
}

func NewHealthHandler(postgres, redis pinger) *HealthHandler {
	return &HealthHandler{postgres: postgres, redis: redis}
}

// Healthz godoc
// @Summary Dependency health
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Failure 503 {object} model.HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := model.HealthResponse{
		Status:   "ok",
		Postgres: pingStatus(ctx, h.postgres),
		Redis:    pingStatus(ctx, h.redis),
	}
	status := http.StatusOK
	if resp.Postgres != "ok" || resp.Redis != "ok" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func pingStatus(ctx context.Context, p pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "ok"
}
