package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	resp "account-api/internal/transport/http/response"
)

// Check 依赖探活，返回 nil 表示正常
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 逐个探测依赖；任一失败返回 503
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			_ = c.Error(err)
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}
	if status != http.StatusOK {
		c.JSON(status, resp.ErrorWithData(resp.CodeUnavailable, "degraded", gin.H{"status": "degraded", "deps": deps}))
		return
	}
	c.JSON(status, resp.OK(gin.H{"status": "ok", "deps": deps}))
}
