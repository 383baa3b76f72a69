package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency the readiness check can ping
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController serves liveness and readiness checks
type HealthController struct {
	deps    map[string]Pinger
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHealthController creates a new HealthController
func NewHealthController(deps map[string]Pinger, logger zerolog.Logger) *HealthController {
	return &HealthController{deps: deps, timeout: 2 * time.Second, logger: logger}
}

// Live reports that the process is serving
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (c *HealthController) Live(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready pings every dependency concurrently
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/ready [get]
func (c *HealthController) Ready(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]string, len(c.deps))
	var g errgroup.Group
	for name, dep := range c.deps {
		g.Go(func() error {
			err := dep.Ping(pingCtx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = "down"
				c.logger.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
				return err
			}
			checks[name] = "up"
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
