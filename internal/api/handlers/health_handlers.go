package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dbank-service/dbank_service/internal/infrastructure/cache"
	"github.com/dbank-service/dbank_service/internal/infrastructure/database"
	"github.com/dbank-service/dbank_service/pkg/logger"
)

// HealthHandlers handles liveness and readiness endpoints
type HealthHandlers struct {
	db     *sql.DB
	redis  cache.RedisClient
	logger *logger.Logger
}

// NewHealthHandlers creates new health handlers
func NewHealthHandlers(db *sql.DB, redis cache.RedisClient, logger *logger.Logger) *HealthHandlers {
	return &HealthHandlers{db: db, redis: redis, logger: logger}
}

// Health handles GET /health
func (h *HealthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /health/ready and checks backing services
func (h *HealthHandlers) Readiness(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		h.logger.Error("Database health check failed", "error", err)
		checks["database"] = "unhealthy"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
			checks["redis"] = "unhealthy"
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": checks})
}
