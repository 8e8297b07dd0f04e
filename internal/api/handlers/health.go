package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
)

type HealthHandler struct {
	db    *database.DB
	cache *services.CacheService
}

func NewHealthHandler(db *database.DB, cache *services.CacheService) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// GetHealth is the liveness probe. Database reachability decides the
// status code; the cache flag is informational only.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"

	sqlDB, err := h.db.DB.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "unreachable"
	}

	c.JSON(status, gin.H{
		"status":   dbStatus,
		"database": dbStatus,
		"cache":    h.cache.Enabled(),
		"time":     time.Now().UTC(),
	})
}
