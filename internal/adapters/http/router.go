package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/adapters/signal"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/config"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/core"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

// SetupRouter wires the signaling endpoint plus the thin read-only
// companion API (health check, room listing, per-room capabilities).
func SetupRouter(ctx context.Context, cfg *config.Config, registry *core.Registry, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.List())
	})

	api.GET("/rooms/:room/capabilities", func(c *gin.Context) {
		roomID, err := domain.ParseRoomID(c.Param("room"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		room, ok := registry.Get(roomID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, room.Router().Capabilities())
	})

	api.GET("/ws/call", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}
