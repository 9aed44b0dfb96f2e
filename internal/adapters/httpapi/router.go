package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/adapters/signal"
	"github.com/avrek/huddle/internal/app"
	"github.com/avrek/huddle/internal/config"
	"github.com/avrek/huddle/internal/domain"
)

// ClientTokenMiddleware gives every browser a stable opaque token so
// reconnects from the same client are correlated in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires the WS signaling endpoint plus a small REST surface
// for operations: room and presence inspection and force-ending a
// stuck call.
func SetupRouter(ctx context.Context, cfg *config.Config, broker *app.Broker, presence *app.Presence, rooms *app.RoomStore) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "httpapi").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
	})

	api.GET("/online", func(c *gin.Context) {
		ids := presence.OnlineIDs()
		c.JSON(http.StatusOK, gin.H{"count": len(ids), "users": ids})
	})

	// POST /api/rooms/end is an operator hatch for a call that lost both
	// ends without a disconnect (e.g. after a broker restart upstream).
	api.POST("/rooms/end", func(c *gin.Context) {
		var req struct {
			RoomID string `json:"roomId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing roomId"})
			return
		}
		room, ok := rooms.Get(domain.RoomID(req.RoomID))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		broker.End(room.ID, room.CallerID, 0)
		c.Status(http.StatusNoContent)
	})

	ctl := signal.NewController(broker, presence)
	ctl.SendBuffer = cfg.SendBuffer
	ctl.WriteTimeout = cfg.WriteTimeout

	r.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "httpapi").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
