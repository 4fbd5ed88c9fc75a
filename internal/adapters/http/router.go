package http

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/adapters/signal"
	"github.com/emberchat/broadcast/internal/app/orch"
	"github.com/emberchat/broadcast/internal/config"
)

// IdentityMiddleware resolves the acting user. The surrounding product
// authenticates upstream and stores id/role in the session; anonymous
// visitors get a durable guest token so signaling still works.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		userID, _ := sess.Get("uid").(string)
		role, _ := sess.Get("role").(string)

		if userID == "" {
			token, _ := c.Cookie("ct")
			if token == "" {
				token = uuid.NewString()
				c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
			}
			userID = token
			role = "guest"
		}

		c.Set("user_id", userID)
		c.Set("user_role", role)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
		r.Use(cors.New(corsCfg))
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("BroadcastSessions", store))
	r.Use(IdentityMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	h := &Handlers{Orch: o, Cfg: cfg}

	rooms := r.Group("/rooms/:roomID")
	rooms.GET("/broadcast-info", h.BroadcastInfo)
	rooms.POST("/request-mic", h.RequestMic)
	rooms.POST("/approve-mic/:userID", h.ApproveMic)
	rooms.POST("/reject-mic/:userID", h.RejectMic)
	rooms.POST("/remove-speaker/:userID", h.RemoveSpeaker)
	rooms.POST("/assign-host/:userID", h.AssignHost)
	rooms.DELETE("/broadcast", h.DisableBroadcast)

	api := r.Group("/api")
	api.GET("/rooms", h.ListRooms)
	api.GET("/ice-servers", h.ICEServers)
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("user", c.GetString("user_id")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
