package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/medisync/clinicbilling/internal/actorctx"
	"go.uber.org/zap"
)

// Headers set by the auth collaborator in front of this service.
const (
	headerActorRole = "X-Actor-Role"
	headerDoctorID  = "X-Doctor-Id"
)

// ActorMiddleware resolves the caller identity from the trusted headers
// and stores it in the request context. Requests without a valid actor
// are rejected before any handler runs.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := actorctx.ParseRole(c.GetHeader(headerActorRole))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := actorctx.Actor{Role: role}
		if role == actorctx.RoleDoctor {
			doctorID, err := snowflake.ParseString(strings.TrimSpace(c.GetHeader(headerDoctorID)))
			if err != nil || doctorID == 0 {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			actor.DoctorID = doctorID
		}

		c.Request = c.Request.WithContext(actorctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	accessLog := log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		accessLog.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
