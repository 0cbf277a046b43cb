package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

// actorKey is the gin context key holding the authenticated actor
const actorKey = "hireflow.actor"

// Middleware authenticates API requests
type Middleware struct {
	manager *JWTManager
	logger  *zap.SugaredLogger
}

// NewMiddleware creates auth middleware around manager
func NewMiddleware(manager *JWTManager, l *zap.SugaredLogger) *Middleware {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return &Middleware{manager: manager, logger: logger.AddActorSymbol(l.Named("auth"))}
}

// RequireActor rejects requests without a valid token and stores the actor for handlers
func (m *Middleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token is required"})
			return
		}
		actor, err := m.manager.ParseActor(token)
		if err != nil {
			m.logger.Debugw("Rejected token",
				logger.FieldPath, c.FullPath(),
				logger.FieldError, err,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), actor.ID))
		c.Next()
	}
}

// ActorFromContext returns the actor stored by RequireActor
func ActorFromContext(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}

// extractToken reads "Authorization: Bearer <token>", falling back to the
// access_token query parameter browsers must use for websocket upgrades
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}
