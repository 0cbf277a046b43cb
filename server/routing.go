package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/teranos/hireflow/logger"
)

func (s *Server) setupRouter(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders:    []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.Use(s.auth.RequireActor())
	{
		jobs := api.Group("/jobs")
		{
			jobs.POST("", s.handleCreateJobPost)
			jobs.POST("/bulk/:action", s.handleBulk)
			jobs.GET("/:id", s.handleGetJobPost)
			jobs.GET("/:id/actions", s.handleAvailableActions)
			jobs.POST("/:id/actions/:action", s.handleApply)
			jobs.GET("/:id/history", s.handleHistory)
		}
		api.GET("/employers/:id/history", s.handleEmployerHistory)
		api.GET("/stats", s.handleStats)
		api.GET("/pulse/stats", s.handlePulseStats)
	}

	ws := r.Group("/ws")
	ws.Use(s.auth.RequireActor())
	ws.GET("/events", s.handleEvents)

	return r
}

const requestIDHeader = "X-Request-ID"

// requestLogger tags the request with an id, then logs it at debug, or at
// warn for server errors
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()

		fields := []interface{}{
			logger.FieldMethod, c.Request.Method,
			logger.FieldPath, c.FullPath(),
			logger.FieldStatus, c.Writer.Status(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		}
		log := logger.FromContext(c.Request.Context(), s.logger)
		if c.Writer.Status() >= 500 {
			log.Warnw("Request failed", fields...)
			return
		}
		log.Debugw("Request served", fields...)
	}
}
