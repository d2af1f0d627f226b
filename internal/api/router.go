package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Dependencies collects handler dependencies
type Dependencies struct {
	Queries   QueryService
	Graphs    GraphService
	AI        AIService
	Extractor EntityExtractor
	// History is nil when the audit log is disabled
	History HistoryStore
	Limits  Limits

	Prefix         string
	AllowedOrigins []string
	Debug          bool
}

// NewRouter wires the HTTP routes exposed by the backend API
func NewRouter(logger *slog.Logger, deps Dependencies) http.Handler {
	if deps.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	h := NewHandlers(logger, deps)

	router := gin.New()
	router.Use(loggingMiddleware(logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panic", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, failure("internal server error"))
	}))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/", h.index)

	group := router.Group(deps.Prefix)
	group.GET("/ping", h.ping)
	group.GET("/db-test", h.dbTest)
	group.POST("/query", h.query)
	group.GET("/graph-data", h.graphData)
	group.POST("/cypher", h.cypher)
	group.POST("/ai-cypher", h.aiCypher)
	group.GET("/ai-cypher/history", h.aiHistory)

	return router
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		logger.Info("http request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	normalized := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		normalized[origin] = struct{}{}
	}
	_, wildcard := normalized["*"]

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, listed := normalized[origin]
		if origin == "" || (!listed && !wildcard) {
			if c.Request.Method == http.MethodOptions {
				// Reject bare pre-flight if origin is not whitelisted.
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Add("Vary", "Origin")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
