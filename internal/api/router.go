package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/ft9362/internal/api/handlers"
	"github.com/your-org/ft9362/internal/api/ws"
	"github.com/your-org/ft9362/internal/auth"
	"github.com/your-org/ft9362/internal/capture"
	"github.com/your-org/ft9362/internal/queue"
	"github.com/your-org/ft9362/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
	Matcher  *capture.Matcher
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Fingers (enrolled identities)
	fingerH := handlers.NewFingerHandler(cfg.DB)
	v1.GET("/fingers", fingerH.List)
	v1.GET("/fingers/:id", fingerH.Get)
	v1.DELETE("/fingers/:id", fingerH.Delete)

	// Capture sessions (enroll / verify / identify)
	sessionH := handlers.NewSessionHandler(cfg.DB, cfg.Producer, cfg.Hub, cfg.Matcher)
	v1.POST("/sessions", sessionH.Create)
	v1.GET("/sessions/:id", sessionH.Get)
	v1.POST("/sessions/:id/captures", sessionH.Capture)
	v1.GET("/sessions/:id/matches", sessionH.Matches)

	return r
}
