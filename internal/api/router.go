package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/falldetect/internal/api/handlers"
	"github.com/your-org/falldetect/internal/api/ws"
	"github.com/your-org/falldetect/internal/auth"
)

type RouterConfig struct {
	APIKey  string
	DB      handlers.FallStore
	Objects handlers.ObjectGetter
	// Diagnostics is set only when detectors keep their diagnostics in the
	// object store. Deleting a camera then also drops its record.
	Diagnostics handlers.ObjectDeleter
	Producer    handlers.ControlPublisher
	Hub         *ws.Hub
	Checks      map[string]handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// Falls
	fallH := handlers.NewFallHandler(cfg.DB, cfg.Objects)
	v1.GET("/cameras/:id/falls", fallH.List)
	v1.GET("/falls/:id", fallH.Get)
	v1.GET("/falls/:id/snapshot", fallH.Snapshot)

	// Cameras
	camH := handlers.NewCameraHandler(cfg.Producer, cfg.Diagnostics)
	v1.POST("/cameras", camH.Create)
	v1.POST("/cameras/:id/start", camH.Start)
	v1.POST("/cameras/:id/stop", camH.Stop)
	v1.DELETE("/cameras/:id", camH.Delete)

	return r
}
