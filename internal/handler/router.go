package handler

import (
	"net/http"

	"webhook-forwarder/internal/handler/api"
	"webhook-forwarder/internal/handler/middleware"
	"webhook-forwarder/internal/infra/repository"
	"webhook-forwarder/internal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

func NewRouter(engine *gin.Engine, cfg config.Config, webhookHandler *api.WebhookHandler, repo *repository.EventRepository) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, webhookHandler, repo)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware.
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(nil, cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(engine *gin.Engine, webhookHandler *api.WebhookHandler, repo *repository.EventRepository) {
	engine.GET("/ping", pong)
	engine.GET("/healthz", healthCheck(repo))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhookGroup := engine.Group("/webhook")
	{
		addRoutes(webhookGroup, []route{
			{Method: http.MethodPost, Path: "/:provider", Handler: webhookHandler.Ingest},
			{Method: http.MethodGet, Path: "/:provider/events", Handler: webhookHandler.Events},
		})
	}
}

func pong(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func healthCheck(repo *repository.EventRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !repo.CheckHealth(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, r.Handler)
		case http.MethodPost:
			g.POST(r.Path, r.Handler)
		default:
			g.Any(r.Path, r.Handler)
		}
	}
}
