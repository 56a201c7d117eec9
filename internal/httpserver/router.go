package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"oculoo/internal/handler"
	"oculoo/pkg/rbac"
)

// Pinger 由 *pgxpool.Pool 实现
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Engine *gin.Engine
}

// NewRouter 注册两个进程共用的健康检查与 metrics 端点
func NewRouter(logger *zap.Logger, db Pinger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{Engine: r}
}

// RegisterMedicationRoutes 注册需要登录的服药上报接口
func (r *Router) RegisterMedicationRoutes(h *handler.MedicationHandler, jwtSecret string) {
	api := r.Engine.Group("/api/v1")
	api.Use(AuthMiddleware(jwtSecret))
	{
		api.POST("/medication-events", RequirePermission(rbac.PermissionCreateMedicationEvent), h.Submit)
	}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
