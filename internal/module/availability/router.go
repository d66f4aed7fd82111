package availability

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

type Router struct {
	svc    *Service
	logger *slog.Logger
}

func NewRouter(svc *Service, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		svc:    svc,
		logger: logger,
	}
}

func (rt *Router) Register(r *gin.Engine) {
	v1 := r.Group("/api/v1/")
	{
		g := v1.Group("/:cluster/slurm/availability")
		g.GET("/nodes", rt.HandlerGetNodes)   // GET /api/v1/{cluster}/slurm/availability/nodes
		g.GET("/gpus", rt.HandlerGetGPUs)     // GET /api/v1/{cluster}/slurm/availability/gpus
		g.GET("/failed", rt.HandlerGetFailed) // GET /api/v1/{cluster}/slurm/availability/failed
	}
}
