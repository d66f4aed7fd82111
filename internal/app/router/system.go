package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// System 挂载 /metrics 与 /healthz.
type System struct {
	gatherer prometheus.Gatherer
}

func NewSystem(gatherer prometheus.Gatherer) *System {
	return &System{gatherer: gatherer}
}

func (s *System) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}
