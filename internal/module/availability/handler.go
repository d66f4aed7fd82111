package availability

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"slurm-avail/internal/pkg/availability"
	"slurm-avail/internal/pkg/client/postgres"
	"slurm-avail/internal/pkg/common/paging"
	"slurm-avail/internal/pkg/report"
	"slurm-avail/internal/pkg/response"
	"slurm-avail/internal/pkg/source"
)

// HeaderCollectedAt 快照获取时间, RFC3339.
const HeaderCollectedAt = "X-Collected-At"

type NodesQuery struct {
	OnlyGPUs  bool   `form:"only_gpus"`  // 只返回配置了 GPU 的节点
	GPUFilter string `form:"gpu_filter"` // 只返回 GPU 简称包含该子串的节点
}

type FailedNodes []FailedNode
type FailedNode struct {
	Name   string `json:"name"`   // 节点名称
	Reason string `json:"reason"` // 解析失败原因
}

// snapshot 获取快照, 失败时写入错误响应并返回 nil.
func (rt *Router) snapshot(c *gin.Context) *Snapshot {
	cluster := c.Param("cluster")
	if cluster == "" {
		c.JSON(http.StatusBadRequest, response.Errorf("missing cluster in path"))
		return nil
	}

	snap, err := rt.svc.Snapshot(c.Request.Context(), cluster)
	switch {
	case err == nil:
		c.Header(HeaderCollectedAt, snap.CollectedAt.UTC().Format(time.RFC3339))
		return snap
	case errors.Is(err, postgres.ErrClusterNotFound):
		c.JSON(http.StatusNotFound, response.Errorf("%v", err))
	case errors.Is(err, source.ErrUnavailable):
		c.JSON(http.StatusBadGateway, response.Errorf("无法获取节点信息数据: %v", err))
	default:
		rt.logger.Error("unable to get node snapshot", "cluster", cluster, "err", err)
		c.JSON(http.StatusInternalServerError, response.Errorf("%v", err))
	}
	return nil
}

// HandlerGetNodes 获取节点可用资源
// @Summary 获取某集群各节点的可用 CPU, 内存与 GPU
// @Tags 资源管理, 可用资源
// @Produce json
// @Param cluster path string true "集群名称" example("test")
// @Param only_gpus query bool false "只返回配置了 GPU 的节点" default(false)
// @Param gpu_filter query string false "GPU 简称子串" example("a100")
// @Param paging query bool false "是否开启分页" default(false)
// @Param page query int false "页码，从 1 开始（仅当 paging=true 生效）" minimum(1) default(1)
// @Param page_size query int false "每页数量，1-1000（仅当 paging=true 生效）" minimum(1) maximum(1000) default(50)
// @Success 200 {object} response.Response{results=[]availability.NodeMetrics}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/{cluster}/slurm/availability/nodes [get]
func (rt *Router) HandlerGetNodes(c *gin.Context) {
	var q NodesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, response.Errorf("invalid query: %v", err))
		return
	}
	var pq paging.PagingQuery
	if err := c.ShouldBindQuery(&pq); err != nil {
		c.JSON(http.StatusBadRequest, response.Errorf("invalid paging query: %v", err))
		return
	}
	pq.SetDefaults(1, 50, 1000)

	snap := rt.snapshot(c)
	if snap == nil {
		return
	}

	nodes := report.Filter{OnlyGPUs: q.OnlyGPUs, GPUFilter: q.GPUFilter}.Apply(snap.Report.Nodes)
	total := len(nodes)

	var prev, next url.URL
	if pq.Paging {
		prev, next = response.BuildPageLinks(c.Request.URL, pq.Page, pq.PageSize, total)
		nodes = paging.Slice(nodes, pq.Page, pq.PageSize)
	}
	c.JSON(http.StatusOK, response.Response{
		Count:    total,
		Previous: prev,
		Next:     next,
		Results:  nodes,
	})
}

// HandlerGetGPUs 获取集群可用 GPU 汇总
// @Summary 获取某集群各 GPU 型号的可用数量, 只统计可调度节点
// @Tags 资源管理, 可用资源
// @Produce json
// @Param cluster path string true "集群名称" example("test")
// @Success 200 {object} response.Response{results=[]availability.Entry}
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/{cluster}/slurm/availability/gpus [get]
func (rt *Router) HandlerGetGPUs(c *gin.Context) {
	snap := rt.snapshot(c)
	if snap == nil {
		return
	}

	entries := []availability.Entry{}
	if snap.Report.GPUs != nil {
		entries = snap.Report.GPUs.Entries(rt.svc.Aliases())
	}
	c.JSON(http.StatusOK, response.Response{Count: len(entries), Results: entries})
}

// HandlerGetFailed 获取解析失败的节点
// @Summary 获取某集群中记录无法解析的节点及原因
// @Tags 资源管理, 可用资源
// @Produce json
// @Param cluster path string true "集群名称" example("test")
// @Success 200 {object} response.Response{results=FailedNodes}
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/{cluster}/slurm/availability/failed [get]
func (rt *Router) HandlerGetFailed(c *gin.Context) {
	snap := rt.snapshot(c)
	if snap == nil {
		return
	}

	out := make(FailedNodes, 0, len(snap.Report.Failures))
	for _, f := range snap.Report.Failures {
		out = append(out, FailedNode{Name: f.Name, Reason: f.Err.Error()})
	}
	c.JSON(http.StatusOK, response.Response{Count: len(out), Results: out})
}
