package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"slurm-avail/internal/pkg/availability"
)

const namespace = "slurm_avail"

// Reporter 获取某集群当前的可用资源报告.
type Reporter interface {
	Report(ctx context.Context, cluster string) (availability.Report, error)
}

// Collector 每次抓取时为每个集群生成一次报告, 导出节点与集群的可用资源.
type Collector struct {
	reporter Reporter
	clusters []string
	timeout  time.Duration
	logger   *slog.Logger

	nodeCPUsFree    *prometheus.Desc
	nodeGPUsFree    *prometheus.Desc
	nodeEligible    *prometheus.Desc
	clusterGPUsFree *prometheus.Desc
	parseFailures   *prometheus.Desc
	scrapeSuccess   *prometheus.Desc
}

// NewCollector 创建 Collector. timeout 为单个集群生成报告的超时时间, 0 表示不限制.
func NewCollector(reporter Reporter, clusters []string, timeout time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		reporter: reporter,
		clusters: clusters,
		timeout:  timeout,
		logger:   logger,
		nodeCPUsFree: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "cpus_free"),
			"Unallocated CPUs per node",
			[]string{"cluster", "node"}, nil,
		),
		nodeGPUsFree: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "gpus_free"),
			"Unallocated GPUs per node and GPU type",
			[]string{"cluster", "node", "gpu"}, nil,
		),
		nodeEligible: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "eligible"),
			"Whether the node's free GPUs count towards the cluster aggregate (1) or not (0)",
			[]string{"cluster", "node"}, nil,
		),
		clusterGPUsFree: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cluster", "gpus_free"),
			"Free GPUs on schedulable nodes per GPU type",
			[]string{"cluster", "gpu"}, nil,
		),
		parseFailures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "parse_failures"),
			"Nodes whose records could not be parsed",
			[]string{"cluster"}, nil,
		),
		scrapeSuccess: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scrape_success"),
			"Whether the node snapshot of the cluster was collected successfully",
			[]string{"cluster"}, nil,
		),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodeCPUsFree
	ch <- c.nodeGPUsFree
	ch <- c.nodeEligible
	ch <- c.clusterGPUsFree
	ch <- c.parseFailures
	ch <- c.scrapeSuccess
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, cluster := range c.clusters {
		c.collectCluster(ch, cluster)
	}
}

func (c *Collector) collectCluster(ch chan<- prometheus.Metric, cluster string) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	rp, err := c.reporter.Report(ctx, cluster)
	if err != nil {
		c.logger.Error("unable to collect node availability", "cluster", cluster, "err", err)
		ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 0, cluster)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 1, cluster)
	ch <- prometheus.MustNewConstMetric(c.parseFailures, prometheus.GaugeValue, float64(len(rp.Failures)), cluster)

	// 同名节点只导出第一条, 重复的标签组合会导致抓取失败.
	seen := make(map[string]struct{}, len(rp.Nodes))
	for _, m := range rp.Nodes {
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		ch <- prometheus.MustNewConstMetric(c.nodeCPUsFree, prometheus.GaugeValue, float64(m.CPUFree), cluster, m.Name)
		ch <- prometheus.MustNewConstMetric(c.nodeEligible, prometheus.GaugeValue, boolToFloat(m.Eligible), cluster, m.Name)
		for _, g := range m.GPUs {
			ch <- prometheus.MustNewConstMetric(c.nodeGPUsFree, prometheus.GaugeValue, float64(g.Free()), cluster, m.Name, g.Label)
		}
	}
	if rp.GPUs == nil {
		return
	}
	for _, e := range rp.GPUs.Entries(nil) {
		ch <- prometheus.MustNewConstMetric(c.clusterGPUsFree, prometheus.GaugeValue, float64(e.Free), cluster, e.Label)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
