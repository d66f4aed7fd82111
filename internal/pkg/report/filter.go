package report

import (
	"strings"

	"slurm-avail/internal/pkg/availability"
)

// Filter 节点显示过滤条件, 只影响显示, 不影响集群汇总.
type Filter struct {
	OnlyGPUs  bool   // 只显示配置了 GPU 的节点
	GPUFilter string // 只显示 GPU 简称包含该子串的节点
}

// Match 节点是否满足过滤条件.
func (f Filter) Match(m availability.NodeMetrics) bool {
	if f.OnlyGPUs && !m.HasGPUs() {
		return false
	}
	if f.GPUFilter == "" {
		return true
	}
	for _, c := range m.GPUs {
		if strings.Contains(c.Label, f.GPUFilter) {
			return true
		}
	}
	return false
}

// Apply 返回满足条件的节点, 保持原有顺序.
func (f Filter) Apply(nodes []availability.NodeMetrics) []availability.NodeMetrics {
	out := make([]availability.NodeMetrics, 0, len(nodes))
	for _, m := range nodes {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}
