package availability

import (
	"slurm-avail/internal/pkg/common/slurm"
	"slurm-avail/internal/pkg/gres"
	"slurm-avail/internal/pkg/node"
)

// epsilon 避免节点未分配内存时除以 0.
const epsilon = 1e-5

const (
	// 节点至少处于其中一个状态才可能被计入集群可用 GPU.
	schedulableStates = slurm.NODE_STATE_IDLE | slurm.NODE_STATE_MIXED | slurm.NODE_STATE_ALLOCATED
	// 预约或被回填调度占用的节点, 名义上的空闲资源实际不可调度.
	unofferableStates = slurm.NODE_STATE_RES | slurm.NODE_STATE_PLANNED
)

// NodeMetrics 单个节点的可用资源.
type NodeMetrics struct {
	Name         string         `json:"name"`
	State        slurm.StateSet `json:"state"`
	CPUTotal     int64          `json:"cpu_total"`
	CPUFree      int64          `json:"cpu_free"`
	CPULoad      float64        `json:"cpu_load"`
	MemTotalGB   float64        `json:"mem_total_gb"`
	MemFreeGB    float64        `json:"mem_free_gb"`
	MemUsedRatio float64        `json:"mem_used_ratio"`
	GPUs         gres.Inventory `json:"gpus"`
	Eligible     bool           `json:"eligible"` // 是否计入集群可用 GPU
}

// HasGPUs 节点至少配置了一种 GPU.
func (m NodeMetrics) HasGPUs() bool { return len(m.GPUs) > 0 }

// Metrics 计算单个节点的可用资源.
func Metrics(rec node.Record, r gres.Resolver) NodeMetrics {
	m := NodeMetrics{
		Name:         rec.Name,
		State:        rec.State,
		CPUTotal:     rec.CPUTotal,
		CPUFree:      rec.CPUTotal - rec.CPUAllocated,
		CPULoad:      rec.CPULoad,
		MemTotalGB:   float64(rec.MemTotalMB) / 1000,
		MemFreeGB:    float64(rec.MemTotalMB-rec.MemAllocMB) / 1000,
		MemUsedRatio: MemUsedRatio(rec.MemTotalMB, rec.MemAllocMB, rec.MemFreeMB),
		GPUs:         gres.Parse(rec.Gres, rec.GresUsed, r),
	}
	m.Eligible = Eligible(m.CPUFree, m.State)
	return m
}

// MemUsedRatio 已分配内存中实际被使用的比例.
// 空闲内存与分配内存的统计口径偶尔不一致, 比例超过 1 时显示为 0; 负数同理.
func MemUsedRatio(totalMB, allocMB, freeMB int64) float64 {
	ratio := (float64(totalMB)/1000 - float64(freeMB)/1000) / (float64(allocMB)/1000 + epsilon)
	if ratio > 1 || ratio < 0 {
		return 0
	}
	return ratio
}

// Eligible 节点的空闲 GPU 是否计入集群可用 GPU:
// 有空闲 CPU, 处于 IDLE/MIXED/ALLOCATED 之一, 且未被预约(RESERVED)或规划(PLANNED).
func Eligible(cpuFree int64, state slurm.StateSet) bool {
	return cpuFree > 0 && state.Any(schedulableStates) && !state.Any(unofferableStates)
}

// Aggregate 集群各 GPU 型号的可用数量, 按型号首次出现的顺序排列.
type Aggregate struct {
	labels []string
	free   map[string]int64
}

// NewAggregate 创建空的 Aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{free: make(map[string]int64)}
}

// Add 累加 label 的可用数量.
func (a *Aggregate) Add(label string, n int64) {
	if _, ok := a.free[label]; !ok {
		a.labels = append(a.labels, label)
	}
	a.free[label] += n
}

// Fold 将节点的空闲 GPU 计入集群汇总, 不满足条件的节点不计入. 返回是否计入.
func (a *Aggregate) Fold(m NodeMetrics) bool {
	if !m.Eligible {
		return false
	}
	for _, c := range m.GPUs {
		a.Add(c.Label, c.Free())
	}
	return true
}

// Get 返回 label 的可用数量.
func (a *Aggregate) Get(label string) int64 {
	return a.free[label]
}

// Labels 返回所有型号简称.
func (a *Aggregate) Labels() []string {
	return append([]string(nil), a.labels...)
}

// Len 型号数量.
func (a *Aggregate) Len() int { return len(a.labels) }

// Entry 单个型号的汇总结果.
type Entry struct {
	Label string `json:"label"`
	Raw   string `json:"raw,omitempty"`
	Free  int64  `json:"free"`
}

// Reverser 由简称反查 slurm 型号.
type Reverser interface {
	Reverse(label string) (string, bool)
}

// Entries 按型号首次出现顺序返回汇总结果. rev 非空时附带 slurm 型号.
func (a *Aggregate) Entries(rev Reverser) []Entry {
	entries := make([]Entry, 0, len(a.labels))
	for _, label := range a.labels {
		e := Entry{Label: label, Free: a.free[label]}
		if rev != nil {
			if raw, ok := rev.Reverse(label); ok {
				e.Raw = raw
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// Compute 计算每个节点的可用资源并汇总集群可用 GPU.
func Compute(records []node.Record, r gres.Resolver) ([]NodeMetrics, *Aggregate) {
	nodes := make([]NodeMetrics, 0, len(records))
	agg := NewAggregate()
	for _, rec := range records {
		m := Metrics(rec, r)
		agg.Fold(m)
		nodes = append(nodes, m)
	}
	return nodes, agg
}

// Report 一次快照的完整计算结果.
type Report struct {
	Nodes    []NodeMetrics
	GPUs     *Aggregate
	Failures []node.Failure
}

// FailedNames 解析失败的节点名称.
func (rp Report) FailedNames() []string {
	return node.FailedNames(rp.Failures)
}

// Build 由原始快照得到完整结果: 规范化, 拆分失败节点, 计算与汇总.
// 不持有任何共享状态, 可并发调用.
func Build(raws []node.RawRecord, r gres.Resolver) Report {
	records, failures := node.Partition(node.NormalizeAll(raws))
	nodes, agg := Compute(records, r)
	return Report{Nodes: nodes, GPUs: agg, Failures: failures}
}
