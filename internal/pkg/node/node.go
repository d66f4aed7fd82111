package node

import (
	"errors"
	"fmt"
	"sort"

	"slurm-avail/internal/pkg/common/slurm"
)

// 规范字段名, 与 slurmrestd/scontrol --json 的字段名保持一致.
// 不同数据源的字段名差异由 source 包在边界处转换.
const (
	FieldState    = "state"
	FieldCPUTotal = "cpus"
	FieldCPUAlloc = "alloc_cpus"
	FieldMemTotal = "real_memory"
	FieldMemAlloc = "alloc_memory"
	FieldMemFree  = "free_mem"
	FieldCPULoad  = "cpu_load"
	FieldGres     = "gres"
	FieldGresUsed = "gres_used"
)

// ErrMalformedRecord 节点原始记录无法规范化. 该错误只影响单个节点.
var ErrMalformedRecord = errors.New("malformed node record")

// RawRecord 单个节点的原始记录.
type RawRecord struct {
	Name   string
	Fields map[string]string
	// Err 数据源解析时发现的结构性错误(例如无法拆分为 key=value 的字段).
	Err error
}

// Record 规范化后的节点资源记录, 构造后不再修改.
type Record struct {
	Name         string         `json:"name"`
	State        slurm.StateSet `json:"state"`
	CPUTotal     int64          `json:"cpu_total"`
	CPUAllocated int64          `json:"cpu_allocated"`
	MemTotalMB   int64          `json:"mem_total_mb"`
	MemAllocMB   int64          `json:"mem_allocated_mb"`
	MemFreeMB    int64          `json:"mem_free_mb"`
	CPULoad      float64        `json:"cpu_load"`
	Gres         string         `json:"gres"`
	GresUsed     string         `json:"gres_used"`
}

// Failure 无法规范化的节点.
type Failure struct {
	Name string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("node %s: %v", f.Name, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result Normalize 的结果, Record 与 Failure 有且仅有一个非空.
type Result struct {
	Record  *Record
	Failure *Failure
}

// OK 规范化成功.
func (r Result) OK() bool { return r.Record != nil }

// Normalize 将原始记录转换为 Record. 任一必需字段缺失或无法解析时, 整个节点被拒绝.
func Normalize(raw RawRecord) Result {
	rec, err := normalize(raw)
	if err != nil {
		return Result{Failure: &Failure{Name: raw.Name, Err: fmt.Errorf("%w: %v", ErrMalformedRecord, err)}}
	}
	return Result{Record: rec}
}

func normalize(raw RawRecord) (*Record, error) {
	if raw.Err != nil {
		return nil, raw.Err
	}
	if raw.Name == "" {
		return nil, errors.New("missing node name")
	}

	state, ok := raw.Fields[FieldState]
	if !ok {
		return nil, fmt.Errorf("missing field %s", FieldState)
	}
	set := slurm.ParseStateSet(state)
	if set.Empty() {
		return nil, fmt.Errorf("empty field %s", FieldState)
	}

	rec := &Record{
		Name:     raw.Name,
		State:    set,
		Gres:     raw.Fields[FieldGres],
		GresUsed: raw.Fields[FieldGresUsed],
	}
	ints := []struct {
		key string
		dst *int64
	}{
		{FieldCPUTotal, &rec.CPUTotal},
		{FieldCPUAlloc, &rec.CPUAllocated},
		{FieldMemTotal, &rec.MemTotalMB},
		{FieldMemAlloc, &rec.MemAllocMB},
		{FieldMemFree, &rec.MemFreeMB},
	}
	for _, f := range ints {
		v, err := field(raw.Fields, f.key)
		if err != nil {
			return nil, err
		}
		n, ok := v.AsInt()
		if !ok {
			return nil, fmt.Errorf("field %s: not an integer", f.key)
		}
		*f.dst = n
	}

	v, err := field(raw.Fields, FieldCPULoad)
	if err != nil {
		return nil, err
	}
	if rec.CPULoad, ok = v.AsFloat(); !ok {
		return nil, fmt.Errorf("field %s: not a number", FieldCPULoad)
	}
	return rec, nil
}

func field(fields map[string]string, key string) (Value, error) {
	raw, ok := fields[key]
	if !ok {
		return Value{}, fmt.Errorf("missing field %s", key)
	}
	return ParseValue(key, raw)
}

// NormalizeAll 逐个规范化节点记录, 单个节点失败不影响其他节点.
func NormalizeAll(raws []RawRecord) []Result {
	results := make([]Result, 0, len(raws))
	for _, raw := range raws {
		results = append(results, Normalize(raw))
	}
	return results
}

// Partition 将结果拆分为成功记录与失败列表, 两者均保持输入顺序.
func Partition(results []Result) ([]Record, []Failure) {
	records := make([]Record, 0, len(results))
	failures := make([]Failure, 0)
	for _, r := range results {
		if r.OK() {
			records = append(records, *r.Record)
			continue
		}
		failures = append(failures, *r.Failure)
	}
	return records, failures
}

// FailedNames 返回失败节点名称, 按字母序排列.
func FailedNames(failures []Failure) []string {
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
