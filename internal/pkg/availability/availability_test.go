package availability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slurm-avail/internal/pkg/common/slurm"
	"slurm-avail/internal/pkg/gres"
	"slurm-avail/internal/pkg/node"
)

var aliases = gres.NewAliases(map[string]string{"a100-pcie-40gb": "a100_40G"})

func record(name, state string, cpuTotal, cpuAlloc int64, gresSpec, used string) node.Record {
	return node.Record{
		Name:         name,
		State:        slurm.ParseStateSet(state),
		CPUTotal:     cpuTotal,
		CPUAllocated: cpuAlloc,
		MemTotalMB:   256000,
		MemAllocMB:   64000,
		MemFreeMB:    200000,
		CPULoad:      1.5,
		Gres:         gresSpec,
		GresUsed:     used,
	}
}

func raw(name string, fields map[string]string) node.RawRecord {
	return node.RawRecord{Name: name, Fields: fields}
}

func rawFields(state, cpus, alloc, gresSpec, used string) map[string]string {
	return map[string]string{
		node.FieldState:    state,
		node.FieldCPUTotal: cpus,
		node.FieldCPUAlloc: alloc,
		node.FieldMemTotal: "256000",
		node.FieldMemAlloc: "64000",
		node.FieldMemFree:  "200000",
		node.FieldCPULoad:  "0.50",
		node.FieldGres:     gresSpec,
		node.FieldGresUsed: used,
	}
}

func TestMetrics_GPUAvailability(t *testing.T) {
	m := Metrics(record("A", "MIXED", 32, 8, "gpu:a100-pcie-40gb:4", "gres/gpu=1,gpu:a100-pcie-40gb:1"), aliases)

	require.Len(t, m.GPUs, 1)
	assert.Equal(t, "a100_40G", m.GPUs[0].Label)
	assert.Equal(t, int64(3), m.GPUs[0].Free())
	assert.Equal(t, int64(4), m.GPUs[0].Total)
	assert.Equal(t, int64(24), m.CPUFree)
	assert.True(t, m.Eligible)
	assert.True(t, m.HasGPUs())
}

func TestMetrics_Memory(t *testing.T) {
	m := Metrics(record("A", "IDLE", 8, 0, "", ""), aliases)

	assert.InDelta(t, 256.0, m.MemTotalGB, 1e-9)
	assert.InDelta(t, 192.0, m.MemFreeGB, 1e-9)
	// (256 - 200) / 64 = 0.875
	assert.InDelta(t, 0.875, m.MemUsedRatio, 1e-6)
}

func TestMetrics_NoClampOnCPU(t *testing.T) {
	m := Metrics(record("A", "ALLOCATED", 8, 10, "", ""), aliases)
	assert.Equal(t, int64(-2), m.CPUFree)
	assert.False(t, m.Eligible)
}

func TestMemUsedRatio(t *testing.T) {
	// 比例超过 1 时显示为 0.
	assert.Equal(t, 0.0, MemUsedRatio(256000, 10000, 100000))
	// 未分配内存.
	assert.Equal(t, 0.0, MemUsedRatio(256000, 0, 200000))
	// 空闲内存大于总内存.
	assert.Equal(t, 0.0, MemUsedRatio(1000, 500, 2000))
	assert.InDelta(t, 0.5, MemUsedRatio(100000, 50000, 75000), 1e-6)
}

func TestMemUsedRatio_Range(t *testing.T) {
	values := []int64{0, 1, 999, 1000, 4096, 64000, 256000, 1 << 20}
	for _, total := range values {
		for _, alloc := range values {
			for _, free := range values {
				r := MemUsedRatio(total, alloc, free)
				assert.False(t, math.IsNaN(r))
				assert.GreaterOrEqual(t, r, 0.0)
				assert.LessOrEqual(t, r, 1.0)
			}
		}
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		state   string
		cpuFree int64
		want    bool
	}{
		{"IDLE", 8, true},
		{"MIXED", 1, true},
		{"ALLOCATED", 1, true},
		{"IDLE", 0, false},
		{"MIXED", -1, false},
		{"IDLE+RESERVED", 8, false},
		{"MIXED+PLANNED", 8, false},
		{"IDLE-", 8, false},
		{"DOWN", 8, false},
		{"FUTURE", 8, false},
		{"MIXED+DRAIN", 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.cpuFree, slurm.ParseStateSet(tt.state)))
		})
	}
}

func TestCompute_AggregatesEligibleNodes(t *testing.T) {
	records := []node.Record{
		record("n1", "IDLE", 32, 0, "gpu:a100-pcie-40gb:4", "gpu:a100-pcie-40gb:1"),
		record("n2", "MIXED", 32, 8, "gpu:a100-pcie-40gb:4", "gpu:a100-pcie-40gb:2"),
	}

	nodes, agg := Compute(records, aliases)

	require.Len(t, nodes, 2)
	assert.Equal(t, int64(5), agg.Get("a100_40G"))
	assert.Equal(t, []string{"a100_40G"}, agg.Labels())
}

func TestCompute_ExcludesReservedAndPlanned(t *testing.T) {
	records := []node.Record{
		record("n1", "IDLE+RESERVED", 32, 0, "gpu:a100-pcie-40gb:4", ""),
		record("n2", "MIXED+PLANNED", 32, 0, "gpu:a100-pcie-40gb:4", ""),
		record("n3", "IDLE", 32, 32, "gpu:a100-pcie-40gb:4", ""),
		record("n4", "MIXED", 32, 4, "gpu:a100-pcie-40gb:4,gpu:v100:2", "gpu:v100:2"),
	}

	nodes, agg := Compute(records, aliases)

	require.Len(t, nodes, 4)
	assert.Equal(t, int64(4), agg.Get("a100_40G"))
	assert.Equal(t, int64(0), agg.Get("v100"))
	assert.Equal(t, []string{"a100_40G", "v100"}, agg.Labels())
	assert.Equal(t, 2, agg.Len())
}

func TestCompute_NodeWithoutGPUs(t *testing.T) {
	nodes, agg := Compute([]node.Record{record("B", "IDLE", 8, 0, "", "")}, aliases)

	require.Len(t, nodes, 1)
	assert.Equal(t, int64(8), nodes[0].CPUFree)
	assert.Equal(t, int64(8), nodes[0].CPUTotal)
	assert.Empty(t, nodes[0].GPUs)
	assert.False(t, nodes[0].HasGPUs())
	assert.Zero(t, agg.Len())
}

func TestAggregate_Entries(t *testing.T) {
	a := gres.NewAliases(map[string]string{"nvidia_a100-pcie-40gb": "a100_40G"})
	agg := NewAggregate()
	agg.Add("a100_40G", 3)
	agg.Add("h100", 2)
	agg.Add("a100_40G", 1)

	assert.Equal(t, []Entry{
		{Label: "a100_40G", Raw: "nvidia_a100-pcie-40gb", Free: 4},
		{Label: "h100", Free: 2},
	}, agg.Entries(a))
	assert.Equal(t, []Entry{
		{Label: "a100_40G", Free: 4},
		{Label: "h100", Free: 2},
	}, agg.Entries(nil))
}

func TestBuild_Scenarios(t *testing.T) {
	c := rawFields("IDLE", "16", "0", "gpu:a100-pcie-40gb:2", "")
	delete(c, node.FieldCPUTotal)

	raws := []node.RawRecord{
		raw("A", rawFields("MIXED", "32", "8", "gpu:a100-pcie-40gb:4", "gpu:a100-pcie-40gb:1(IDX:0)")),
		raw("B", rawFields("IDLE", "8", "0", "", "")),
		raw("C", c),
		raw("D", rawFields("IDLE", "32", "0", "gpu:a100-pcie-40gb:2", "")),
	}

	rp := Build(raws, aliases)

	require.Len(t, rp.Nodes, 3)
	assert.Equal(t, []string{"C"}, rp.FailedNames())
	assert.Equal(t, len(raws), len(rp.Nodes)+len(rp.Failures))

	a := rp.Nodes[0]
	require.Len(t, a.GPUs, 1)
	assert.Equal(t, gres.TypeCount{Label: "a100_40G", Raw: "a100-pcie-40gb", Total: 4, Allocated: 1}, a.GPUs[0])

	b := rp.Nodes[1]
	assert.Equal(t, int64(8), b.CPUFree)
	assert.Empty(t, b.GPUs)

	assert.Equal(t, int64(5), rp.GPUs.Get("a100_40G"))
}

func TestBuild_Empty(t *testing.T) {
	rp := Build(nil, aliases)
	assert.Empty(t, rp.Nodes)
	assert.Empty(t, rp.Failures)
	assert.Zero(t, rp.GPUs.Len())
}
