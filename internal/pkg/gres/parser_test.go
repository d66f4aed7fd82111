package gres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAliases() *Aliases {
	return NewAliases(map[string]string{
		"a100-pcie-40gb":        "a100_40G",
		"nvidia_v100-sxm2-32gb": "v100_32G",
		"tesla_v100-sxm2-32gb":  "v100_32G",
	})
}

func TestParse_SingleType(t *testing.T) {
	inv := Parse("gpu:a100-pcie-40gb:4", "gpu:a100-pcie-40gb:1(IDX:0)", testAliases())

	require.Len(t, inv, 1)
	assert.Equal(t, TypeCount{Label: "a100_40G", Raw: "a100-pcie-40gb", Total: 4, Allocated: 1}, inv[0])
	assert.Equal(t, int64(3), inv[0].Free())
	assert.Equal(t, "a100_40G(3/4)", inv.String())
}

func TestParse_NoGPUTokens(t *testing.T) {
	for _, gres := range []string{"", "(null)", "shard:8", "mps:100,license:matlab:2", "gpu:4(S:0)"} {
		t.Run(gres, func(t *testing.T) {
			inv := Parse(gres, "gpu:a100-pcie-40gb:1", testAliases())
			assert.NotNil(t, inv)
			assert.Empty(t, inv)
		})
	}
}

func TestParse_MultipleTypesKeepOrder(t *testing.T) {
	inv := Parse(
		"gpu:tesla_v100-sxm2-32gb:2(S:0),shard:4,gpu:a100-pcie-40gb:4(S:1)",
		"gpu:a100-pcie-40gb:2(IDX:2-3),gpu:tesla_v100-sxm2-32gb:0(IDX:N/A)",
		testAliases(),
	)

	require.Len(t, inv, 2)
	assert.Equal(t, "v100_32G", inv[0].Label)
	assert.Equal(t, "a100_40G", inv[1].Label)
	assert.Equal(t, int64(2), inv[0].Free())
	assert.Equal(t, int64(2), inv[1].Free())
	assert.Equal(t, int64(6), inv.Total())
	assert.Equal(t, int64(4), inv.Free())
}

func TestParse_AllocTRESForm(t *testing.T) {
	inv := Parse(
		"gpu:a100-pcie-40gb:4",
		"cpu=16,mem=64G,gres/gpu=3,gres/gpu:a100-pcie-40gb=3",
		testAliases(),
	)

	c, ok := inv.Get("a100_40G")
	require.True(t, ok)
	assert.Equal(t, int64(3), c.Allocated)
	assert.Equal(t, int64(1), c.Free())
}

func TestParse_UndeclaredAllocatedTypeDropped(t *testing.T) {
	inv := Parse("gpu:a100-pcie-40gb:4", "gpu:nvidia_v100-sxm2-32gb:2(IDX:0-1)", testAliases())

	require.Len(t, inv, 1)
	_, ok := inv.Get("v100_32G")
	assert.False(t, ok)
	assert.Equal(t, int64(0), inv[0].Allocated)
}

func TestParse_SynonymsCollapse(t *testing.T) {
	inv := Parse(
		"gpu:tesla_v100-sxm2-32gb:2,gpu:nvidia_v100-sxm2-32gb:2",
		"gpu:nvidia_v100-sxm2-32gb:1",
		testAliases(),
	)

	require.Len(t, inv, 1)
	assert.Equal(t, "tesla_v100-sxm2-32gb", inv[0].Raw)
	assert.Equal(t, int64(4), inv[0].Total)
	assert.Equal(t, int64(1), inv[0].Allocated)
}

func TestParse_UnknownTypePassthrough(t *testing.T) {
	inv := Parse("gpu:nvidia_h100_80gb_hbm3:8", "", testAliases())

	require.Len(t, inv, 1)
	assert.Equal(t, "nvidia_h100_80gb_hbm3", inv[0].Label)
	assert.Equal(t, int64(8), inv[0].Free())
}

func TestParse_OverAllocatedNotClamped(t *testing.T) {
	inv := Parse("gpu:a100-pcie-40gb:2", "gpu:a100-pcie-40gb:3", testAliases())

	require.Len(t, inv, 1)
	assert.Equal(t, int64(-1), inv[0].Free())
}

func TestParse_NilResolver(t *testing.T) {
	inv := Parse("gpu:a100-pcie-40gb:2", "", nil)

	require.Len(t, inv, 1)
	assert.Equal(t, "a100-pcie-40gb", inv[0].Label)
}

func TestParse_AllocatedLabelsAlwaysConfigured(t *testing.T) {
	pairs := [][2]string{
		{"gpu:a:1", "gpu:b:1"},
		{"gpu:a:2,gpu:b:2", "gpu:b:1,gpu:c:5"},
		{"", "gpu:a:1"},
		{"gpu:a100-pcie-40gb:1", "gres/gpu:nvidia_v100-sxm2-32gb=1"},
	}
	for _, p := range pairs {
		configured := Parse(p[0], "", testAliases())
		inv := Parse(p[0], p[1], testAliases())
		require.Len(t, inv, len(configured))
		for _, c := range inv {
			if c.Allocated == 0 {
				continue
			}
			_, ok := configured.Get(c.Label)
			assert.True(t, ok, "allocated label %q not configured in %q", c.Label, p[0])
		}
	}
}
