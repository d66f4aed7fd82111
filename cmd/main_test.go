package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshot = `NodeName=gpu001 CPUAlloc=16 CPUTot=64 CPULoad=3.05 Gres=gpu:nvidia_a100-pcie-40gb:4(S:0-1) RealMemory=512000 AllocMem=128000 FreeMem=300000 State=MIXED AllocTRES=cpu=16,gres/gpu:nvidia_a100-pcie-40gb=1
NodeName=gpu002 CPUAlloc=64 CPUTot=64 CPULoad=60.00 Gres=gpu:nvidia_geforce_rtx_3090:2 RealMemory=256000 AllocMem=256000 FreeMem=10000 State=ALLOCATED AllocTRES=cpu=64,gres/gpu:nvidia_geforce_rtx_3090=2
NodeName=cpu001 CPUAlloc=0 CPUTot=32 CPULoad=0.01 Gres=(null) RealMemory=128000 AllocMem=0 FreeMem=120000 State=IDLE AllocTRES=
NodeName=bad01 CPUAlloc=0 CPUTot=32 CPULoad=N/A Gres=(null) RealMemory=128000 AllocMem=0 FreeMem=N/A State=DOWN*
`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.txt")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o644))
	return path
}

func TestRunReportText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--source=file", "--source.file=" + writeSnapshot(t),
		"report", "--no-color", "--print-failed-nodes",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "gpu001         cpu_aval:48/64")
	assert.Contains(t, out, "gpu_avail: a100_40G(3/4)")
	assert.Contains(t, out, "cpu001 ")
	// gpu002 没有空闲 CPU, 不计入集群汇总
	assert.Contains(t, out, "\nAggregate Available GPUs:\na100_40G: 3\n")
	assert.NotContains(t, out, "rtx3090_24G: ")
	assert.Contains(t, out, "Nodes failed to be parsed: [bad01]")
}

func TestRunReportJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--source=file", "--source.file=" + writeSnapshot(t),
		"report", "--only-gpus", "--output.format=json", "--show-raw-types",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var doc struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
		GPUs []struct {
			Label string `json:"label"`
			Raw   string `json:"raw"`
			Free  int64  `json:"free"`
		} `json:"gpus"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "gpu001", doc.Nodes[0].Name)
	assert.Equal(t, "gpu002", doc.Nodes[1].Name)
	require.Len(t, doc.GPUs, 1)
	assert.Equal(t, "a100_40G", doc.GPUs[0].Label)
	assert.Equal(t, "nvidia_a100-pcie-40gb", doc.GPUs[0].Raw)
	assert.Equal(t, int64(3), doc.GPUs[0].Free)
}

func TestRunUnavailable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--source=file", "--source.file=" + filepath.Join(t.TempDir(), "missing.txt"),
	}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.True(t, strings.Contains(stderr.String(), "node snapshot unavailable"), stderr.String())
}

func TestRunBadFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"--source=sinfo"}, &stdout, &stderr))
	assert.Equal(t, 2, run(context.Background(), []string{"--source=slurmrest"}, &stdout, &stderr))
}
