package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slurm-avail/internal/pkg/source"
)

func parse(t *testing.T, args ...string) (*Options, string, error) {
	t.Helper()
	o := &Options{}
	app := kingpin.New("slurm-avail", "test")
	o.AddFlags(app)
	cmd, err := app.Parse(args)
	return o, cmd, err
}

func TestDefaults(t *testing.T) {
	o, cmd, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, "report", cmd)
	assert.Equal(t, "info", o.Log.Level)
	assert.Equal(t, "stderr", o.Log.Output)
	assert.Equal(t, source.KindScontrol, o.Source.Kind)
	assert.Equal(t, "scontrol", o.Source.ScontrolPath)
	assert.Equal(t, 5*time.Second, o.Source.SlurmrestTimeout)
	assert.Equal(t, FormatText, o.Report.Format)
	require.NoError(t, o.Validate())
}

func TestReportFlags(t *testing.T) {
	o, cmd, err := parse(t, "report", "--only-gpus", "--gpu-filter=a100", "--print-failed-nodes",
		"--show-raw-types", "--output.format=json", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, "report", cmd)

	ro := o.ReportOptions()
	assert.True(t, ro.Filter.OnlyGPUs)
	assert.Equal(t, "a100", ro.Filter.GPUFilter)
	assert.True(t, ro.PrintFailedNodes)
	assert.True(t, ro.ShowRawTypes)
	assert.True(t, ro.NoColor)
	assert.Equal(t, FormatJSON, o.Report.Format)
}

func TestServeFlags(t *testing.T) {
	o, cmd, err := parse(t, "--source=slurmrest", "--slurmrest.addr=ctl:6820", "serve",
		"--server.listen-addr=:9000", "--cluster=a=ctl:6820", "--cluster=b=", "--metrics.cluster=a")
	require.NoError(t, err)
	assert.Equal(t, "serve", cmd)
	assert.Equal(t, ":9000", o.Server.ListenAddr)
	assert.Equal(t, []string{"a=ctl:6820", "b="}, o.Server.Clusters)
	assert.Equal(t, []string{"a"}, o.Server.MetricsClusters)
	assert.Equal(t, 4, o.Database.Postgres.MaxConns)
	require.NoError(t, o.Validate())
}

func TestInvalidFlags(t *testing.T) {
	_, _, err := parse(t, "--source=sinfo")
	assert.Error(t, err)

	_, _, err = parse(t, "report", "--output.format=yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	o, _, err := parse(t, "--log.output=file")
	require.NoError(t, err)
	assert.Error(t, o.Validate())

	o, _, err = parse(t, "--source=file")
	require.NoError(t, err)
	assert.Error(t, o.Validate())

	o, _, err = parse(t, "--source=file", "--source.file=nodes.txt")
	require.NoError(t, err)
	assert.NoError(t, o.Validate())

	o, _, err = parse(t, "--source=slurmrest")
	require.NoError(t, err)
	assert.Error(t, o.Validate())
}

func TestAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  nvidia_h100_80gb_hbm3: h100_80G\n  nvidia_a100-pcie-40gb: A100\n"), 0o644))

	o := &Options{GPU: GPU{AliasesFile: path}}
	aliases, err := o.Aliases(map[string]string{"nvidia_a100-pcie-40gb": "a100_db", "nvidia_l40s": "l40s_48G"})
	require.NoError(t, err)
	assert.Equal(t, "h100_80G", aliases.Resolve("nvidia_h100_80gb_hbm3"))
	assert.Equal(t, "A100", aliases.Resolve("nvidia_a100-pcie-40gb"))
	assert.Equal(t, "l40s_48G", aliases.Resolve("nvidia_l40s"))
	assert.Equal(t, "v100_32G", aliases.Resolve("tesla_v100-sxm2-32gb"))

	o.GPU.AliasesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = o.Aliases()
	assert.Error(t, err)
}
