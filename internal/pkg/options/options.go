package options

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"slurm-avail/internal/pkg/gres"
	"slurm-avail/internal/pkg/log"
	"slurm-avail/internal/pkg/report"
	"slurm-avail/internal/pkg/source"
)

// 输出格式
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options 命令行参数.
type Options struct {
	Log      log.Config
	Source   source.Config
	Report   Report
	Server   Server
	Database Database
	GPU      GPU
}

type Report struct {
	OnlyGPUs         bool
	GPUFilter        string
	PrintFailedNodes bool
	ShowRawTypes     bool
	Format           string
	NoColor          bool
}

type Server struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
	Clusters        []string // name=addr[@version]
	MetricsClusters []string // 导出指标的集群, 为空时导出所有命令行指定的集群
	MetricsTimeout  time.Duration
}

type Database struct {
	Postgres Postgres
}

type Postgres struct {
	DSN            string
	MaxConns       int
	ConnectTimeout time.Duration
}

type GPU struct {
	AliasesFile string // GPU 型号简称文件(YAML), 覆盖默认简称
}

// Commands kingpin 子命令.
type Commands struct {
	Report *kingpin.CmdClause
	Serve  *kingpin.CmdClause
}

// AddFlags 在 app 上注册所有参数, 返回子命令.
func (o *Options) AddFlags(app *kingpin.Application) Commands {
	// Logging related flags
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&o.Log.Level, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file].").Default("stderr").EnumVar(&o.Log.Output, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&o.Log.Format, "json", "text")
	app.Flag("log.file", "Log file path when --log.output=file.").PlaceHolder("PATH").StringVar(&o.Log.File)

	app.Flag("gpu.aliases-file", "YAML file with GPU type aliases, merged over the built-in table.").PlaceHolder("PATH").StringVar(&o.GPU.AliasesFile)

	// Snapshot source flags
	app.Flag("source", "Node snapshot source, one of ["+strings.Join(source.Kinds, ", ")+"].").Default(source.KindScontrol).EnumVar(&o.Source.Kind, source.Kinds...)
	app.Flag("source.file", "Saved snapshot (scontrol text or JSON) when --source=file.").PlaceHolder("PATH").StringVar(&o.Source.File)
	app.Flag("scontrol.path", "Path of the scontrol command.").Default(source.DefaultScontrolPath).StringVar(&o.Source.ScontrolPath)
	app.Flag("slurmrest.addr", "slurmrestd address (host:port or URL) when --source=slurmrest.").StringVar(&o.Source.SlurmrestAddr)
	app.Flag("slurmrest.version", "slurmrestd OpenAPI version (e.g. v0.0.40).").StringVar(&o.Source.SlurmrestVersion)
	app.Flag("slurmrest.user", "slurmrestd user name (X-SLURM-USER-NAME).").Envar("SLURM_USER").StringVar(&o.Source.SlurmrestUser)
	app.Flag("slurmrest.token", "slurmrestd JWT token (X-SLURM-USER-TOKEN).").Envar("SLURM_JWT").StringVar(&o.Source.SlurmrestToken)
	app.Flag("slurmrest.timeout", "Timeout for slurmrestd HTTP requests (Go duration, e.g. 5s, 1m).").Default("5s").DurationVar(&o.Source.SlurmrestTimeout)

	cmds := Commands{}
	cmds.Report = app.Command("report", "Print per-node availability and the cluster GPU aggregate.").Default()
	cmds.Report.Flag("only-gpus", "Show only nodes with GPUs.").BoolVar(&o.Report.OnlyGPUs)
	cmds.Report.Flag("gpu-filter", "Show only nodes whose GPU alias contains this substring.").StringVar(&o.Report.GPUFilter)
	cmds.Report.Flag("print-failed-nodes", "Print which nodes failed to be parsed.").BoolVar(&o.Report.PrintFailedNodes)
	cmds.Report.Flag("show-raw-types", "Show the scheduler GPU type next to each alias in the aggregate.").BoolVar(&o.Report.ShowRawTypes)
	cmds.Report.Flag("output.format", "Output format, one of [text, json].").Default(FormatText).EnumVar(&o.Report.Format, FormatText, FormatJSON)
	cmds.Report.Flag("no-color", "Disable colored output.").BoolVar(&o.Report.NoColor)

	cmds.Serve = app.Command("serve", "Serve availability over HTTP and Prometheus metrics.")
	cmds.Serve.Flag("server.listen-addr", "Server listen address (e.g. :8080 or 127.0.0.1:8080)").Default(":8081").StringVar(&o.Server.ListenAddr)
	cmds.Serve.Flag("server.shutdown-timeout", "Graceful shutdown timeout (e.g. 10s)").Default("10s").DurationVar(&o.Server.ShutdownTimeout)
	cmds.Serve.Flag("cluster", "Cluster as name=addr[@version]; empty addr uses the local --source. Repeatable.").StringsVar(&o.Server.Clusters)
	cmds.Serve.Flag("metrics.cluster", "Cluster exported on /metrics. Repeatable, defaults to all known clusters.").StringsVar(&o.Server.MetricsClusters)
	cmds.Serve.Flag("metrics.timeout", "Timeout for building one cluster report during a scrape.").Default("10s").DurationVar(&o.Server.MetricsTimeout)
	cmds.Serve.Flag("postgres.dsn", "PostgreSQL DSN of the cluster registry; --cluster is ignored when set.").Envar("SLURM_AVAIL_POSTGRES_DSN").StringVar(&o.Database.Postgres.DSN)
	cmds.Serve.Flag("postgres.max-conns", "Maximum PostgreSQL connections.").Default("4").IntVar(&o.Database.Postgres.MaxConns)
	cmds.Serve.Flag("postgres.connect-timeout", "PostgreSQL connect timeout.").Default("5s").DurationVar(&o.Database.Postgres.ConnectTimeout)

	return cmds
}

// Validate 交叉检查参数.
func (o *Options) Validate() error {
	if strings.EqualFold(o.Log.Output, "file") && !isValidFilePath(o.Log.File) {
		return fmt.Errorf("invalid --log.file path: %q", o.Log.File)
	}
	switch o.Source.Kind {
	case source.KindFile:
		if !isValidFilePath(o.Source.File) {
			return fmt.Errorf("invalid --source.file path: %q", o.Source.File)
		}
	case source.KindSlurmrest:
		if o.Source.SlurmrestAddr == "" {
			return fmt.Errorf("--slurmrest.addr is required when --source=%s", source.KindSlurmrest)
		}
	}
	return nil
}

// ReportOptions 输出选项.
func (o *Options) ReportOptions() report.Options {
	return report.Options{
		Filter: report.Filter{
			OnlyGPUs:  o.Report.OnlyGPUs,
			GPUFilter: o.Report.GPUFilter,
		},
		PrintFailedNodes: o.Report.PrintFailedNodes,
		ShowRawTypes:     o.Report.ShowRawTypes,
		NoColor:          o.Report.NoColor,
	}
}

// Aliases 依次合并默认简称表, extra 与 --gpu.aliases-file, 后者优先.
func (o *Options) Aliases(extra ...map[string]string) (*gres.Aliases, error) {
	tables := append([]map[string]string{gres.DefaultAliases}, extra...)
	if o.GPU.AliasesFile != "" {
		file, err := gres.LoadAliasFile(o.GPU.AliasesFile)
		if err != nil {
			return nil, err
		}
		tables = append(tables, file)
	}
	return gres.NewAliases(tables...), nil
}

// isValidFilePath performs a light-weight validation for file paths.
// It accepts both absolute and relative paths and rejects empty paths
// or paths that end with a path separator (which usually indicate a directory).
func isValidFilePath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	if strings.HasSuffix(p, string(os.PathSeparator)) {
		return false
	}
	base := filepath.Base(p)
	if base == "." || base == string(os.PathSeparator) {
		return false
	}
	return true
}
