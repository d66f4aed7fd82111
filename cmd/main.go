package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"

	"slurm-avail/internal/app/router"
	"slurm-avail/internal/module/availability"
	core "slurm-avail/internal/pkg/availability"
	"slurm-avail/internal/pkg/client/postgres"
	"slurm-avail/internal/pkg/log"
	"slurm-avail/internal/pkg/metrics"
	"slurm-avail/internal/pkg/options"
	"slurm-avail/internal/pkg/report"
	"slurm-avail/internal/pkg/source"
)

const appName = "slurm-avail"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 解析参数并执行子命令, 返回进程退出码: 参数错误为 2, 无法获取节点快照或服务失败为 1.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o := &options.Options{}
	app := kingpin.New(filepath.Base(os.Args[0]), "Slurm node CPU/memory/GPU availability reporter.")
	app.HelpFlag.Short('h')
	app.UsageWriter(stdout).ErrorWriter(stderr)
	cmds := o.AddFlags(app)
	// Cross-flag validation
	app.PreAction(func(*kingpin.ParseContext) error {
		return o.Validate()
	})
	app.Version(version.Print(appName))

	cmd, err := app.Parse(args)
	if err != nil {
		fmt.Fprintln(stderr, fmt.Errorf("failed to parse commandline arguments: %w", err))
		app.Usage(args)
		return 2
	}
	logger, logClose, err := log.NewLogger(o.Log, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "unable to create logger: %v\n", err)
		return 2
	}
	defer logClose()

	switch cmd {
	case cmds.Report.FullCommand():
		err = runReport(ctx, o, stdout, logger)
	case cmds.Serve.FullCommand():
		err = runServe(ctx, o, logger)
	}
	if err != nil {
		logger.Error("command failed", "cmd", cmd, "err", err)
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runReport(ctx context.Context, o *options.Options, stdout io.Writer, logger *slog.Logger) error {
	aliases, err := o.Aliases()
	if err != nil {
		return err
	}
	src, err := source.New(o.Source, logger)
	if err != nil {
		return err
	}
	raws, err := src.Fetch(ctx)
	if err != nil {
		return err
	}

	rp := core.Build(raws, aliases)
	for _, f := range rp.Failures {
		logger.Debug("unable to parse node record", "node", f.Name, "err", f.Err)
	}

	ro := o.ReportOptions()
	if o.Report.Format == options.FormatJSON {
		return report.WriteJSON(stdout, report.NewDocument(rp, ro, aliases, time.Now()))
	}
	return report.NewTextPrinter(stdout, ro, aliases).Print(rp)
}

func runServe(ctx context.Context, o *options.Options, logger *slog.Logger) error {
	var (
		registry      availability.Registry
		dbAliases     map[string]string
		knownClusters []string
	)
	if dsn := o.Database.Postgres.DSN; dsn != "" {
		dbctx, dbcancel := context.WithTimeout(ctx, o.Database.Postgres.ConnectTimeout+time.Second)
		defer dbcancel()
		db, err := postgres.New(dbctx, dsn,
			postgres.WithMaxConns(int32(o.Database.Postgres.MaxConns)),
			postgres.WithConnectTimeout(o.Database.Postgres.ConnectTimeout),
			postgres.WithMaxConnIdleTime(5*time.Minute),
		)
		if err != nil {
			return fmt.Errorf("unable to connect to postgres: %w", err)
		}
		defer db.Close()
		registry = db

		if dbAliases, err = db.GetGPUAliases(dbctx); err != nil {
			logger.Warn("unable to load gpu aliases from postgres", "err", err)
		}
		if len(o.Server.MetricsClusters) == 0 {
			if knownClusters, err = db.ListClusters(dbctx); err != nil {
				logger.Warn("unable to list clusters from postgres", "err", err)
			}
		}
	} else {
		specs := o.Server.Clusters
		if len(specs) == 0 {
			// 未指定集群时只提供本地集群
			specs = []string{"local="}
		}
		static, err := availability.ParseClusters(specs)
		if err != nil {
			return err
		}
		registry = static
		for name := range static {
			knownClusters = append(knownClusters, name)
		}
		sort.Strings(knownClusters)
	}

	aliases, err := o.Aliases(dbAliases)
	if err != nil {
		return err
	}
	svc := availability.NewService(registry, source.NewPool(logger), aliases, o.Source, logger)

	metricClusters := o.Server.MetricsClusters
	if len(metricClusters) == 0 {
		metricClusters = knownClusters
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("slurm_avail"),
		metrics.NewCollector(svc, metricClusters, o.Server.MetricsTimeout, logger),
	)

	r := router.New(logger)
	router.Mount(r,
		availability.NewRouter(svc, logger),
		router.NewSystem(reg),
	)
	srv := &http.Server{
		Addr:              o.Server.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", o.Server.ListenAddr), slog.Any("metrics_clusters", metricClusters))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")
	sctx, cancel := context.WithTimeout(context.Background(), o.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	logger.Info("server exiting")
	return nil
}
