package availability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"slurm-avail/internal/pkg/availability"
	"slurm-avail/internal/pkg/client/postgres"
	"slurm-avail/internal/pkg/gres"
	"slurm-avail/internal/pkg/source"
)

// Registry 由集群名称查询 slurmrestd 访问信息, 由 postgres.Client 与 StaticRegistry 实现.
type Registry interface {
	GetCluster(ctx context.Context, cluster string) (*postgres.Cluster, error)
}

// StaticRegistry 命令行指定的集群列表.
type StaticRegistry map[string]postgres.Cluster

func (r StaticRegistry) GetCluster(_ context.Context, cluster string) (*postgres.Cluster, error) {
	cl, ok := r[cluster]
	if !ok {
		return nil, fmt.Errorf("%w: %s", postgres.ErrClusterNotFound, cluster)
	}
	return &cl, nil
}

// ParseClusters 解析 --cluster 参数, 格式为 name=addr 或 name=addr@version.
// addr 为空时该集群使用本地 scontrol.
func ParseClusters(specs []string) (StaticRegistry, error) {
	reg := make(StaticRegistry, len(specs))
	for _, spec := range specs {
		name, addr, ok := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cluster %q, expected name=addr[@version]", spec)
		}
		if _, dup := reg[name]; dup {
			return nil, fmt.Errorf("duplicate cluster %q", name)
		}
		cl := postgres.Cluster{Name: name}
		cl.Addr, cl.Version, _ = strings.Cut(strings.TrimSpace(addr), "@")
		reg[name] = cl
	}
	return reg, nil
}

// Sources 按集群获取数据源, 由 source.Pool 实现.
type Sources interface {
	FetchOrCreate(cluster string, cfg source.Config) (source.Source, error)
}

// Snapshot 某集群一次快照的计算结果.
type Snapshot struct {
	Cluster     string
	CollectedAt time.Time
	Report      availability.Report
}

// DefaultFetchTimeout 一次共享快照获取的超时时间.
const DefaultFetchTimeout = 30 * time.Second

// Service 获取集群快照并计算可用资源. 同一集群的并发请求只获取一次快照.
type Service struct {
	registry Registry
	sources  Sources
	aliases  *gres.Aliases
	base     source.Config
	logger   *slog.Logger
	g        singleflight.Group
	now      func() time.Time

	fetchTimeout time.Duration
}

// NewService 创建 Service. base 提供未登记在集群信息中的参数, 例如认证用户, 超时时间与本地 scontrol 路径.
func NewService(registry Registry, sources Sources, aliases *gres.Aliases, base source.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		sources:  sources,
		aliases:  aliases,
		base:     base,
		logger:   logger,
		now:      time.Now,

		fetchTimeout: DefaultFetchTimeout,
	}
}

// Aliases GPU 型号简称表.
func (s *Service) Aliases() *gres.Aliases { return s.aliases }

// sourceConfig 集群登记了 slurmrestd 地址时使用 slurmrest, 否则使用 base 中的数据源.
func (s *Service) sourceConfig(cl *postgres.Cluster) source.Config {
	cfg := s.base
	if cl.Addr == "" {
		if cfg.Kind == "" || cfg.Kind == source.KindSlurmrest {
			cfg.Kind = source.KindScontrol
		}
		return cfg
	}
	cfg.Kind = source.KindSlurmrest
	cfg.SlurmrestAddr = cl.Addr
	if cl.Version != "" {
		cfg.SlurmrestVersion = cl.Version
	}
	if cl.User != "" {
		cfg.SlurmrestUser = cl.User
	}
	if cl.Token != "" {
		cfg.SlurmrestToken = cl.Token
	}
	return cfg
}

// Snapshot 获取集群快照并计算可用资源.
// 共享的获取过程不随发起请求的 ctx 取消, 只受 fetchTimeout 限制; ctx 取消时调用方直接返回.
func (s *Service) Snapshot(ctx context.Context, cluster string) (*Snapshot, error) {
	ch := s.g.DoChan(cluster, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.snapshot(fctx, cluster)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("shared node snapshot", "cluster", cluster)
		}
		return res.Val.(*Snapshot), nil
	}
}

func (s *Service) snapshot(ctx context.Context, cluster string) (*Snapshot, error) {
	cl, err := s.registry.GetCluster(ctx, cluster)
	if err != nil {
		return nil, err
	}
	src, err := s.sources.FetchOrCreate(cluster, s.sourceConfig(cl))
	if err != nil {
		return nil, fmt.Errorf("unable to create node source for cluster %s: %w", cluster, err)
	}
	raws, err := src.Fetch(ctx)
	if err != nil {
		s.logger.Error("unable to fetch node snapshot", "cluster", cluster, "err", err)
		return nil, err
	}

	rp := availability.Build(raws, s.aliases)
	for _, f := range rp.Failures {
		s.logger.Debug("unable to parse node record", "cluster", cluster, "node", f.Name, "err", f.Err)
	}
	return &Snapshot{Cluster: cluster, CollectedAt: s.now(), Report: rp}, nil
}

// Report 实现 metrics.Reporter.
func (s *Service) Report(ctx context.Context, cluster string) (availability.Report, error) {
	snap, err := s.Snapshot(ctx, cluster)
	if err != nil {
		return availability.Report{}, err
	}
	return snap.Report, nil
}
