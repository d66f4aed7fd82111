package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"time"

	execclient "slurm-avail/internal/pkg/client/exec"
	"slurm-avail/internal/pkg/client/slurmrest"
	"slurm-avail/internal/pkg/client/slurmrest/model"
	"slurm-avail/internal/pkg/node"
)

// ErrUnavailable 无法获取节点快照(命令失败, 接口失败或快照为空). 本次运行无法继续.
var ErrUnavailable = errors.New("node snapshot unavailable")

// Source 节点快照数据源.
type Source interface {
	Fetch(ctx context.Context) ([]node.RawRecord, error)
}

// 数据源类型
const (
	KindScontrol     = "scontrol"
	KindScontrolJSON = "scontrol-json"
	KindSlurmrest    = "slurmrest"
	KindFile         = "file"
)

// DefaultScontrolPath 默认通过 PATH 查找 scontrol.
const DefaultScontrolPath = execclient.DefaultScontrol

// Kinds 所有数据源类型.
var Kinds = []string{KindScontrol, KindScontrolJSON, KindSlurmrest, KindFile}

// Scontroller 执行 scontrol 的客户端, 由 exec.Client 实现.
type Scontroller interface {
	ShowNodes(ctx context.Context) ([]byte, error)
	ShowNodesJSON(ctx context.Context) ([]byte, error)
}

// NodesGetter 查询 slurmrestd 的客户端, 由 slurmrest.Client 实现.
type NodesGetter interface {
	GetNodes(ctx context.Context, addr, version string) (model.Nodes, error)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func nonEmpty(records []node.RawRecord) ([]node.RawRecord, error) {
	if len(records) == 0 {
		return nil, unavailable(errors.New("empty snapshot"))
	}
	return records, nil
}

// Scontrol 通过 "scontrol -o show nodes" 获取快照.
type Scontrol struct {
	Client Scontroller
}

func (s Scontrol) Fetch(ctx context.Context) ([]node.RawRecord, error) {
	out, err := s.Client.ShowNodes(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return nonEmpty(ParseLegacy(out))
}

// ScontrolJSON 通过 "scontrol --json show nodes" 获取快照.
type ScontrolJSON struct {
	Client Scontroller
}

func (s ScontrolJSON) Fetch(ctx context.Context) ([]node.RawRecord, error) {
	out, err := s.Client.ShowNodesJSON(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	records, err := ParseJSON(out)
	if err != nil {
		return nil, unavailable(err)
	}
	return nonEmpty(records)
}

// Slurmrest 通过 slurmrestd 的 nodes 接口获取快照.
type Slurmrest struct {
	Client  NodesGetter
	Addr    string
	Version string
}

func (s Slurmrest) Fetch(ctx context.Context) ([]node.RawRecord, error) {
	nodes, err := s.Client.GetNodes(ctx, s.Addr, s.Version)
	if err != nil {
		return nil, unavailable(err)
	}
	return nonEmpty(FromModel(nodes))
}

// File 读取保存的快照文件, JSON 或 key=value 文本格式.
type File struct {
	Path string
}

func (f File) Fetch(ctx context.Context) ([]node.RawRecord, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, unavailable(err)
	}
	return Parse(data)
}

// Parse 根据内容判断格式并解析快照.
func Parse(data []byte) ([]node.RawRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		records, err := ParseJSON(trimmed)
		if err != nil {
			return nil, unavailable(err)
		}
		return nonEmpty(records)
	}
	return nonEmpty(ParseLegacy(data))
}

// Config 创建数据源所需的参数.
type Config struct {
	Kind         string
	File         string
	ScontrolPath string

	SlurmrestAddr    string
	SlurmrestVersion string
	SlurmrestUser    string
	SlurmrestToken   string
	SlurmrestTimeout time.Duration
}

// New 按 Kind 创建数据源.
func New(cfg Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case KindScontrol, "":
		c := (&execclient.Client{}).Set(exec.CommandContext, logger).SetScontrol(cfg.ScontrolPath)
		return Scontrol{Client: c}, nil
	case KindScontrolJSON:
		c := (&execclient.Client{}).Set(exec.CommandContext, logger).SetScontrol(cfg.ScontrolPath)
		return ScontrolJSON{Client: c}, nil
	case KindSlurmrest:
		if cfg.SlurmrestAddr == "" {
			return nil, errors.New("slurmrest source requires an address")
		}
		c := slurmrest.New(&http.Client{}, cfg.SlurmrestTimeout, logger).
			SetAuth(cfg.SlurmrestUser, cfg.SlurmrestToken)
		return Slurmrest{Client: c, Addr: cfg.SlurmrestAddr, Version: cfg.SlurmrestVersion}, nil
	case KindFile:
		if cfg.File == "" {
			return nil, errors.New("file source requires a path")
		}
		return File{Path: cfg.File}, nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Kind)
}
