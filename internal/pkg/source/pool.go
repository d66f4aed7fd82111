package source

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Pool 按集群缓存数据源, 同一集群复用同一个 HTTP 客户端.
type Pool struct {
	mu     sync.RWMutex
	g      singleflight.Group
	pool   map[string]Source
	logger *slog.Logger
	// newSource 创建数据源, 测试中可替换.
	newSource func(cfg Config, logger *slog.Logger) (Source, error)
}

// NewPool 创建 Pool.
func NewPool(logger *slog.Logger) *Pool {
	return &Pool{
		pool:      make(map[string]Source),
		logger:    logger,
		newSource: New,
	}
}

// poolKey 输出格式为 <cluster>:<kind>:<addr>/<version>, 地址或版本变化时重新创建数据源.
func poolKey(cluster string, cfg Config) string {
	return fmt.Sprintf("%s:%s:%s/%s", cluster, cfg.Kind, cfg.SlurmrestAddr, cfg.SlurmrestVersion)
}

// FetchOrCreate 根据 cluster 与 cfg 获取缓存的数据源, 不存在则创建.
// 并发安全: 读写锁保护内部 map, singleflight 保证同一 key 只创建一次.
func (p *Pool) FetchOrCreate(cluster string, cfg Config) (Source, error) {
	if cluster == "" {
		return nil, fmt.Errorf("参数 cluster 不能为空")
	}
	key := poolKey(cluster, cfg)

	// 快路径：已存在则直接返回
	p.mu.RLock()
	if src, ok := p.pool[key]; ok {
		p.mu.RUnlock()
		return src, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.g.Do(key, func() (any, error) {
		// 双检，避免等待期间已被其他协程创建
		p.mu.RLock()
		if src, ok := p.pool[key]; ok {
			p.mu.RUnlock()
			return src, nil
		}
		p.mu.RUnlock()

		src, err := p.newSource(cfg, p.logger)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		if p.pool == nil {
			p.pool = make(map[string]Source)
		}
		p.pool[key] = src
		p.mu.Unlock()
		return src, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Source), nil
}

// Len 缓存的数据源数量.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pool)
}
