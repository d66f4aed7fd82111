package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Option 使用函数式选项模式配置连接池。
type Option func(cfg *pgxpool.Config)

// WithMaxConns 设置最大连接数。服务只做少量查询, 默认值通常足够。
func WithMaxConns(n int32) Option {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// WithConnectTimeout 设置建立连接的超时时间。
func WithConnectTimeout(d time.Duration) Option {
	return func(cfg *pgxpool.Config) {
		if d > 0 {
			cfg.ConnConfig.ConnectTimeout = d
		}
	}
}

// WithMaxConnIdleTime 设置连接的最长空闲时间。
func WithMaxConnIdleTime(d time.Duration) Option {
	return func(cfg *pgxpool.Config) { cfg.MaxConnIdleTime = d }
}
