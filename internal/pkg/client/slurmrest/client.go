package slurmrest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slurm-avail/internal/pkg/client/slurmrest/model"
)

// DefaultVersion slurmrestd openapi 版本.
const DefaultVersion = "v0.0.40"

// Doer 抽象 http.Client 的 Do 方法，便于在测试中用 mock 实现替换。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client 简单的 slurmrestd HTTP 客户端封装。
// 认证使用 JWT: X-SLURM-USER-NAME / X-SLURM-USER-TOKEN.
type Client struct {
	client  Doer
	timeout time.Duration
	logger  *slog.Logger
	user    string
	token   string
}

func New(client Doer, timeout time.Duration, logger *slog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// SetAuth 设置认证用户与 token, 均为空时不发送认证头.
func (sc *Client) SetAuth(user, token string) *Client {
	sc.user = user
	sc.token = token
	return sc
}

// NodesURL 生成节点查询地址. addr 可以是 host:port, 也可以带 scheme.
func NodesURL(addr, version string) (*url.URL, error) {
	if version == "" {
		version = DefaultVersion
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid slurmrestd address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid slurmrestd address %q: missing host", addr)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/slurm/" + version + "/nodes"
	return u, nil
}

// GetNodes 获取全部节点信息
//   - GET http://<addr>/slurm/<version>/nodes
func (sc *Client) GetNodes(ctx context.Context, addr, version string) (model.Nodes, error) {
	if sc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.timeout)
		defer cancel()
	}

	u, err := NodesURL(addr, version)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		sc.logger.Error("unable to create request for slurmrestd", "err", err.Error(), "url", u.String())
		return nil, fmt.Errorf("unable to create request for slurmrestd: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if sc.user != "" {
		req.Header.Set("X-SLURM-USER-NAME", sc.user)
	}
	if sc.token != "" {
		req.Header.Set("X-SLURM-USER-TOKEN", sc.token)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.logger.Error("unable to do request for slurmrestd", "err", err.Error(), "url", u.String())
		return nil, fmt.Errorf("unable to do request for slurmrestd: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		sc.logger.Error("unexcepted status code", "code", resp.StatusCode, "url", u.String())
		return nil, fmt.Errorf("unexcepted status code: %d", resp.StatusCode)
	}

	var data model.NodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		sc.logger.Error("unable to decode slurmrestd response", "err", err.Error(), "url", u.String())
		return nil, fmt.Errorf("unable to decode slurmrestd response: %w", err)
	}
	if len(data.Errors) > 0 {
		e := data.Errors[0]
		sc.logger.Error("slurmrestd returned errors", "error", e.Error, "description", e.Description, "url", u.String())
		return nil, fmt.Errorf("slurmrestd error: %s %s", e.Error, e.Description)
	}
	for _, w := range data.Warnings {
		sc.logger.Warn("slurmrestd warning", "description", w.Description, "source", w.Source)
	}
	for _, n := range data.Nodes {
		if n != nil && n.Err != nil {
			sc.logger.Debug("unable to decode node", "node", n.Name, "err", n.Err.Error(), "url", u.String())
		}
	}

	return data.Nodes, nil
}
