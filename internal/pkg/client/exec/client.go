package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultScontrol scontrol 命令名称, 通过 PATH 查找.
const DefaultScontrol = "scontrol"

type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Client 通过本地 scontrol 命令获取节点信息.
type Client struct {
	execCommand ExecCommandFunc
	logger      *slog.Logger
	scontrol    string
}

func (c *Client) Set(exec ExecCommandFunc, logger *slog.Logger) *Client {
	c.execCommand = exec
	c.logger = logger
	return c
}

// SetScontrol 指定 scontrol 路径, 为空时使用 DefaultScontrol.
func (c *Client) SetScontrol(path string) *Client {
	c.scontrol = path
	return c
}

// ShowNodes 执行 "scontrol -o show nodes", 每个节点输出一行 key=value.
func (c *Client) ShowNodes(ctx context.Context) ([]byte, error) {
	return c.run(ctx, "-o", "show", "nodes")
}

// ShowNodesJSON 执行 "scontrol --json show nodes", 输出格式与 slurmrestd 的 nodes 接口一致.
func (c *Client) ShowNodesJSON(ctx context.Context) ([]byte, error) {
	return c.run(ctx, "--json", "show", "nodes")
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if c == nil || c.execCommand == nil {
		return nil, fmt.Errorf("nil client or exec command")
	}
	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}
	name := c.scontrol
	if name == "" {
		name = DefaultScontrol
	}

	cmd := c.execCommand(ctx, name, args...)
	logger.Debug(cmd.String())
	// 只取标准输出, scontrol 的告警信息写在标准错误中.
	output, err := cmd.Output()
	if err != nil {
		var stderr string
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		logger.Error("unable to execute command", "cmd", cmd.String(), "stderr", stderr, "err", err)
		if stderr != "" {
			return nil, fmt.Errorf("%s: %w: %s", cmd.String(), err, stderr)
		}
		return nil, fmt.Errorf("%s: %w", cmd.String(), err)
	}
	return output, nil
}
