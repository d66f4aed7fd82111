package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config 日志配置.
//   - Output: "stderr", "stdout", "file". 为 file 时需要设定 File 指定日志文件位置及名称
//   - Format: "json", "text"
//   - Level: 日志输出的最低级别, "debug", "info", "warn", "error"
type Config struct {
	Output string
	Format string
	File   string
	Level  string
}

// ParseLevel 解析日志级别.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unsupported log level: %s", level)
}

// NewLogger 创建 Logger 并设置为默认 Logger. stdout, stderr 为 Output 对应的输出.
// 返回的 cleanup 用于关闭日志文件.
func NewLogger(cfg Config, stdout, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		w = stdout
	case "stderr", "":
		w = stderr
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("unable to create log file which name is null(\"\")")
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create log file(%s): %w", cfg.File, err)
		}
		w = f
		closer = f
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}

	// 只有 debug 级别输出源码位置
	ho := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, ho)
	case "text", "":
		handler = slog.NewTextHandler(w, ho)
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	cleanup := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return logger, cleanup, nil
}
