// Package logger は hecore 全体で共有する slog ロガーを管理する。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var globalLogger *slog.Logger

// config は InitLogger のオプション。
type config struct {
	format string
	writer io.Writer
}

// Option は InitLogger の挙動を変更する。
type Option func(*config)

// WithFormat は出力形式を指定する（"text" または "json"）。
func WithFormat(format string) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithWriter は出力先を指定する。デフォルトは標準出力。
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// ParseLevel はログレベル文字列を slog.Level に変換する。
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
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger ログレベルに応じてslogを初期化
func InitLogger(level string, opts ...Option) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	cfg := &config{format: "text", writer: os.Stdout}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	switch cfg.format {
	case "text", "":
		handler = slog.NewTextHandler(cfg.writer, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(cfg.writer, handlerOpts)
	default:
		return fmt.Errorf("invalid log format: %s", cfg.format)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// Discard は何も出力しないロガーを返す。テストやプローブ用。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
