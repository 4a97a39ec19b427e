package xlog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level 日志级别，与 slog.Level 兼容
type Level slog.Level

const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

func (l Level) String() string {
	return slog.Level(l).String()
}

// UnmarshalText 支持从配置文件直接反序列化日志级别
func (l *Level) UnmarshalText(data []byte) error {
	parsed, err := ParseLevel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel 解析 debug/info/warn/warning/error（大小写不敏感）
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}
