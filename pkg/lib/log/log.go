// Package log 提供 Wavelink 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，提供简洁的日志 API。
// 直接使用，无需抽象接口。
//
// 支持通过环境变量配置：
//   - WAVELINK_LOG_LEVEL: 日志级别，支持按子系统配置
//     格式: 子系统=级别,子系统=级别,默认级别
//     示例: pool=debug,failover=debug,info
//   - WAVELINK_LOG_FORMAT: 日志格式 (text 或 json)
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// EnvLogLevel 日志级别环境变量
const EnvLogLevel = "WAVELINK_LOG_LEVEL"

// EnvLogFormat 日志格式环境变量
const EnvLogFormat = "WAVELINK_LOG_FORMAT"

// ============================================================================
//                              环境变量配置
// ============================================================================

// envConfig 从环境变量解析出的日志配置
type envConfig struct {
	defaultLevel    slog.Level
	subsystemLevels map[string]slog.Level
	json            bool
}

var (
	envCfg     *envConfig
	envCfgOnce sync.Once
)

// parseLevel 解析级别字符串
func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// configFromEnv 解析环境变量配置（仅解析一次）
func configFromEnv() *envConfig {
	envCfgOnce.Do(func() {
		cfg := &envConfig{
			defaultLevel:    slog.LevelInfo,
			subsystemLevels: make(map[string]slog.Level),
			json:            strings.EqualFold(os.Getenv(EnvLogFormat), "json"),
		}

		// 格式: 子系统=级别,子系统=级别,默认级别
		for _, part := range strings.Split(os.Getenv(EnvLogLevel), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if sub, lvl, ok := strings.Cut(part, "="); ok {
				if level, valid := parseLevel(lvl); valid {
					cfg.subsystemLevels[strings.TrimSpace(sub)] = level
				}
				continue
			}
			if level, valid := parseLevel(part); valid {
				cfg.defaultLevel = level
			}
		}

		envCfg = cfg
	})
	return envCfg
}

// levelFor 获取指定子系统的日志级别
func (c *envConfig) levelFor(component string) slog.Level {
	if level, ok := c.subsystemLevels[component]; ok {
		return level
	}
	return c.defaultLevel
}

// ============================================================================
//                              默认 logger 管理
// ============================================================================

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// New 创建新的 logger
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSON 创建 JSON 格式的 logger
func NewJSON(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetOutput 设置日志输出目标
//
// 重新创建默认 logger，将输出重定向到指定的 Writer。
// 常用于将日志输出到文件。
func SetOutput(w io.Writer) {
	SetOutputWithLevel(w, configFromEnv().defaultLevel)
}

// SetOutputWithLevel 同时设置日志输出目标和级别
func SetOutputWithLevel(w io.Writer, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}
	var l *slog.Logger
	if configFromEnv().json {
		l = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		l = slog.New(slog.NewTextHandler(w, opts))
	}
	slog.SetDefault(l)
}

// SetLevel 设置默认 logger 的日志级别
func SetLevel(level slog.Level) {
	SetOutputWithLevel(os.Stderr, level)
}

// InitFromEnv 按环境变量初始化默认 logger
//
// 建议在程序启动早期调用一次。
func InitFromEnv() {
	SetOutputWithLevel(os.Stderr, configFromEnv().defaultLevel)
}

// Discard 返回一个丢弃所有日志的 logger
//
// 主要用于测试，避免日志输出干扰测试结果。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler，
// 支持在运行时动态切换日志输出目标。
//
// 使用方式：
//
//	var myLog = log.Logger("core/pool")  // 返回 *LazyLogger
//	myLog.Info("hello")                  // 动态使用当前的 default logger
type LazyLogger struct {
	component string
	minLevel  slog.Level
}

// Logger 返回带组件名的 LazyLogger
//
// 组件的最低级别由 WAVELINK_LOG_LEVEL 的子系统配置决定。
func Logger(component string) *LazyLogger {
	return &LazyLogger{
		component: component,
		minLevel:  configFromEnv().levelFor(component),
	}
}

// enabled 检查级别是否启用
func (l *LazyLogger) enabled(level slog.Level) bool {
	return level >= l.minLevel
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	if l.enabled(slog.LevelDebug) {
		slog.Default().With("component", l.component).Debug(msg, args...)
	}
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	if l.enabled(slog.LevelInfo) {
		slog.Default().With("component", l.component).Info(msg, args...)
	}
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	if l.enabled(slog.LevelWarn) {
		slog.Default().With("component", l.component).Warn(msg, args...)
	}
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	if l.enabled(slog.LevelError) {
		slog.Default().With("component", l.component).Error(msg, args...)
	}
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	if l.enabled(slog.LevelDebug) {
		slog.Default().With("component", l.component).DebugContext(ctx, msg, args...)
	}
}

// InfoContext 带 context 的 Info 日志
func (l *LazyLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	if l.enabled(slog.LevelInfo) {
		slog.Default().With("component", l.component).InfoContext(ctx, msg, args...)
	}
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return slog.Default().With("component", l.component).With(args...)
}

// ============================================================================
//                              快捷方法
// ============================================================================

// Debug 输出 Debug 级别日志
func Debug(msg string, args ...any) {
	slog.Default().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func Info(msg string, args ...any) {
	slog.Default().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func Warn(msg string, args ...any) {
	slog.Default().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func Error(msg string, args ...any) {
	slog.Default().Error(msg, args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
//
// 防止对短字符串切片越界，并按 rune 截断避免切断多字节字符。
func TruncateID(id string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(id)
	if len(runes) <= maxLen {
		return id
	}
	return string(runes[:maxLen])
}
