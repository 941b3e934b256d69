package wavelink

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 显式配置（优先级最高）
	cfg *config.Config

	// 配置文件路径（JSON）
	configFile string

	// 目录地址
	directoryURL         string
	fallbackDirectoryURL string

	// 持久化目录
	dataDir string

	// 重试参数覆盖
	maxReconnectAttempts int
	connectTimeout       time.Duration

	// 注入的实现（测试或外部连接库适配）
	factory interfaces.ConnFactory
	probe   interfaces.HealthProbe
	clock   clock.Clock

	// 环境变量覆盖开关
	skipEnvOverrides bool

	// 用户扩展 fx 选项
	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// buildConfig 按优先级合成最终配置
//
// 优先级（从高到低）：显式选项 → 环境变量 → 配置文件 → 默认值。
func (o *options) buildConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	if o.configFile != "" {
		data, err := os.ReadFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", o.configFile, err)
		}
	}

	if !o.skipEnvOverrides {
		cfg.ApplyEnvOverrides()
	}

	if o.cfg != nil {
		cfg = o.cfg
	}
	if o.directoryURL != "" {
		cfg.Pool.DirectoryURL = o.directoryURL
	}
	if o.fallbackDirectoryURL != "" {
		cfg.Pool.FallbackDirectoryURL = o.fallbackDirectoryURL
	}
	if o.dataDir != "" {
		cfg.Pool.DataDir = o.dataDir
	}
	if o.maxReconnectAttempts > 0 {
		cfg.Failover.MaxReconnectAttempts = o.maxReconnectAttempts
	}
	if o.connectTimeout > 0 {
		cfg.Supervisor.ConnectTimeout = config.Duration(o.connectTimeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              选项函数
// ════════════════════════════════════════════════════════════════════════════

// WithDirectoryURLs 设置主目录与备用目录地址
//
// fallback 可为空。
func WithDirectoryURLs(primary, fallback string) Option {
	return func(o *options) error {
		if primary == "" {
			return fmt.Errorf("primary directory URL is required")
		}
		o.directoryURL = primary
		o.fallbackDirectoryURL = fallback
		return nil
	}
}

// WithDataDir 设置持久化目录
func WithDataDir(dir string) Option {
	return func(o *options) error {
		o.dataDir = dir
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configFile = path
		return nil
	}
}

// WithConfig 直接注入完整配置
//
// 覆盖配置文件与环境变量；目录地址等显式选项仍然生效。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		o.cfg = cfg
		return nil
	}
}

// WithMaxReconnectAttempts 设置单节点重试上限
func WithMaxReconnectAttempts(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("max reconnect attempts must be >= 1")
		}
		o.maxReconnectAttempts = n
		return nil
	}
}

// WithConnectTimeout 设置单次连接尝试超时
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive")
		}
		o.connectTimeout = d
		return nil
	}
}

// WithConnFactory 注入外部节点连接工厂
//
// 宿主使用自有节点客户端库时通过工厂适配；未注入时使用内置
// websocket 连接。
func WithConnFactory(f interfaces.ConnFactory) Option {
	return func(o *options) error {
		if f == nil {
			return fmt.Errorf("conn factory must not be nil")
		}
		o.factory = f
		return nil
	}
}

// WithProbe 注入外部健康探测实现
//
// 未注入时使用内置的 HTTP 版本探测。
func WithProbe(p interfaces.HealthProbe) Option {
	return func(o *options) error {
		if p == nil {
			return fmt.Errorf("probe must not be nil")
		}
		o.probe = p
		return nil
	}
}

// WithClock 注入时钟
//
// 主要用于测试中替换 mock 时钟。
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		if clk == nil {
			return fmt.Errorf("clock must not be nil")
		}
		o.clock = clk
		return nil
	}
}

// WithoutEnvOverrides 禁用 WAVELINK_* 环境变量覆盖
func WithoutEnvOverrides() Option {
	return func(o *options) error {
		o.skipEnvOverrides = true
		return nil
	}
}

// WithFxOptions 追加用户自定义 fx 选项
//
// 供高级用户扩展依赖容器。
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
