// Package config 提供统一的配置管理
//
// 配置按子系统拆分（pool / probe / supervisor / failover），每个子系统
// 提供带文档化默认值的 Default*Config() 与修正式 Validate()。
// 支持 JSON 配置文件与 WAVELINK_ 前缀的环境变量覆盖。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix 环境变量统一前缀
const EnvPrefix = "WAVELINK_"

// 环境变量名（不含前缀）
const (
	EnvDirectoryURL         = "DIRECTORY_URL"
	EnvFallbackDirectoryURL = "FALLBACK_DIRECTORY_URL"
	EnvDataDir              = "DATA_DIR"
	EnvCacheTTL             = "CACHE_TTL"
	EnvFetchCooldown        = "FETCH_COOLDOWN"
	EnvProbeTimeout         = "PROBE_TIMEOUT"
	EnvConnectTimeout       = "CONNECT_TIMEOUT"
	EnvFastScanMaxAttempts  = "FAST_SCAN_MAX_ATTEMPTS"
	EnvMaxReconnectAttempts = "MAX_RECONNECT_ATTEMPTS"
	EnvBackoffBase          = "BACKOFF_BASE"
	EnvBackoffMax           = "BACKOFF_MAX"
	EnvHealthCheckInterval  = "HEALTH_CHECK_INTERVAL"
	EnvResetAfter           = "RESET_AFTER"
)

// ============================================================================
//                              Config
// ============================================================================

// Config Wavelink 完整配置
type Config struct {
	// Pool 候选节点池配置
	Pool PoolConfig `json:"pool"`

	// Probe 健康探测配置
	Probe ProbeConfig `json:"probe"`

	// Supervisor 连接监督配置
	Supervisor SupervisorConfig `json:"supervisor"`

	// Failover 故障转移配置
	Failover FailoverConfig `json:"failover"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Pool:       DefaultPoolConfig(),
		Probe:      DefaultProbeConfig(),
		Supervisor: DefaultSupervisorConfig(),
		Failover:   DefaultFailoverConfig(),
	}
}

// Validate 验证整体配置的有效性
//
// 无效的时长/次数类取值被修正为默认值；结构性错误（如非法 URL）返回错误。
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if err := c.Probe.Validate(); err != nil {
		return err
	}
	if err := c.Supervisor.Validate(); err != nil {
		return err
	}
	if err := c.Failover.Validate(); err != nil {
		return err
	}
	return nil
}

// ============================================================================
//                              环境变量覆盖
// ============================================================================

// envDuration 读取时长型环境变量，非法取值忽略
func envDuration(name string, dst *Duration) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wavelink: ignoring invalid %s%s=%q\n", EnvPrefix, name, v)
		return
	}
	*dst = Duration(d)
}

// envInt 读取整型环境变量，非法取值忽略
func envInt(name string, dst *int) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wavelink: ignoring invalid %s%s=%q\n", EnvPrefix, name, v)
		return
	}
	*dst = n
}

// ApplyEnvOverrides 应用环境变量覆盖
//
// 环境变量优先级高于配置文件，但低于显式代码配置。
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + EnvDirectoryURL); v != "" {
		c.Pool.DirectoryURL = v
	}
	if v := os.Getenv(EnvPrefix + EnvFallbackDirectoryURL); v != "" {
		c.Pool.FallbackDirectoryURL = v
	}
	if v := os.Getenv(EnvPrefix + EnvDataDir); v != "" {
		c.Pool.DataDir = v
	}
	envDuration(EnvCacheTTL, &c.Pool.CacheTTL)
	envDuration(EnvFetchCooldown, &c.Pool.FetchCooldown)
	envDuration(EnvProbeTimeout, &c.Probe.Timeout)
	envDuration(EnvConnectTimeout, &c.Supervisor.ConnectTimeout)
	envInt(EnvFastScanMaxAttempts, &c.Supervisor.FastScanMaxAttempts)
	envInt(EnvMaxReconnectAttempts, &c.Failover.MaxReconnectAttempts)
	envDuration(EnvBackoffBase, &c.Failover.BackoffBase)
	envDuration(EnvBackoffMax, &c.Failover.BackoffMax)
	envDuration(EnvHealthCheckInterval, &c.Failover.HealthCheckInterval)
	envDuration(EnvResetAfter, &c.Failover.ResetAfter)
}
