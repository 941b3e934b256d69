package config

import (
	"fmt"
	"time"
)

// MaxFastScanAttempts 启动扫描尝试次数硬上限
const MaxFastScanAttempts = 20

// SupervisorConfig 连接监督配置
type SupervisorConfig struct {
	// Slot 逻辑连接槽位 ID
	// 系统同一时刻只管理该槽位上的一条连接
	// 默认值: "main"
	Slot string `json:"slot"`

	// ConnectTimeout 重连流程中单次连接尝试超时
	// 默认值: 15s
	ConnectTimeout Duration `json:"connect_timeout"`

	// FastScanMaxAttempts 启动扫描尝试次数
	// 0 表示自动：取池大小，池大小未知时取 10，上限 20
	FastScanMaxAttempts int `json:"fast_scan_max_attempts"`

	// FastScanAttemptTimeout 启动扫描单次尝试超时
	// 默认值: 10s
	FastScanAttemptTimeout Duration `json:"fast_scan_attempt_timeout"`

	// KeepaliveInterval 连接 keepalive 间隔
	// 默认值: 30s
	KeepaliveInterval Duration `json:"keepalive_interval"`
}

// DefaultSupervisorConfig 返回默认的监督配置
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Slot:                   "main",
		ConnectTimeout:         Duration(15 * time.Second),
		FastScanAttemptTimeout: Duration(10 * time.Second),
		KeepaliveInterval:      Duration(30 * time.Second),
	}
}

// Validate 验证监督配置的有效性
func (c *SupervisorConfig) Validate() error {
	if c.Slot == "" {
		c.Slot = "main"
	}
	if c.FastScanMaxAttempts < 0 {
		return fmt.Errorf("supervisor: fast_scan_max_attempts must be >= 0")
	}
	if c.FastScanMaxAttempts > MaxFastScanAttempts {
		c.FastScanMaxAttempts = MaxFastScanAttempts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = Duration(15 * time.Second)
	}
	if c.FastScanAttemptTimeout <= 0 {
		c.FastScanAttemptTimeout = Duration(10 * time.Second)
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = Duration(30 * time.Second)
	}
	return nil
}
