package config

import (
	"fmt"
	"time"
)

// FailoverConfig 故障转移控制器配置
//
// 控制重试预算、退避曲线、健康监控与冷却窗口。
type FailoverConfig struct {
	// MaxReconnectAttempts 单节点重试上限，超过后切换节点
	// 默认值: 3
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`

	// BackoffBase 指数退避基础延迟
	// 默认值: 1s
	BackoffBase Duration `json:"backoff_base"`

	// BackoffMax 指数退避延迟上限（不含抖动）
	// 默认值: 5s
	BackoffMax Duration `json:"backoff_max"`

	// BackoffJitterMax 随机抖动上限
	// 默认值: 1s
	BackoffJitterMax Duration `json:"backoff_jitter_max"`

	// SwitchDelay 切换节点后的固定延迟
	// 默认值: 2s
	SwitchDelay Duration `json:"switch_delay"`

	// HealthCheckInterval 健康检查间隔
	// 默认值: 30s
	HealthCheckInterval Duration `json:"health_check_interval"`

	// PeriodicResetInterval 兜底复位检查间隔
	// 默认值: 1h
	PeriodicResetInterval Duration `json:"periodic_reset_interval"`

	// PingStaleAfter lastPing 过期阈值，兜底复位检查用
	// 默认值: 30m
	PingStaleAfter Duration `json:"ping_stale_after"`

	// ResetAfter 冷却窗口时长
	// 默认值: 5m
	ResetAfter Duration `json:"reset_after"`

	// GuardTimeout 重入保护强制清除阈值
	// 默认值: 2m
	GuardTimeout Duration `json:"guard_timeout"`
}

// DefaultFailoverConfig 返回默认的故障转移配置
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxReconnectAttempts:  3,
		BackoffBase:           Duration(1 * time.Second),
		BackoffMax:            Duration(5 * time.Second),
		BackoffJitterMax:      Duration(1 * time.Second),
		SwitchDelay:           Duration(2 * time.Second),
		HealthCheckInterval:   Duration(30 * time.Second),
		PeriodicResetInterval: Duration(1 * time.Hour),
		PingStaleAfter:        Duration(30 * time.Minute),
		ResetAfter:            Duration(5 * time.Minute),
		GuardTimeout:          Duration(2 * time.Minute),
	}
}

// Validate 验证故障转移配置的有效性
func (c *FailoverConfig) Validate() error {
	if c.MaxReconnectAttempts < 1 {
		return fmt.Errorf("failover: max_reconnect_attempts must be >= 1")
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = Duration(1 * time.Second)
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = Duration(5 * time.Second)
	}
	if c.BackoffJitterMax < 0 {
		c.BackoffJitterMax = Duration(1 * time.Second)
	}
	if c.SwitchDelay <= 0 {
		c.SwitchDelay = Duration(2 * time.Second)
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = Duration(30 * time.Second)
	}
	if c.PeriodicResetInterval <= 0 {
		c.PeriodicResetInterval = Duration(1 * time.Hour)
	}
	if c.PingStaleAfter <= 0 {
		c.PingStaleAfter = Duration(30 * time.Minute)
	}
	if c.ResetAfter <= 0 {
		c.ResetAfter = Duration(5 * time.Minute)
	}
	if c.GuardTimeout <= 0 {
		c.GuardTimeout = Duration(2 * time.Minute)
	}
	return nil
}
