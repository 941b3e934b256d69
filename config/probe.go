package config

import "time"

// ProbeConfig 健康探测配置
type ProbeConfig struct {
	// Timeout 单次探测超时
	// 默认值: 5s
	Timeout Duration `json:"timeout"`
}

// DefaultProbeConfig 返回默认的探测配置
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Timeout: Duration(5 * time.Second),
	}
}

// Validate 验证探测配置的有效性
func (c *ProbeConfig) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = Duration(5 * time.Second)
	}
	return nil
}
