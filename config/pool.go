package config

import (
	"fmt"
	"net/url"
	"time"
)

// PoolConfig 候选节点池配置
//
// 配置远程目录地址、缓存与拉取冷却策略以及持久化目录。
type PoolConfig struct {
	// DirectoryURL 主目录地址
	// 返回候选节点 JSON 列表
	DirectoryURL string `json:"directory_url"`

	// FallbackDirectoryURL 备用目录地址
	// 主目录失败或返回空列表时使用；可为空
	FallbackDirectoryURL string `json:"fallback_directory_url,omitempty"`

	// DataDir 持久化目录
	// 存放当前节点与目录缓存两个 JSON 文件
	// 默认值: ~/.wavelink
	DataDir string `json:"data_dir,omitempty"`

	// CacheTTL 磁盘缓存有效期
	// 默认值: 1h
	CacheTTL Duration `json:"cache_ttl"`

	// FetchCooldown 两次远程拉取的最小间隔（无论成败）
	// 默认值: 10m
	FetchCooldown Duration `json:"fetch_cooldown"`

	// FetchTimeout 单次目录请求超时
	// 默认值: 10s
	FetchTimeout Duration `json:"fetch_timeout"`
}

// DefaultPoolConfig 返回默认的池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		CacheTTL:      Duration(1 * time.Hour),
		FetchCooldown: Duration(10 * time.Minute),
		FetchTimeout:  Duration(10 * time.Second),
	}
}

// Validate 验证池配置的有效性
func (c *PoolConfig) Validate() error {
	if c.DirectoryURL != "" {
		if _, err := url.Parse(c.DirectoryURL); err != nil {
			return fmt.Errorf("pool: invalid directory_url: %w", err)
		}
	}
	if c.FallbackDirectoryURL != "" {
		if _, err := url.Parse(c.FallbackDirectoryURL); err != nil {
			return fmt.Errorf("pool: invalid fallback_directory_url: %w", err)
		}
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = Duration(1 * time.Hour)
	}
	if c.FetchCooldown <= 0 {
		c.FetchCooldown = Duration(10 * time.Minute)
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = Duration(10 * time.Second)
	}
	return nil
}
