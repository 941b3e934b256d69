package wavelink

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/lib/log"
	"github.com/wavelink/go-wavelink/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "Wavelink " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

var logger = log.Logger("wavelink")

// ════════════════════════════════════════════════════════════════════════════
//                              Client
// ════════════════════════════════════════════════════════════════════════════

// Client 音频节点控制面客户端
//
// 聚合候选池、连接监督与故障转移控制器，对宿主应用暴露统一入口。
// 并发安全；Close 之后所有查询返回不可用。
type Client struct {
	cfg *config.Config
	app *fx.App

	pool       interfaces.CandidatePool
	supervisor interfaces.ConnectionSupervisor
	controller interfaces.FailoverController

	started atomic.Bool
	closed  atomic.Bool
}

// New 创建客户端
//
// 只做配置组装与依赖装配，不发起任何网络操作；连接流程由 Start 触发。
func New(opts ...Option) (*Client, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.buildConfig()
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	app, err := buildFxApp(cfg, o, c)
	if err != nil {
		return nil, err
	}
	c.app = app
	return c, nil
}

// Start 启动客户端
//
// 启动依赖容器并初始化故障转移控制器：订阅连接事件、执行启动
// 快速扫描。扫描找不到可用节点不视为启动失败，控制器会转入常规
// 重连流程继续尝试。
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrControllerDestroyed
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	logger.Info("启动 wavelink 客户端", "version", Version)
	if err := c.app.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	return c.controller.Initialize(ctx)
}

// IsAvailable 返回当前是否有可用的节点连接
func (c *Client) IsAvailable() bool {
	if c.closed.Load() || !c.started.Load() {
		return false
	}
	return c.controller.IsAvailable()
}

// Status 返回故障转移状态快照
func (c *Client) Status() types.ControllerStatus {
	return c.controller.Status()
}

// CurrentNode 返回当前连接的节点键（无连接时为空）
func (c *Client) CurrentNode() types.NodeKey {
	return c.supervisor.CurrentKey()
}

// Nodes 返回当前候选节点列表
func (c *Client) Nodes(ctx context.Context) []types.Candidate {
	return c.pool.Fetch(ctx)
}

// Stats 返回候选池统计快照
func (c *Client) Stats() types.PoolStats {
	return c.pool.Stats()
}

// Subscribe 订阅连接生命周期事件
//
// 订阅方必须在退出路径上 Close 返回的句柄。
func (c *Client) Subscribe(handler func(types.ConnEvent)) interfaces.Subscription {
	return c.supervisor.Subscribe(handler)
}

// ForceNodeSwitch 强制切换到下一个候选节点
//
// 供通过旁路信号（如请求级超时）探知节点失灵的宿主使用。
func (c *Client) ForceNodeSwitch() {
	c.controller.ForceNodeSwitch()
}

// Reconnect 手动触发一次重连流程
//
// 已在重连或冷却中时为空操作。
func (c *Client) Reconnect() {
	c.controller.AttemptReconnection()
}

// Config 返回生效的配置
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Close 关闭客户端
//
// 销毁控制器与槽位连接，停止依赖容器。幂等。
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	logger.Info("关闭 wavelink 客户端")

	var err error
	if c.started.Load() {
		err = multierr.Append(err, c.controller.Destroy(ctx))
		err = multierr.Append(err, c.app.Stop(ctx))
	}
	return err
}
