package failover

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/lib/log"
	"github.com/wavelink/go-wavelink/pkg/types"
)

var logger = log.Logger("core/failover")

// ============================================================================
//                              控制器
// ============================================================================

// Controller 重试/退避/故障转移状态机
//
// 所有状态由 mu 保护，单写者纪律：任一时刻最多一条重连链在推进。
// 重连链以单次尝试为步长，步与步之间通过时钟定时器衔接，绝不在
// 持锁状态下执行连接尝试。
type Controller struct {
	cfg  *config.FailoverConfig
	scfg *config.SupervisorConfig
	pool interfaces.CandidatePool
	sup  interfaces.ConnectionSupervisor
	clk  clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex

	// 生命周期
	initialized bool
	destroyed   bool
	sub         interfaces.Subscription

	// 连接观测
	hasConnected bool
	lastPing     time.Time

	// 重连链状态
	//
	// chainGen 为链代次：每开启一条新链（含保护超时接管与强制切换）
	// 递增一次。链的每一步在重新获锁后核对代次，旧链的延迟续步与
	// 在途连接尝试返回时发现代次不符即放弃，保证任一时刻只有一条
	// 链在推进计数。
	reconnecting      bool
	guardSince        time.Time
	chainGen          uint64
	reconnectAttempts int
	nodesTried        int
	totalNodes        int
	target            *types.Candidate

	// skipPersisted 置位时下一条重连链不优先持久化节点
	// 用于认证类故障后避免回到同一个被拒绝的节点
	skipPersisted bool

	// 冷却
	waitingForReset bool

	// 定时器
	reconnectTimer *clock.Timer
	healthTimer    *clock.Timer
	resetTimer     *clock.Timer
	cooldownTimer  *clock.Timer

	// jitter 返回 [0, max) 内的随机抖动，测试中可替换
	jitter func(max time.Duration) time.Duration
}

var _ interfaces.FailoverController = (*Controller)(nil)

// New 创建故障转移控制器
func New(cfg *config.Config, pool interfaces.CandidatePool, sup interfaces.ConnectionSupervisor, clk clock.Clock) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:    &cfg.Failover,
		scfg:   &cfg.Supervisor,
		pool:   pool,
		sup:    sup,
		clk:    clk,
		ctx:    ctx,
		cancel: cancel,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
}

// Initialize 初始化控制器
//
// 订阅连接事件并执行启动快速扫描；扫描成功后开启周期监控，
// 失败则转入常规重连流程。重复调用为空操作。
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return types.ErrControllerDestroyed
	}
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	c.mu.Unlock()

	c.mu.Lock()
	c.sub = c.sup.Subscribe(c.handleEvent)
	c.mu.Unlock()

	err := c.sup.FastScan(ctx, c.scfg.FastScanMaxAttempts, c.scfg.FastScanAttemptTimeout.Duration())
	if err == nil {
		logger.Info("启动扫描成功", "node", c.sup.CurrentKey())
		c.mu.Lock()
		c.hasConnected = true
		c.lastPing = c.clk.Now()
		c.startMonitorsLocked()
		c.mu.Unlock()
		return nil
	}

	logger.Warn("启动扫描未找到可用节点，转入重连流程", "err", err)
	c.AttemptReconnection()
	return nil
}

// IsAvailable 返回当前是否有可用连接
func (c *Controller) IsAvailable() bool {
	c.mu.Lock()
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		return false
	}
	return c.sup.Connected()
}

// Status 返回状态快照
func (c *Controller) Status() types.ControllerStatus {
	c.mu.Lock()
	st := types.ControllerStatus{
		ReconnectAttempts:    c.reconnectAttempts,
		MaxReconnectAttempts: c.cfg.MaxReconnectAttempts,
		NodesTriedThisCycle:  c.nodesTried,
		TotalNodesInCycle:    c.totalNodes,
		IsReconnecting:       c.reconnecting,
		IsWaitingForReset:    c.waitingForReset,
		LastPing:             c.lastPing,
	}
	c.mu.Unlock()
	st.IsConnected = c.sup.Connected()
	st.Pool = c.pool.Stats()
	return st
}

// ============================================================================
//                              事件处理
// ============================================================================

// handleEvent 连接事件入口
//
// 仅处理本槽位事件。重连链推进期间连接失败由 ConnectOnce 的返回值
// 结算，事件路径只负责已建立连接的后续故障。
func (c *Controller) handleEvent(ev types.ConnEvent) {
	if ev.Slot != c.scfg.Slot {
		return
	}
	switch ev.Type {
	case types.EventConnect:
		c.handleConnect(ev)
	case types.EventError:
		c.handleError(ev)
	case types.EventDisconnect:
		c.handleDisconnect(ev)
	}
}

// handleConnect 连接建立：复位计数并开启监控
func (c *Controller) handleConnect(ev types.ConnEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	logger.Info("节点连接建立", "node", ev.Key, "session", log.TruncateID(ev.SessionID, 8))

	c.hasConnected = true
	c.lastPing = ev.Time
	if c.lastPing.IsZero() {
		c.lastPing = c.clk.Now()
	}

	// 节点标记可用并持久化；链外建立的连接（外部工厂自行重连）
	// 按节点键从池中回查候选
	if c.target != nil && c.target.Key() == ev.Key {
		c.pool.MarkWorking(*c.target)
	} else if cand := c.pool.Lookup(ev.Key); cand != nil {
		c.pool.MarkWorking(*cand)
	}

	c.reconnectAttempts = 0
	c.nodesTried = 0
	c.target = nil
	c.finishReconnectLocked()
	c.exitCooldownLocked(false)
	c.startMonitorsLocked()
}

// handleError 已建立连接上的错误
func (c *Controller) handleError(ev types.ConnEvent) {
	c.mu.Lock()
	if c.destroyed || c.waitingForReset || c.reconnecting || !c.hasConnected {
		c.mu.Unlock()
		return
	}
	if IsAuthError(ev.Err) {
		// 认证类故障不回到同一节点
		c.skipPersisted = true
	}
	c.mu.Unlock()

	delay, ok := ErrorRetryDelay(ev.Err)
	if !ok {
		// 无法识别的错误交由健康检查兜底
		logger.Debug("忽略未识别的连接错误", "node", ev.Key, "err", ev.Err)
		return
	}
	logger.Warn("连接错误，调度重连", "node", ev.Key, "err", ev.Err, "delay", delay)
	c.scheduleAttempt(delay)
}

// handleDisconnect 已建立连接的断开
func (c *Controller) handleDisconnect(ev types.ConnEvent) {
	if ev.Intentional {
		return
	}
	c.mu.Lock()
	if c.destroyed || c.waitingForReset || c.reconnecting || !c.hasConnected {
		c.mu.Unlock()
		return
	}
	authClass := IsAuthClose(ev.CloseCode, ev.Reason)
	if authClass {
		c.skipPersisted = true
	}
	c.mu.Unlock()

	delay := DisconnectDelay(authClass, ev.Reason)
	logger.Warn("节点连接断开，调度重连",
		"node", ev.Key, "code", ev.CloseCode, "reason", ev.Reason, "delay", delay)
	c.scheduleAttempt(delay)
}

// scheduleAttempt 延迟触发一次重连流程
func (c *Controller) scheduleAttempt(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || c.waitingForReset {
		return
	}
	stopTimer(c.reconnectTimer)
	c.reconnectTimer = c.clk.AfterFunc(delay, c.AttemptReconnection)
}

// ============================================================================
//                              重连链
// ============================================================================

// AttemptReconnection 触发一次重连流程
//
// 重连或冷却进行中时为空操作；重入保护持有超过 GuardTimeout 视为
// 泄漏并强制接管。
func (c *Controller) AttemptReconnection() {
	c.mu.Lock()
	if c.destroyed || c.waitingForReset {
		c.mu.Unlock()
		return
	}
	if c.reconnecting {
		held := c.clk.Now().Sub(c.guardSince)
		if held < c.cfg.GuardTimeout.Duration() {
			c.mu.Unlock()
			return
		}
		logger.Warn("重入保护持有超时，强制接管重连", "held", held)
	}
	c.reconnecting = true
	c.guardSince = c.clk.Now()
	c.chainGen++
	gen := c.chainGen
	c.target = nil
	c.reconnectAttempts = 0
	c.nodesTried = 0
	c.totalNodes = c.pool.Stats().Total
	c.mu.Unlock()

	c.step(gen)
}

// step 执行重连链的一步：对当前目标做一次限时连接尝试
//
// 成功则结束链并开启监控；失败则按纯决策推进计数，经定时器
// 衔接下一步。不持锁执行连接；每次重新获锁核对链代次。
func (c *Controller) step(gen uint64) {
	c.mu.Lock()
	if c.destroyed || c.waitingForReset || !c.reconnecting || c.chainGen != gen {
		c.mu.Unlock()
		return
	}
	c.guardSince = c.clk.Now()

	if c.target == nil {
		c.mu.Unlock()
		target := c.pickInitialTarget()
		c.mu.Lock()
		if c.destroyed || c.waitingForReset || !c.reconnecting || c.chainGen != gen {
			c.mu.Unlock()
			return
		}
		if target == nil {
			logger.Warn("无可用候选节点，进入冷却等待")
			c.enterCooldownLocked()
			c.mu.Unlock()
			return
		}
		c.target = target
		if total := c.pool.Stats().Total; total > c.totalNodes {
			c.totalNodes = total
		}
	}
	target := *c.target
	c.mu.Unlock()

	logger.Info("尝试连接节点",
		"node", target.Key(),
		"attempt", c.attemptNumber(),
		"max", c.cfg.MaxReconnectAttempts)

	err := c.sup.ConnectOnce(c.ctx, target, c.scfg.ConnectTimeout.Duration())
	if err == nil {
		c.pool.MarkWorking(target)
		c.mu.Lock()
		if c.destroyed || c.chainGen != gen {
			c.mu.Unlock()
			return
		}
		c.hasConnected = true
		c.lastPing = c.clk.Now()
		c.reconnectAttempts = 0
		c.nodesTried = 0
		c.target = nil
		c.finishReconnectLocked()
		c.startMonitorsLocked()
		c.mu.Unlock()
		logger.Info("重连成功", "node", target.Key())
		return
	}

	c.mu.Lock()
	if c.destroyed || c.waitingForReset || !c.reconnecting || c.chainGen != gen {
		c.mu.Unlock()
		return
	}
	c.reconnectAttempts++
	if IsAuthError(err) {
		c.reconnectAttempts = c.cfg.MaxReconnectAttempts
	}
	plan := DecideRetry(c.cfg, c.reconnectAttempts, c.nodesTried, c.totalNodes)
	logger.Warn("连接尝试失败",
		"node", target.Key(),
		"attempts", c.reconnectAttempts,
		"verdict", plan.Verdict.String(),
		"err", err)

	switch plan.Verdict {
	case VerdictRetrySame:
		delay := plan.Delay + c.jitter(c.cfg.BackoffJitterMax.Duration())
		stopTimer(c.reconnectTimer)
		c.reconnectTimer = c.clk.AfterFunc(delay, func() { c.step(gen) })
		c.mu.Unlock()

	case VerdictSwitchNode:
		c.nodesTried++
		c.reconnectAttempts = 0
		c.mu.Unlock()
		next := c.pool.NextCandidate(c.ctx)
		c.mu.Lock()
		if c.destroyed || c.waitingForReset || !c.reconnecting || c.chainGen != gen {
			c.mu.Unlock()
			return
		}
		if next == nil {
			logger.Warn("候选耗尽，进入冷却等待")
			c.enterCooldownLocked()
			c.mu.Unlock()
			return
		}
		c.target = next
		logger.Info("切换候选节点", "node", next.Key(), "delay", plan.Delay)
		stopTimer(c.reconnectTimer)
		c.reconnectTimer = c.clk.AfterFunc(plan.Delay, func() { c.step(gen) })
		c.mu.Unlock()

	case VerdictCooldown:
		logger.Warn("重连预算耗尽，进入冷却等待",
			"nodes_tried", c.nodesTried+1, "total", c.totalNodes)
		c.enterCooldownLocked()
		c.mu.Unlock()
	}
}

// pickInitialTarget 选择重连链首个目标
//
// 优先上次持久化的可用节点，其次按池序取下一个候选；
// 认证类故障后跳过持久化节点。
func (c *Controller) pickInitialTarget() *types.Candidate {
	c.mu.Lock()
	skip := c.skipPersisted
	c.skipPersisted = false
	c.mu.Unlock()

	if !skip {
		if persisted := c.pool.LoadPersisted(); persisted != nil {
			return persisted
		}
	}
	return c.pool.NextCandidate(c.ctx)
}

// attemptNumber 当前尝试序号（从 1 计），仅用于日志
func (c *Controller) attemptNumber() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectAttempts + 1
}

// finishReconnectLocked 结束重连链（须持锁）
func (c *Controller) finishReconnectLocked() {
	c.reconnecting = false
	c.guardSince = time.Time{}
	stopTimer(c.reconnectTimer)
	c.reconnectTimer = nil
}

// ForceNodeSwitch 强制切换节点
//
// 立即放弃当前节点并以下一个候选重启重连链。冷却等待期间为空操作。
func (c *Controller) ForceNodeSwitch() {
	c.mu.Lock()
	if c.destroyed || c.waitingForReset {
		c.mu.Unlock()
		return
	}
	logger.Info("强制切换节点", "current", c.sup.CurrentKey())

	// 接管可能存在的旧链：递增代次使旧链的在途步骤全部失效
	stopTimer(c.reconnectTimer)
	c.reconnectTimer = nil
	c.reconnecting = true
	c.guardSince = c.clk.Now()
	c.chainGen++
	gen := c.chainGen
	c.reconnectAttempts = 0
	c.nodesTried++
	if c.totalNodes == 0 {
		c.totalNodes = c.pool.Stats().Total
	}
	c.mu.Unlock()

	next := c.pool.NextCandidate(c.ctx)

	c.mu.Lock()
	if c.destroyed || c.waitingForReset || c.chainGen != gen {
		c.mu.Unlock()
		return
	}
	if next == nil {
		logger.Warn("强制切换无可用候选，进入冷却等待")
		c.enterCooldownLocked()
		c.mu.Unlock()
		return
	}
	c.target = next
	c.mu.Unlock()

	c.step(gen)
}

// ============================================================================
//                              周期监控
// ============================================================================

// startMonitorsLocked 开启健康检查与兜底复位定时器（须持锁）
//
// 重复调用会重置两只定时器。
func (c *Controller) startMonitorsLocked() {
	if c.destroyed {
		return
	}
	stopTimer(c.healthTimer)
	c.healthTimer = c.clk.AfterFunc(c.cfg.HealthCheckInterval.Duration(), c.onHealthTick)
	stopTimer(c.resetTimer)
	c.resetTimer = c.clk.AfterFunc(c.cfg.PeriodicResetInterval.Duration(), c.onResetTick)
}

// onHealthTick 周期健康检查
//
// 连接在线时刷新 lastPing 并清零重试计数；掉线时无条件触发重连：
// AttemptReconnection 自带重入保护，活链使其成为空操作，而泄漏的
// 保护位正是靠这里的周期触发命中保护超时接管。
func (c *Controller) onHealthTick() {
	c.mu.Lock()
	if c.destroyed || c.waitingForReset {
		c.mu.Unlock()
		return
	}
	connected := c.sup.Connected()
	if connected {
		c.lastPing = c.clk.Now()
		if !c.reconnecting {
			c.reconnectAttempts = 0
		}
	}
	stopTimer(c.healthTimer)
	c.healthTimer = c.clk.AfterFunc(c.cfg.HealthCheckInterval.Duration(), c.onHealthTick)
	c.mu.Unlock()

	if !connected {
		logger.Warn("健康检查发现连接丢失，触发重连")
		c.AttemptReconnection()
	}
}

// onResetTick 兜底复位检查
//
// 掉线或连接名义在线但 lastPing 长期未刷新时，复位候选池并强制
// 重连。与健康检查同理无条件触发，防止事件丢失后系统永久停摆。
func (c *Controller) onResetTick() {
	c.mu.Lock()
	if c.destroyed || c.waitingForReset {
		c.mu.Unlock()
		return
	}
	connected := c.sup.Connected()
	stale := connected &&
		!c.lastPing.IsZero() &&
		c.clk.Now().Sub(c.lastPing) > c.cfg.PingStaleAfter.Duration()
	stopTimer(c.resetTimer)
	c.resetTimer = c.clk.AfterFunc(c.cfg.PeriodicResetInterval.Duration(), c.onResetTick)
	c.mu.Unlock()

	if !connected || stale {
		logger.Warn("兜底复位触发，复位候选池并强制重连",
			"connected", connected, "last_ping", c.lastPing)
		c.pool.Reset(c.ctx)
		c.AttemptReconnection()
	}
}

// ============================================================================
//                              冷却
// ============================================================================

// enterCooldownLocked 进入冷却等待（须持锁）
//
// 停止全部推进定时器，窗口到期后复位候选池并重新发起重连。
func (c *Controller) enterCooldownLocked() {
	c.waitingForReset = true
	c.reconnecting = false
	c.guardSince = time.Time{}
	c.target = nil
	c.reconnectAttempts = 0
	c.nodesTried = 0
	stopTimer(c.reconnectTimer)
	c.reconnectTimer = nil
	stopTimer(c.healthTimer)
	c.healthTimer = nil
	stopTimer(c.resetTimer)
	c.resetTimer = nil
	stopTimer(c.cooldownTimer)
	c.cooldownTimer = c.clk.AfterFunc(c.cfg.ResetAfter.Duration(), c.onCooldownExpired)
}

// exitCooldownLocked 退出冷却（须持锁）
func (c *Controller) exitCooldownLocked(resetPool bool) {
	if !c.waitingForReset {
		return
	}
	c.waitingForReset = false
	stopTimer(c.cooldownTimer)
	c.cooldownTimer = nil
	if resetPool {
		c.pool.Reset(c.ctx)
	}
}

// onCooldownExpired 冷却窗口到期：复位候选池并重启重连
func (c *Controller) onCooldownExpired() {
	c.mu.Lock()
	if c.destroyed || !c.waitingForReset {
		c.mu.Unlock()
		return
	}
	logger.Info("冷却窗口到期，复位候选池并重启重连")
	c.exitCooldownLocked(true)
	c.mu.Unlock()

	c.AttemptReconnection()
}

// ============================================================================
//                              销毁
// ============================================================================

// Destroy 优雅销毁控制器
//
// 取消全部定时器与重连链，注销事件订阅，销毁槽位连接。幂等。
func (c *Controller) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.reconnecting = false
	c.waitingForReset = false
	stopTimer(c.reconnectTimer)
	stopTimer(c.healthTimer)
	stopTimer(c.resetTimer)
	stopTimer(c.cooldownTimer)
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	c.cancel()
	if sub != nil {
		sub.Close()
	}

	logger.Info("控制器销毁")
	return c.sup.Teardown(ctx)
}

// stopTimer 安全停止定时器
func stopTimer(t *clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
