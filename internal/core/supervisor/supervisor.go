package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/lib/log"
	"github.com/wavelink/go-wavelink/pkg/types"
)

var logger = log.Logger("core/supervisor")

// defaultFastScanAttempts 池大小未知时的启动扫描次数
const defaultFastScanAttempts = 10

// ============================================================================
//                              Supervisor 实现
// ============================================================================

// Supervisor ConnectionSupervisor 实现
type Supervisor struct {
	cfg     config.SupervisorConfig
	pool    interfaces.CandidatePool
	factory interfaces.ConnFactory
	clock   clock.Clock
	events  *emitter

	mu   sync.Mutex
	conn interfaces.NodeConn
}

// 确保实现接口
var _ interfaces.ConnectionSupervisor = (*Supervisor)(nil)

// New 创建连接监督者
func New(cfg config.SupervisorConfig, pool interfaces.CandidatePool, factory interfaces.ConnFactory, clk clock.Clock) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		pool:    pool,
		factory: factory,
		clock:   clk,
		events:  newEmitter(),
	}
}

// Subscribe 订阅连接事件，见 interfaces.ConnectionSupervisor
func (s *Supervisor) Subscribe(handler func(types.ConnEvent)) interfaces.Subscription {
	return s.events.subscribe(handler)
}

// publish 连接实现的事件发布入口
func (s *Supervisor) publish(ev types.ConnEvent) {
	s.events.publish(ev)
}

// Connected 返回槽位连接状态，见 interfaces.ConnectionSupervisor
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn != nil && conn.Connected()
}

// CurrentKey 返回槽位上连接的节点键，见 interfaces.ConnectionSupervisor
func (s *Supervisor) CurrentKey() types.NodeKey {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ""
	}
	return conn.Key()
}

// Teardown 销毁槽位上的连接，见 interfaces.ConnectionSupervisor
//
// 先停止连接内部 keepalive 定时器再销毁，防止销毁后仍有定时器
// 回调触发。
func (s *Supervisor) Teardown(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	conn.StopKeepalive()
	if err := conn.Destroy(ctx, "teardown"); err != nil {
		logger.Warn("连接销毁失败", "node", conn.Key(), "err", err)
		return err
	}
	logger.Debug("连接已销毁", "node", conn.Key())
	return nil
}

// ============================================================================
//                              限时连接
// ============================================================================

// ConnectOnce 对候选执行一次限时连接尝试，见 interfaces.ConnectionSupervisor
func (s *Supervisor) ConnectOnce(ctx context.Context, c types.Candidate, timeout time.Duration) error {
	// 槽位上已有连接先清理
	_ = s.Teardown(ctx)

	result := make(chan error, 2)
	deliver := func(err error) {
		select {
		case result <- err:
		default:
		}
	}

	conn, err := s.factory.Create(c, s.cfg.Slot, s.publish)
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// 临时监听：首个匹配的 connect/error/disconnect 事件结算本次尝试。
	// 按会话 ID 过滤，同一节点上前次连接的迟到事件不得结算本次尝试。
	// defer 保证所有退出路径（含 panic）上都会注销。
	sub := s.events.subscribe(func(ev types.ConnEvent) {
		if ev.Slot != s.cfg.Slot || ev.Key != c.Key() || ev.SessionID != conn.SessionID() {
			return
		}
		switch ev.Type {
		case types.EventConnect:
			deliver(nil)
		case types.EventError:
			err := ev.Err
			if err == nil {
				err = fmt.Errorf("connection error on %s", ev.Key)
			}
			deliver(err)
		case types.EventDisconnect:
			if !ev.Intentional {
				deliver(fmt.Errorf("disconnected during connect: code=%d reason=%q", ev.CloseCode, ev.Reason))
			}
		}
	})
	defer sub.Close()

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 底层实现不自动连接时显式触发
	if !conn.Connected() {
		go func() {
			// 拨号结果经事件送达，返回值仅兜底
			if err := conn.Connect(connectCtx); err != nil {
				deliver(err)
			}
		}()
	} else {
		deliver(nil)
	}

	timer := s.clock.Timer(timeout)
	defer timer.Stop()

	logger.Debug("连接尝试开始", "node", c.Key(), "timeout", timeout)

	select {
	case err := <-result:
		if err != nil {
			logger.Warn("连接尝试失败", "node", c.Key(), "err", err)
			_ = s.Teardown(ctx)
			return err
		}
		logger.Info("连接已建立", "node", c.Key(), "session", conn.SessionID())
		return nil
	case <-timer.C:
		logger.Warn("连接尝试超时", "node", c.Key(), "timeout", timeout)
		_ = s.Teardown(ctx)
		return types.ErrConnectTimeout
	case <-ctx.Done():
		_ = s.Teardown(context.Background())
		return ctx.Err()
	}
}

// ============================================================================
//                              启动扫描
// ============================================================================

// FastScan 启动期快速扫描，见 interfaces.ConnectionSupervisor
func (s *Supervisor) FastScan(ctx context.Context, maxAttempts int, perAttemptTimeout time.Duration) error {
	if maxAttempts <= 0 {
		if total := s.pool.Stats().Total; total > 0 {
			maxAttempts = total
		} else {
			maxAttempts = defaultFastScanAttempts
		}
	}
	if maxAttempts > config.MaxFastScanAttempts {
		maxAttempts = config.MaxFastScanAttempts
	}
	if perAttemptTimeout <= 0 {
		perAttemptTimeout = s.cfg.FastScanAttemptTimeout.Duration()
	}

	logger.Info("启动扫描开始", "maxAttempts", maxAttempts)

	// 上次持久化的节点优先，其次按池序轮转
	cand := s.pool.LoadPersisted()
	if cand != nil {
		logger.Info("优先尝试持久化节点", "node", cand.Key())
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if cand == nil {
			cand = s.pool.NextCandidate(ctx)
			if cand == nil {
				logger.Warn("启动扫描候选耗尽", "attempts", attempt)
				return types.ErrScanExhausted
			}
		}

		err := s.ConnectOnce(ctx, *cand, perAttemptTimeout)
		if err == nil {
			s.pool.MarkWorking(*cand)
			logger.Info("启动扫描成功", "node", cand.Key(), "attempts", attempt+1)
			return nil
		}

		logger.Warn("启动扫描尝试失败",
			"node", cand.Key(),
			"attempt", attempt+1,
			"err", err)
		cand = nil

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	logger.Warn("启动扫描失败", "maxAttempts", maxAttempts)
	return types.ErrScanExhausted
}
