package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/types"
)

// clientName 握手时上报的客户端标识
const clientName = "go-wavelink"

// writeControlTimeout 控制帧写超时
const writeControlTimeout = 10 * time.Second

// ============================================================================
//                              WSFactory
// ============================================================================

// WSFactory 内置 websocket 连接工厂
//
// 以节点控制面 websocket 为底层传输，适用于未注入外部连接库的场景。
type WSFactory struct {
	cfg   config.SupervisorConfig
	clock clock.Clock
}

// 确保实现接口
var _ interfaces.ConnFactory = (*WSFactory)(nil)

// NewWSFactory 创建 websocket 连接工厂
func NewWSFactory(cfg config.SupervisorConfig, clk clock.Clock) *WSFactory {
	return &WSFactory{cfg: cfg, clock: clk}
}

// Create 创建一条未连接的 websocket NodeConn
func (f *WSFactory) Create(c types.Candidate, slot string, emit interfaces.EmitFunc) (interfaces.NodeConn, error) {
	if emit == nil {
		return nil, fmt.Errorf("emit func is required")
	}
	return &wsConn{
		cand:           c,
		slot:           slot,
		emit:           emit,
		clock:          f.clock,
		keepaliveEvery: f.cfg.KeepaliveInterval.Duration(),
		sessionID:      uuid.NewString(),
		keepaliveStop:  make(chan struct{}),
	}, nil
}

// ============================================================================
//                              wsConn
// ============================================================================

// wsConn websocket 节点连接
//
// keepalive 定时器由连接自身持有，StopKeepalive 显式停止；
// Destroy 前必须先停 keepalive，避免销毁后仍触发写操作。
type wsConn struct {
	cand           types.Candidate
	slot           string
	emit           interfaces.EmitFunc
	clock          clock.Clock
	keepaliveEvery time.Duration
	sessionID      string

	mu            sync.Mutex
	ws            *websocket.Conn
	connected     bool
	destroyed     bool
	closeEmitted  bool
	keepaliveStop chan struct{}
	keepaliveOnce sync.Once
}

// 确保实现接口
var _ interfaces.NodeConn = (*wsConn)(nil)

// Key 返回目标节点键
func (c *wsConn) Key() types.NodeKey {
	return c.cand.Key()
}

// SessionID 返回会话 ID
func (c *wsConn) SessionID() string {
	return c.sessionID
}

// Connected 返回连接状态
func (c *wsConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// event 构造本连接的事件
func (c *wsConn) event(t types.ConnEventType) types.ConnEvent {
	return types.ConnEvent{
		Type:      t,
		Slot:      c.slot,
		Key:       c.cand.Key(),
		SessionID: c.sessionID,
		Time:      time.Now(),
	}
}

// Connect 发起连接，见 interfaces.NodeConn
func (c *wsConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return types.ErrConnClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", c.cand.Password)
	header.Set("Client-Name", clientName)
	header.Set("Session-Id", c.sessionID)

	dialer := websocket.Dialer{}
	ws, resp, err := dialer.DialContext(ctx, c.cand.SocketURL(), header)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		// 握手被 HTTP 层拒绝时带上状态码，供上层故障分类使用
		if resp != nil {
			err = fmt.Errorf("handshake rejected: %s: %w", resp.Status, err)
		}
		ev := c.event(types.EventError)
		ev.Err = err
		c.emit(ev)
		return err
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		_ = ws.Close()
		return types.ErrConnClosed
	}
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	c.emit(c.event(types.EventConnect))

	go c.readLoop(ws)
	go c.keepaliveLoop(ws)
	return nil
}

// readLoop 读循环
//
// 会话协议载荷不在职责范围内，仅消费消息以驱动断开检测。
func (c *wsConn) readLoop(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			c.handleClosed(err)
			return
		}
	}
}

// handleClosed 处理连接关闭
func (c *wsConn) handleClosed(err error) {
	c.mu.Lock()
	c.connected = false
	intentional := c.destroyed
	alreadyEmitted := c.closeEmitted
	c.closeEmitted = true
	c.mu.Unlock()

	if alreadyEmitted {
		return
	}

	ev := c.event(types.EventDisconnect)
	ev.Intentional = intentional
	if ce, ok := err.(*websocket.CloseError); ok {
		ev.CloseCode = ce.Code
		ev.Reason = ce.Text
	} else if err != nil {
		ev.Reason = err.Error()
	}
	c.emit(ev)
}

// keepaliveLoop keepalive 循环
func (c *wsConn) keepaliveLoop(ws *websocket.Conn) {
	ticker := c.clock.Ticker(c.keepaliveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.keepaliveStop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeControlTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// StopKeepalive 停止 keepalive 定时器，幂等
func (c *wsConn) StopKeepalive() {
	c.keepaliveOnce.Do(func() {
		close(c.keepaliveStop)
	})
}

// Destroy 销毁连接，见 interfaces.NodeConn
func (c *wsConn) Destroy(_ context.Context, reason string) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	ws := c.ws
	c.ws = nil
	wasConnected := c.connected
	c.connected = false
	alreadyEmitted := c.closeEmitted
	c.closeEmitted = true
	c.mu.Unlock()

	c.StopKeepalive()

	if ws != nil {
		// 尽力发送关闭帧，失败不影响销毁
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeControlTimeout))
		_ = ws.Close()
	}

	if wasConnected && !alreadyEmitted {
		ev := c.event(types.EventDisconnect)
		ev.Intentional = true
		ev.Reason = reason
		c.emit(ev)
	}
	return nil
}
