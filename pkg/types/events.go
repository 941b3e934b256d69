package types

import "time"

// ============================================================================
//                              连接事件
// ============================================================================

// ConnEventType 节点连接事件类型
type ConnEventType int

// 连接事件类型常量
const (
	// EventConnect 连接建立成功
	EventConnect ConnEventType = iota

	// EventError 连接错误
	EventError

	// EventDisconnect 连接断开
	EventDisconnect
)

// String 返回事件类型名
func (t ConnEventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventError:
		return "error"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// ConnEvent 节点连接生命周期事件
//
// 由连接实现发布，经 supervisor 分发给所有订阅者。
// 事件按逻辑槽位（Slot）归属，订阅者自行过滤。
type ConnEvent struct {
	// Type 事件类型
	Type ConnEventType

	// Slot 逻辑连接槽位 ID
	Slot string

	// Key 事件涉及的节点键
	Key NodeKey

	// SessionID 连接会话 ID
	SessionID string

	// Err 错误事件携带的错误（仅 EventError）
	Err error

	// CloseCode 断开关闭码（仅 EventDisconnect，0 表示未知）
	CloseCode int

	// Reason 断开原因描述（仅 EventDisconnect）
	Reason string

	// Intentional 是否为主动销毁导致的断开
	//
	// 主动销毁的断开不触发重连。
	Intentional bool

	// Time 事件时间
	Time time.Time
}
