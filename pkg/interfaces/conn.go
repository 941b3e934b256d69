package interfaces

import (
	"context"

	"github.com/wavelink/go-wavelink/pkg/types"
)

// EmitFunc 连接事件发布函数
//
// 连接实现通过它将生命周期事件交给 supervisor 分发。
type EmitFunc func(ev types.ConnEvent)

// NodeConn 一条到音频节点的控制面连接
//
// 适配外部节点连接库的边界接口。实现必须：
//   - 在连接建立、出错、断开时通过 EmitFunc 发布对应事件；
//   - 自行持有 keepalive 定时器，并通过 StopKeepalive 显式停止，
//     销毁前不得遗留仍会触发的内部定时器。
type NodeConn interface {
	// Connect 发起连接
	//
	// 同步返回拨号结果；成功后启动读循环与 keepalive。
	// 无论结果如何，对应的 connect/error 事件都会被发布。
	Connect(ctx context.Context) error

	// Connected 返回当前连接状态
	Connected() bool

	// Key 返回连接目标节点键
	Key() types.NodeKey

	// SessionID 返回连接会话 ID
	SessionID() string

	// StopKeepalive 停止内部 keepalive 定时器
	//
	// 幂等；Destroy 之前必须调用以避免悬挂的定时器回调。
	StopKeepalive()

	// Destroy 销毁连接
	//
	// 发布 Intentional=true 的断开事件并释放底层资源。
	Destroy(ctx context.Context, reason string) error
}

// ConnFactory 节点连接工厂
//
// supervisor 通过工厂创建连接；emit 为 supervisor 的事件发布入口。
type ConnFactory interface {
	// Create 为指定候选创建一条未连接的 NodeConn
	Create(c types.Candidate, slot string, emit EmitFunc) (NodeConn, error)
}
