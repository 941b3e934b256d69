package interfaces

import (
	"context"
	"time"

	"github.com/wavelink/go-wavelink/pkg/types"
)

// Subscription 事件订阅句柄
//
// Close 幂等；订阅方必须在退出路径上关闭句柄以防监听器泄漏。
type Subscription interface {
	Close()
}

// ConnectionSupervisor 单连接槽位监督者
//
// 持有唯一的逻辑连接槽位，负责连接的创建与销毁，并提供统一的
// 限时连接操作。失败不向上抛出，由调用方决定下一步。
type ConnectionSupervisor interface {
	// ConnectOnce 对候选执行一次限时连接尝试
	//
	// 先销毁槽位上已有连接（先停 keepalive 再销毁），注册临时事件
	// 监听后创建新连接并显式触发 connect，在首个匹配的 connect 事件、
	// error 事件或超时三者中最先到达者处结算。所有退出路径上注销
	// 临时监听。
	ConnectOnce(ctx context.Context, c types.Candidate, timeout time.Duration) error

	// FastScan 启动期快速扫描
	//
	// 反复向池索取候选（优先持久化节点，其次池序）并执行 ConnectOnce，
	// 直到成功、候选耗尽或达到 maxAttempts（上限 20；池大小未知时
	// 默认 10）。成功时立即返回并把候选标记为可用。
	FastScan(ctx context.Context, maxAttempts int, perAttemptTimeout time.Duration) error

	// Connected 返回槽位上是否有活跃连接
	Connected() bool

	// CurrentKey 返回槽位上连接的节点键（无连接时为空）
	CurrentKey() types.NodeKey

	// Subscribe 订阅连接事件
	Subscribe(handler func(types.ConnEvent)) Subscription

	// Teardown 销毁槽位上的连接（若有）
	//
	// 先停止连接内部 keepalive 定时器再执行销毁，等待销毁完成。
	Teardown(ctx context.Context) error
}
