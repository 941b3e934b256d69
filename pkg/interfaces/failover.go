package interfaces

import (
	"context"

	"github.com/wavelink/go-wavelink/pkg/types"
)

// FailoverController 重试/退避/故障转移状态机
//
// 对上层应用暴露的控制面：初始化、可用性查询、状态快照、
// 手动切换逃生口与优雅销毁。节点故障永远不会以进程级错误
// 的形式向上传播。
type FailoverController interface {
	// Initialize 初始化控制器
	//
	// 在宿主会话就绪后调用一次：订阅连接事件，执行启动快速扫描，
	// 成功后开始周期性健康监控；扫描失败则进入常规重连流程。
	Initialize(ctx context.Context) error

	// IsAvailable 返回当前是否有可用连接
	IsAvailable() bool

	// Status 返回状态快照
	Status() types.ControllerStatus

	// ForceNodeSwitch 强制切换节点
	//
	// 供通过旁路信号（如请求级超时）探知节点失灵的调用方使用：
	// 立即耗尽当前节点的重试预算并触发一次切换节点的重连。
	ForceNodeSwitch()

	// AttemptReconnection 触发一次重连流程
	//
	// 已在重连或冷却中时为空操作（重入保护）。
	AttemptReconnection()

	// Destroy 优雅销毁
	//
	// 取消全部定时器，停止连接 keepalive 并等待连接销毁完成。
	Destroy(ctx context.Context) error
}
