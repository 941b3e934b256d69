package types

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

// 公共错误
var (
	// ErrNoCandidate 候选池与持久化缓存均无可用节点
	ErrNoCandidate = errors.New("no candidate node available")

	// ErrConnectTimeout 限时连接尝试超时
	ErrConnectTimeout = errors.New("connect attempt timed out")

	// ErrScanExhausted 启动扫描在用尽候选或次数上限后仍未成功
	ErrScanExhausted = errors.New("fast scan exhausted without connection")

	// ErrControllerDestroyed 控制器已销毁
	ErrControllerDestroyed = errors.New("failover controller destroyed")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("node connection closed")
)
