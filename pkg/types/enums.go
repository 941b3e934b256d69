package types

// ============================================================================
//                              Phase 控制器阶段
// ============================================================================

// Phase 故障转移控制器所处阶段
type Phase int

// 控制器阶段常量
const (
	// PhaseIdle 空闲（含已连接的稳定态）
	PhaseIdle Phase = iota

	// PhaseReconnecting 重连流程执行中
	PhaseReconnecting

	// PhaseWaitingForReset 冷却等待中，期间禁止一切重连
	PhaseWaitingForReset
)

// String 返回阶段名
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseWaitingForReset:
		return "waiting_for_reset"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              FailureClass 故障分类
// ============================================================================

// FailureClass 连接故障分类
//
// 分类决定重试策略：
//   - Transient: 同节点退避重试
//   - Auth: 立即切换节点，不在同节点重试
//   - Exhaustion: 本轮所有节点均已尝试，进入冷却
//   - DirectoryUnavailable: 远程目录与缓存均无候选，进入冷却
type FailureClass int

// 故障分类常量
const (
	// FailureTransient 瞬时故障（超时、拒绝连接、socket 重置）
	FailureTransient FailureClass = iota

	// FailureAuth 认证类故障（401/403、未授权关闭码）
	FailureAuth

	// FailureExhaustion 本轮候选耗尽
	FailureExhaustion

	// FailureDirectoryUnavailable 目录不可用（远程与缓存均为空）
	FailureDirectoryUnavailable
)

// String 返回分类名
func (f FailureClass) String() string {
	switch f {
	case FailureTransient:
		return "transient"
	case FailureAuth:
		return "auth"
	case FailureExhaustion:
		return "exhaustion"
	case FailureDirectoryUnavailable:
		return "directory_unavailable"
	default:
		return "unknown"
	}
}
