package types

import "time"

// ============================================================================
//                              状态快照
// ============================================================================

// PoolStats 候选池统计快照
type PoolStats struct {
	// Total 当前候选总数
	Total int `json:"total"`

	// FailedCount 本轮标记失败的候选数
	FailedCount int `json:"failed_count"`

	// Current 当前节点键（无则为空）
	Current NodeKey `json:"current,omitempty"`

	// LastFetchTime 最近一次远程拉取时间（零值表示从未拉取）
	LastFetchTime time.Time `json:"last_fetch_time,omitempty"`
}

// ControllerStatus 故障转移控制器状态快照
//
// 只读快照，供上层应用诊断使用。
type ControllerStatus struct {
	// IsConnected 当前是否有活跃连接
	IsConnected bool `json:"is_connected"`

	// ReconnectAttempts 当前节点已重试次数
	ReconnectAttempts int `json:"reconnect_attempts"`

	// MaxReconnectAttempts 单节点重试上限
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`

	// NodesTriedThisCycle 本轮已尝试节点数
	NodesTriedThisCycle int `json:"nodes_tried_this_cycle"`

	// TotalNodesInCycle 本轮节点总数
	TotalNodesInCycle int `json:"total_nodes_in_cycle"`

	// IsReconnecting 重连流程是否执行中
	IsReconnecting bool `json:"is_reconnecting"`

	// IsWaitingForReset 是否处于冷却等待
	IsWaitingForReset bool `json:"is_waiting_for_reset"`

	// LastPing 最近一次健康确认时间（零值表示尚未确认）
	LastPing time.Time `json:"last_ping,omitempty"`

	// Pool 候选池统计
	Pool PoolStats `json:"pool"`
}
