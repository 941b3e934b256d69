package interfaces

import (
	"context"

	"github.com/wavelink/go-wavelink/pkg/types"
)

// HealthProbe 轻量可达性探测
//
// 用于在完整连接尝试之前剔除明显不可达的候选，仅供
// CandidatePool.NextCandidate 的扫描使用，不阻塞主连接流程。
type HealthProbe interface {
	// Check 对候选执行一次短超时协议信息探测
	//
	// HTTP 层认证失败（401/403）视为存活：节点可达，仅凭证不同。
	// 只有网络层失败或超时判定为不健康。
	Check(ctx context.Context, c types.Candidate) bool
}
