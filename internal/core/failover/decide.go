package failover

import (
	"time"

	"github.com/wavelink/go-wavelink/config"
)

// ============================================================================
//                            纯函数决策步骤
// ============================================================================

// Verdict 一次重连失败后的下一步动作
type Verdict int

const (
	// VerdictRetrySame 退避后重试当前节点
	VerdictRetrySame Verdict = iota

	// VerdictSwitchNode 换下一个候选节点
	VerdictSwitchNode

	// VerdictCooldown 整轮耗尽，进入冷却等待
	VerdictCooldown
)

// String 返回决策的可读名称
func (v Verdict) String() string {
	switch v {
	case VerdictRetrySame:
		return "retry_same"
	case VerdictSwitchNode:
		return "switch_node"
	case VerdictCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// RetryPlan 决策结果：做什么、等多久
type RetryPlan struct {
	Verdict Verdict
	Delay   time.Duration
}

// Backoff 计算第 attempt 次（从 0 计）重试的指数退避
//
// min(base*2^attempt, max)，抖动由调用方叠加。
func Backoff(cfg *config.FailoverConfig, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := cfg.BackoffBase.Duration()
	max := cfg.BackoffMax.Duration()
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// DecideRetry 纯决策：给定失败时的计数状态，返回下一步
//
// attempts 当前节点已失败的连接次数（本次失败已计入）；
// nodesTried 本轮已放弃的节点数（不含当前节点）；
// totalNodes 本轮候选总数。调用方负责按返回的 Verdict 推进计数。
func DecideRetry(cfg *config.FailoverConfig, attempts, nodesTried, totalNodes int) RetryPlan {
	if attempts < cfg.MaxReconnectAttempts {
		return RetryPlan{
			Verdict: VerdictRetrySame,
			Delay:   Backoff(cfg, attempts-1),
		}
	}
	if nodesTried+1 < totalNodes {
		return RetryPlan{
			Verdict: VerdictSwitchNode,
			Delay:   cfg.SwitchDelay.Duration(),
		}
	}
	return RetryPlan{Verdict: VerdictCooldown}
}
