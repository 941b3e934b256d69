package interfaces

import (
	"context"

	"github.com/wavelink/go-wavelink/pkg/types"
)

// CandidatePool 候选节点池
//
// 负责从远程目录拉取候选节点、过滤排序、失败轮转以及最近可用节点的
// 磁盘持久化。所有方法对调用方不抛出错误：拉取失败时降级返回可用的
// 缓存列表（可能为空）。
type CandidatePool interface {
	// Fetch 返回当前候选列表
	//
	// 处于拉取冷却期时直接返回内存列表（内存为空则返回磁盘缓存）。
	// 否则依次尝试主目录、备用目录、磁盘缓存，过滤不合格记录并按
	// secure 优先稳定排序，随后连同拉取时间戳持久化。
	Fetch(ctx context.Context) []types.Candidate

	// NextCandidate 返回下一个可用候选
	//
	// 将当前候选（若有）标记为失败，然后按池序扫描第一个未失败且
	// 健康探测通过的候选；探测失败的候选同样标记失败。全部失败或
	// 池为空时清空失败集强制重新拉取并重扫一次；仍无可用候选则
	// 返回 nil。
	NextCandidate(ctx context.Context) *types.Candidate

	// MarkWorking 标记候选为可用
	//
	// 从失败集移除并作为当前节点持久化到磁盘。
	MarkWorking(c types.Candidate)

	// LoadPersisted 返回上次持久化的当前节点，无或损坏时返回 nil
	//
	// 返回的候选被登记为当前节点，其后续失败经 NextCandidate 计入
	// 失败集，保证轮转不会原地重试同一节点。
	LoadPersisted() *types.Candidate

	// Lookup 按节点键返回池中候选，未知时返回 nil
	Lookup(key types.NodeKey) *types.Candidate

	// Reset 为新一轮周期重置池状态
	//
	// 清空失败集、解除拉取冷却并强制一次全新拉取。
	Reset(ctx context.Context)

	// Stats 返回池统计快照
	Stats() types.PoolStats
}
