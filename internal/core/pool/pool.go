package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/lib/log"
	"github.com/wavelink/go-wavelink/pkg/types"
)

var logger = log.Logger("core/pool")

// maxDirectoryBody 目录响应体大小上限
const maxDirectoryBody = 1 << 20

// ============================================================================
//                              Pool 实现
// ============================================================================

// Pool CandidatePool 实现
type Pool struct {
	cfg    config.PoolConfig
	probe  interfaces.HealthProbe
	store  *Store
	clock  clock.Clock
	client *http.Client

	mu        sync.Mutex
	nodes     []types.Candidate
	failed    map[types.NodeKey]struct{}
	current   *types.Candidate
	lastFetch time.Time
	limiter   *rate.Limiter
}

// 确保实现接口
var _ interfaces.CandidatePool = (*Pool)(nil)

// New 创建候选节点池
//
// 若磁盘缓存仍在有效期内，用它预热内存列表，避免启动时多余的
// 远程拉取。
func New(cfg config.PoolConfig, probe interfaces.HealthProbe, clk clock.Clock) *Pool {
	p := &Pool{
		cfg:    cfg,
		probe:  probe,
		store:  NewStore(cfg.DataDir),
		clock:  clk,
		client: &http.Client{Timeout: cfg.FetchTimeout.Duration()},
		failed: make(map[types.NodeKey]struct{}),
	}
	p.limiter = p.newLimiter()

	if nodes, fetchedAt := p.store.LoadCache(); len(nodes) > 0 {
		if p.clock.Now().Sub(fetchedAt) <= cfg.CacheTTL.Duration() {
			p.nodes = eligibleOnly(nodes)
			p.lastFetch = fetchedAt
			logger.Info("已从磁盘缓存预热候选池",
				"nodes", len(p.nodes),
				"fetchedAt", fetchedAt)
		}
	}
	return p
}

// newLimiter 创建拉取冷却限速器
func (p *Pool) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(p.cfg.FetchCooldown.Duration()), 1)
}

// ============================================================================
//                              目录拉取
// ============================================================================

// directoryRecord 远程目录返回的节点记录
type directoryRecord struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Password        string `json:"password"`
	Secure          *bool  `json:"secure,omitempty"`
	ProtocolVersion int    `json:"protocol_version"`
	Identifier      string `json:"identifier,omitempty"`
}

// directoryEnvelope 带包装的目录响应
type directoryEnvelope struct {
	Nodes []directoryRecord `json:"nodes"`
}

// toCandidate 转换为候选记录
//
// secure 取显式标志，未声明时按 443 端口推断。
func (r directoryRecord) toCandidate() types.Candidate {
	secure := r.Port == types.SecurePort
	if r.Secure != nil {
		secure = *r.Secure
	}
	return types.Candidate{
		Host:            r.Host,
		Port:            r.Port,
		Password:        r.Password,
		Secure:          secure,
		ProtocolVersion: r.ProtocolVersion,
		Identifier:      r.Identifier,
	}
}

// fetchDirectory 拉取单个目录源
//
// 响应体可以是裸 JSON 数组，也可以是 {"nodes": [...]} 包装。
func (p *Pool) fetchDirectory(ctx context.Context, url string) ([]directoryRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDirectoryBody))
	if err != nil {
		return nil, err
	}

	var records []directoryRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var envelope directoryEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil {
		return envelope.Nodes, nil
	}

	return nil, fmt.Errorf("directory response is neither a node array nor a nodes envelope")
}

// fetchRemote 依次尝试主目录与备用目录
func (p *Pool) fetchRemote(ctx context.Context) []types.Candidate {
	urls := make([]string, 0, 2)
	if p.cfg.DirectoryURL != "" {
		urls = append(urls, p.cfg.DirectoryURL)
	}
	if p.cfg.FallbackDirectoryURL != "" {
		urls = append(urls, p.cfg.FallbackDirectoryURL)
	}

	for _, url := range urls {
		records, err := p.fetchDirectory(ctx, url)
		if err != nil {
			logger.Warn("目录拉取失败", "url", url, "err", err)
			continue
		}

		candidates := make([]types.Candidate, 0, len(records))
		for _, rec := range records {
			c := rec.toCandidate()
			if !c.Eligible() {
				logger.Debug("跳过不合格目录记录",
					"host", rec.Host,
					"port", rec.Port,
					"protocolVersion", rec.ProtocolVersion)
				continue
			}
			candidates = append(candidates, c)
		}

		if len(candidates) == 0 {
			logger.Warn("目录返回空候选列表", "url", url, "records", len(records))
			continue
		}
		return candidates
	}
	return nil
}

// sortSecureFirst secure 优先的稳定排序，其余保持原始相对顺序
func sortSecureFirst(nodes []types.Candidate) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Secure && !nodes[j].Secure
	})
}

// eligibleOnly 过滤出合格候选
func eligibleOnly(nodes []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, 0, len(nodes))
	for _, n := range nodes {
		if n.Eligible() {
			out = append(out, n)
		}
	}
	return out
}

// Fetch 返回当前候选列表，见 interfaces.CandidatePool
func (p *Pool) Fetch(ctx context.Context) []types.Candidate {
	p.mu.Lock()
	if !p.limiter.AllowN(p.clock.Now(), 1) {
		// 冷却期内：返回内存列表，内存为空时退回磁盘缓存
		if len(p.nodes) == 0 {
			if cached, fetchedAt := p.store.LoadCache(); len(cached) > 0 {
				p.nodes = eligibleOnly(cached)
				p.lastFetch = fetchedAt
			}
		}
		nodes := snapshot(p.nodes)
		p.mu.Unlock()
		return nodes
	}
	p.mu.Unlock()

	// 冷却令牌已消耗：无论本次成败，下一次远程拉取都要再等一个冷却期
	candidates := p.fetchRemote(ctx)
	now := p.clock.Now()

	if len(candidates) == 0 {
		p.mu.Lock()
		if len(p.nodes) == 0 {
			if cached, _ := p.store.LoadCache(); len(cached) > 0 {
				p.nodes = eligibleOnly(cached)
				logger.Info("远程目录不可用，使用磁盘缓存", "nodes", len(p.nodes))
			}
		}
		nodes := snapshot(p.nodes)
		p.mu.Unlock()
		return nodes
	}

	sortSecureFirst(candidates)

	p.mu.Lock()
	p.nodes = candidates
	p.lastFetch = now
	nodes := snapshot(p.nodes)
	p.mu.Unlock()

	if err := p.store.SaveCache(candidates, now); err != nil {
		logger.Warn("目录缓存落盘失败", "err", err)
	}

	logger.Info("候选池已刷新", "nodes", len(candidates))
	return nodes
}

// snapshot 复制候选列表
func snapshot(nodes []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, len(nodes))
	copy(out, nodes)
	return out
}

// ============================================================================
//                              候选轮转
// ============================================================================

// scan 按池序返回第一个未失败且探测通过的候选
//
// 探测失败的候选被标记为失败。
func (p *Pool) scan(ctx context.Context, nodes []types.Candidate) *types.Candidate {
	for i := range nodes {
		key := nodes[i].Key()

		p.mu.Lock()
		_, bad := p.failed[key]
		p.mu.Unlock()
		if bad {
			continue
		}

		if p.probe.Check(ctx, nodes[i]) {
			return &nodes[i]
		}

		logger.Debug("候选探测失败，标记", "node", key)
		p.mu.Lock()
		p.failed[key] = struct{}{}
		p.mu.Unlock()
	}
	return nil
}

// NextCandidate 返回下一个可用候选，见 interfaces.CandidatePool
func (p *Pool) NextCandidate(ctx context.Context) *types.Candidate {
	p.mu.Lock()
	if p.current != nil {
		p.failed[p.current.Key()] = struct{}{}
		logger.Debug("当前候选标记失败", "node", p.current.Key())
		p.current = nil
	}
	nodes := snapshot(p.nodes)
	p.mu.Unlock()

	if len(nodes) == 0 {
		nodes = p.Fetch(ctx)
	}

	cand := p.scan(ctx, nodes)
	if cand == nil {
		// 池耗尽：清空失败集并强制一次全新拉取，再扫一遍
		logger.Info("候选池耗尽，强制刷新后重扫")
		nodes = p.forceRefresh(ctx)
		cand = p.scan(ctx, nodes)
	}

	if cand == nil {
		// 强制刷新后仍无一存活：交由上层进入冷却，而不是
		// 无条件重试已知死亡的节点
		logger.Warn("刷新后仍无可用候选")
		return nil
	}

	p.mu.Lock()
	p.current = cand
	delete(p.failed, cand.Key())
	p.mu.Unlock()

	logger.Info("选定候选节点", "node", cand.Key(), "secure", cand.Secure)
	return cand
}

// forceRefresh 清空失败集、解除冷却并拉取
func (p *Pool) forceRefresh(ctx context.Context) []types.Candidate {
	p.mu.Lock()
	p.failed = make(map[types.NodeKey]struct{})
	p.limiter = p.newLimiter()
	p.mu.Unlock()
	return p.Fetch(ctx)
}

// Reset 为新一轮周期重置池状态，见 interfaces.CandidatePool
func (p *Pool) Reset(ctx context.Context) {
	logger.Info("重置候选池状态")
	p.forceRefresh(ctx)
}

// MarkWorking 标记候选为可用，见 interfaces.CandidatePool
func (p *Pool) MarkWorking(c types.Candidate) {
	p.mu.Lock()
	delete(p.failed, c.Key())
	p.current = &c
	p.mu.Unlock()

	if err := p.store.SaveCurrent(c); err != nil {
		logger.Warn("当前节点落盘失败", "node", c.Key(), "err", err)
	} else {
		logger.Debug("当前节点已持久化", "node", c.Key())
	}
}

// LoadPersisted 返回上次持久化的当前节点，见 interfaces.CandidatePool
//
// 交出的候选同时登记为当前节点：它失败后 NextCandidate 才能把它
// 计入失败集并真正移向下一个候选。
func (p *Pool) LoadPersisted() *types.Candidate {
	cand := p.store.LoadCurrent()
	if cand == nil {
		return nil
	}
	p.mu.Lock()
	p.current = cand
	p.mu.Unlock()
	return cand
}

// Lookup 按节点键返回池中候选，见 interfaces.CandidatePool
func (p *Pool) Lookup(key types.NodeKey) *types.Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.Key() == key {
		c := *p.current
		return &c
	}
	for i := range p.nodes {
		if p.nodes[i].Key() == key {
			c := p.nodes[i]
			return &c
		}
	}
	return nil
}

// Stats 返回池统计快照，见 interfaces.CandidatePool
func (p *Pool) Stats() types.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := types.PoolStats{
		Total:         len(p.nodes),
		FailedCount:   len(p.failed),
		LastFetchTime: p.lastFetch,
	}
	if p.current != nil {
		stats.Current = p.current.Key()
	}
	return stats
}
