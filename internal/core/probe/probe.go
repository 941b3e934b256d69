// Package probe 提供候选节点健康探测
//
// 探测只做协议信息查询级别的可达性判断，用于候选扫描剪枝，
// 成本远低于一次完整的连接尝试。
package probe

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/lib/log"
	"github.com/wavelink/go-wavelink/pkg/types"
)

var logger = log.Logger("core/probe")

// ============================================================================
//                              Probe 实现
// ============================================================================

// Result 单次探测结果
type Result struct {
	// Alive 是否存活
	Alive bool

	// StatusCode HTTP 状态码（网络层失败时为 0）
	StatusCode int

	// RTT 探测耗时
	RTT time.Duration

	// Time 探测时间
	Time time.Time
}

// Probe HealthProbe 实现
//
// 对候选的 /version 端点发起短超时 GET 请求。
type Probe struct {
	cfg    config.ProbeConfig
	client *http.Client

	mu      sync.RWMutex
	results map[types.NodeKey]Result
}

// 确保实现接口
var _ interfaces.HealthProbe = (*Probe)(nil)

// New 创建健康探测
func New(cfg config.ProbeConfig) *Probe {
	return &Probe{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout.Duration()},
		results: make(map[types.NodeKey]Result),
	}
}

// Check 执行一次探测，见 interfaces.HealthProbe
//
// 判定规则：
//   - 网络层失败或超时 → 不健康
//   - 任何 HTTP 响应（包括 401/403）→ 存活，节点可达，凭证差异
//     不在探测的职责范围内
func (p *Probe) Check(ctx context.Context, c types.Candidate) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout.Duration())
	defer cancel()

	start := time.Now()
	alive, status := p.query(probeCtx, c)
	rtt := time.Since(start)

	p.mu.Lock()
	p.results[c.Key()] = Result{
		Alive:      alive,
		StatusCode: status,
		RTT:        rtt,
		Time:       start,
	}
	p.mu.Unlock()

	if alive {
		logger.Debug("探测成功", "node", c.Key(), "status", status, "rtt", rtt)
	} else {
		logger.Debug("探测失败", "node", c.Key(), "rtt", rtt)
	}
	return alive
}

// query 发起协议信息请求
func (p *Probe) query(ctx context.Context, c types.Candidate) (bool, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RESTBaseURL()+"/version", nil)
	if err != nil {
		return false, 0
	}
	req.Header.Set("Authorization", c.Password)

	resp, err := p.client.Do(req)
	if err != nil {
		return false, 0
	}
	defer func() { _ = resp.Body.Close() }()

	// 任何 HTTP 层响应都说明节点进程在监听；401/403 仅代表凭证差异
	return true, resp.StatusCode
}

// LastResult 返回节点最近一次探测结果
func (p *Probe) LastResult(key types.NodeKey) (Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.results[key]
	return r, ok
}
