package pool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/types"
)

// ============================================================================
//                              测试替身
// ============================================================================

// fakeProbe 按主机名表返回探测结果，未登记的主机视为存活
type fakeProbe struct {
	dead   map[string]bool
	checks atomic.Int64
}

func (f *fakeProbe) Check(ctx context.Context, c types.Candidate) bool {
	f.checks.Add(1)
	return !f.dead[c.Host]
}

// directoryServer 返回固定 JSON 目录并计数命中次数
func directoryServer(t *testing.T, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func record(host string, port int, secure string) string {
	s := `{"host": "` + host + `", "port": ` + strconv.Itoa(port) + `, "password": "secret", "protocol_version": 4`
	if secure != "" {
		s += `, "secure": ` + secure
	}
	return s + `}`
}

func newTestPool(t *testing.T, dirURL, fallbackURL string, probe *fakeProbe) (*Pool, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	cfg := config.DefaultPoolConfig()
	cfg.DirectoryURL = dirURL
	cfg.FallbackDirectoryURL = fallbackURL
	cfg.DataDir = t.TempDir()
	if probe == nil {
		probe = &fakeProbe{}
	}
	return New(cfg, probe, clk), clk
}

// ============================================================================
//                              目录拉取
// ============================================================================

func TestFetchSortsSecureFirstStable(t *testing.T) {
	body := `[` +
		record("plain1.example", 2333, "false") + `,` +
		record("secure1.example", 443, "true") + `,` +
		record("plain2.example", 2334, "false") + `,` +
		record("secure2.example", 444, "true") +
		`]`
	srv, _ := directoryServer(t, body)
	p, _ := newTestPool(t, srv.URL, "", nil)

	nodes := p.Fetch(context.Background())
	require.Len(t, nodes, 4)

	// secure 在前，且两组内部保持目录原始相对顺序
	assert.Equal(t, "secure1.example", nodes[0].Host)
	assert.Equal(t, "secure2.example", nodes[1].Host)
	assert.Equal(t, "plain1.example", nodes[2].Host)
	assert.Equal(t, "plain2.example", nodes[3].Host)
}

func TestFetchAcceptsEnvelopeFormat(t *testing.T) {
	body := `{"nodes": [` + record("a.example", 2333, "") + `]}`
	srv, _ := directoryServer(t, body)
	p, _ := newTestPool(t, srv.URL, "", nil)

	nodes := p.Fetch(context.Background())
	require.Len(t, nodes, 1)
	assert.Equal(t, "a.example", nodes[0].Host)
}

func TestFetchInfersSecureFromPort(t *testing.T) {
	body := `[` +
		record("a.example", 443, "") + `,` +
		record("b.example", 2333, "") +
		`]`
	srv, _ := directoryServer(t, body)
	p, _ := newTestPool(t, srv.URL, "", nil)

	nodes := p.Fetch(context.Background())
	require.Len(t, nodes, 2)
	assert.True(t, nodes[0].Secure, "443 端口未显式声明时推断为 secure")
	assert.False(t, nodes[1].Secure)
}

func TestFetchFiltersIneligibleRecords(t *testing.T) {
	body := `[
		{"host": "old.example", "port": 2333, "password": "x", "protocol_version": 3},
		{"host": "nopass.example", "port": 2333, "password": "", "protocol_version": 4},
		{"host": "good.example", "port": 2333, "password": "x", "protocol_version": 4}
	]`
	srv, _ := directoryServer(t, body)
	p, _ := newTestPool(t, srv.URL, "", nil)

	nodes := p.Fetch(context.Background())
	require.Len(t, nodes, 1)
	assert.Equal(t, "good.example", nodes[0].Host)
}

func TestFetchCooldown(t *testing.T) {
	srv, hits := directoryServer(t, `[`+record("a.example", 2333, "")+`]`)
	p, clk := newTestPool(t, srv.URL, "", nil)

	p.Fetch(context.Background())
	assert.Equal(t, int64(1), hits.Load())

	// 冷却期内重复拉取不触达远程
	p.Fetch(context.Background())
	p.Fetch(context.Background())
	assert.Equal(t, int64(1), hits.Load())

	// 冷却期过后再次触达
	clk.Add(11 * time.Minute)
	p.Fetch(context.Background())
	assert.Equal(t, int64(2), hits.Load())
}

func TestFetchFallbackDirectory(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(primary.Close)
	fallback, hits := directoryServer(t, `[`+record("b.example", 2333, "")+`]`)

	p, _ := newTestPool(t, primary.URL, fallback.URL, nil)
	nodes := p.Fetch(context.Background())

	require.Len(t, nodes, 1)
	assert.Equal(t, "b.example", nodes[0].Host)
	assert.Equal(t, int64(1), hits.Load())
}

func TestFetchFallsBackToDiskCacheWhenRemoteDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // 目录完全不可达

	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	cfg := config.DefaultPoolConfig()
	cfg.DirectoryURL = url
	cfg.DataDir = t.TempDir()

	// 预埋一份过期缓存：预热不会采用，但远程失败时仍作最后手段
	stale := clk.Now().Add(-2 * time.Hour)
	require.NoError(t, NewStore(cfg.DataDir).SaveCache(
		[]types.Candidate{testNode("cached.example")}, stale))

	p := New(cfg, &fakeProbe{}, clk)
	assert.Empty(t, p.Stats().Total, "过期缓存不预热内存")

	nodes := p.Fetch(context.Background())
	require.Len(t, nodes, 1)
	assert.Equal(t, "cached.example", nodes[0].Host)
}

func TestNewWarmsFromFreshCache(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	cfg := config.DefaultPoolConfig()
	cfg.DataDir = t.TempDir()

	fresh := clk.Now().Add(-10 * time.Minute)
	require.NoError(t, NewStore(cfg.DataDir).SaveCache(
		[]types.Candidate{testNode("warm.example")}, fresh))

	p := New(cfg, &fakeProbe{}, clk)
	assert.Equal(t, 1, p.Stats().Total)
}

// ============================================================================
//                              候选轮转
// ============================================================================

func TestNextCandidateSkipsDeadNodes(t *testing.T) {
	body := `[` +
		record("dead.example", 2333, "") + `,` +
		record("alive.example", 2334, "") +
		`]`
	srv, _ := directoryServer(t, body)
	probe := &fakeProbe{dead: map[string]bool{"dead.example": true}}
	p, _ := newTestPool(t, srv.URL, "", probe)

	cand := p.NextCandidate(context.Background())
	require.NotNil(t, cand)
	assert.Equal(t, "alive.example", cand.Host)

	stats := p.Stats()
	assert.Equal(t, 1, stats.FailedCount, "探测失败的候选进入失败集")
	assert.Equal(t, cand.Key(), stats.Current)
}

func TestNextCandidateMarksCurrentFailed(t *testing.T) {
	body := `[` +
		record("a.example", 2333, "") + `,` +
		record("b.example", 2334, "") +
		`]`
	srv, _ := directoryServer(t, body)
	p, _ := newTestPool(t, srv.URL, "", nil)

	first := p.NextCandidate(context.Background())
	require.NotNil(t, first)
	assert.Equal(t, "a.example", first.Host)

	// 再次索取：当前候选视为失败，轮转到下一个
	second := p.NextCandidate(context.Background())
	require.NotNil(t, second)
	assert.Equal(t, "b.example", second.Host)
}

func TestNextCandidateForcesRefreshWhenExhausted(t *testing.T) {
	srv, hits := directoryServer(t, `[`+record("a.example", 2333, "")+`]`)
	probe := &fakeProbe{dead: map[string]bool{"a.example": true}}
	p, _ := newTestPool(t, srv.URL, "", probe)

	cand := p.NextCandidate(context.Background())
	assert.Nil(t, cand, "强制刷新后仍无存活候选时返回 nil")
	// 首次拉取 + 强制刷新各触达一次（冷却被强制解除）
	assert.Equal(t, int64(2), hits.Load())
}

func TestNextCandidateRecoversAfterForcedRefresh(t *testing.T) {
	srv, _ := directoryServer(t, `[`+record("a.example", 2333, "")+`]`)
	probe := &fakeProbe{dead: map[string]bool{"a.example": true}}
	p, _ := newTestPool(t, srv.URL, "", probe)

	require.Nil(t, p.NextCandidate(context.Background()))

	// 节点恢复后强制刷新路径应能重新找到它
	probe.dead = map[string]bool{}
	cand := p.NextCandidate(context.Background())
	require.NotNil(t, cand)
	assert.Equal(t, "a.example", cand.Host)
}

func TestMarkWorkingPersistsCurrentNode(t *testing.T) {
	srv, _ := directoryServer(t, `[`+record("a.example", 2333, "")+`]`)
	p, _ := newTestPool(t, srv.URL, "", nil)

	node := testNode("a.example")
	p.MarkWorking(node)

	loaded := p.LoadPersisted()
	require.NotNil(t, loaded)
	assert.Equal(t, node, *loaded)
	assert.Equal(t, node.Key(), p.Stats().Current)
}

func TestNextCandidateAdvancesPastFailedPersistedNode(t *testing.T) {
	body := `[` +
		record("a.example", 2333, "") + `,` +
		record("b.example", 2334, "") +
		`]`
	srv, _ := directoryServer(t, body)
	p, _ := newTestPool(t, srv.URL, "", nil)

	p.MarkWorking(testNode("a.example"))

	// 重启场景：持久化节点交出后即登记为当前节点
	persisted := p.LoadPersisted()
	require.NotNil(t, persisted)
	assert.Equal(t, "a.example", persisted.Host)

	// 该节点失败（如认证被拒，探测层仍判其存活）后索取下一个候选：
	// 绝不能再交回同一个 host:port
	next := p.NextCandidate(context.Background())
	require.NotNil(t, next)
	assert.Equal(t, "b.example", next.Host)
	assert.NotEqual(t, persisted.Key(), next.Key())
}

func TestLookupFindsKnownNodes(t *testing.T) {
	body := `[` +
		record("a.example", 2333, "") + `,` +
		record("b.example", 2334, "") +
		`]`
	srv, _ := directoryServer(t, body)
	p, _ := newTestPool(t, srv.URL, "", nil)
	p.Fetch(context.Background())

	found := p.Lookup(types.MakeNodeKey("b.example", 2334))
	require.NotNil(t, found)
	assert.Equal(t, "b.example", found.Host)

	assert.Nil(t, p.Lookup(types.MakeNodeKey("unknown.example", 1)))
}

func TestResetClearsFailedSetAndRefetches(t *testing.T) {
	srv, hits := directoryServer(t, `[`+record("a.example", 2333, "")+`]`)
	probe := &fakeProbe{dead: map[string]bool{"a.example": true}}
	p, _ := newTestPool(t, srv.URL, "", probe)

	p.NextCandidate(context.Background()) // a 进入失败集
	require.NotZero(t, p.Stats().FailedCount)

	before := hits.Load()
	p.Reset(context.Background())

	assert.Zero(t, p.Stats().FailedCount)
	assert.Greater(t, hits.Load(), before, "Reset 解除冷却并强制拉取")
}
