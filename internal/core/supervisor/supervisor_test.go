package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/types"
)

// ============================================================================
//                              测试替身
// ============================================================================

func makeCandidate(host string) types.Candidate {
	return types.Candidate{
		Host:            host,
		Port:            2333,
		Password:        "secret",
		ProtocolVersion: types.RequiredProtocolVersion,
	}
}

// fakeConn 脚本化的 NodeConn 替身
//
// Connect 同步发布脚本指定的事件；silent 置位时什么都不发布，
// 用于测试超时路径。
type fakeConn struct {
	mu        sync.Mutex
	key       types.NodeKey
	slot      string
	emit      interfaces.EmitFunc
	dialErr   error
	silent    bool
	connected bool
	destroyed int
	kaStops   int
}

func (f *fakeConn) Connect(ctx context.Context) error {
	f.mu.Lock()
	silent, dialErr := f.silent, f.dialErr
	f.mu.Unlock()

	if silent {
		return nil
	}
	if dialErr != nil {
		f.emit(types.ConnEvent{
			Type:      types.EventError,
			Slot:      f.slot,
			Key:       f.key,
			SessionID: "sess-" + string(f.key),
			Err:       dialErr,
		})
		return dialErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.emit(types.ConnEvent{
		Type:      types.EventConnect,
		Slot:      f.slot,
		Key:       f.key,
		SessionID: "sess-" + string(f.key),
	})
	return nil
}

func (f *fakeConn) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) Key() types.NodeKey { return f.key }
func (f *fakeConn) SessionID() string  { return "sess-" + string(f.key) }

func (f *fakeConn) StopKeepalive() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kaStops++
}

func (f *fakeConn) Destroy(ctx context.Context, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.destroyed++
	return nil
}

var _ interfaces.NodeConn = (*fakeConn)(nil)

// fakeFactory 按主机名脚本化连接结果
type fakeFactory struct {
	mu       sync.Mutex
	dialErrs map[string]error // host → 拨号错误
	silent   map[string]bool  // host → 不发布任何事件
	created  []*fakeConn
}

func (f *fakeFactory) Create(c types.Candidate, slot string, emit interfaces.EmitFunc) (interfaces.NodeConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn := &fakeConn{
		key:     c.Key(),
		slot:    slot,
		emit:    emit,
		dialErr: f.dialErrs[c.Host],
		silent:  f.silent[c.Host],
	}
	f.created = append(f.created, conn)
	return conn, nil
}

var _ interfaces.ConnFactory = (*fakeFactory)(nil)

// fakePool 顺序出队的候选池替身
type fakePool struct {
	mu         sync.Mutex
	candidates []types.Candidate
	idx        int
	persisted  *types.Candidate
	working    []types.NodeKey
}

func (p *fakePool) Fetch(ctx context.Context) []types.Candidate { return p.candidates }

func (p *fakePool) NextCandidate(ctx context.Context) *types.Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idx >= len(p.candidates) {
		return nil
	}
	c := p.candidates[p.idx]
	p.idx++
	return &c
}

func (p *fakePool) MarkWorking(c types.Candidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.working = append(p.working, c.Key())
}

func (p *fakePool) LoadPersisted() *types.Candidate { return p.persisted }

func (p *fakePool) Lookup(key types.NodeKey) *types.Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.candidates {
		if p.candidates[i].Key() == key {
			c := p.candidates[i]
			return &c
		}
	}
	return nil
}

func (p *fakePool) Reset(ctx context.Context) {}
func (p *fakePool) Stats() types.PoolStats {
	return types.PoolStats{Total: len(p.candidates)}
}

var _ interfaces.CandidatePool = (*fakePool)(nil)

func newTestSupervisor(pool *fakePool, factory *fakeFactory) *Supervisor {
	cfg := config.DefaultSupervisorConfig()
	return New(cfg, pool, factory, clock.New())
}

// ============================================================================
//                              限时连接
// ============================================================================

func TestConnectOnceSuccess(t *testing.T) {
	factory := &fakeFactory{}
	s := newTestSupervisor(&fakePool{}, factory)
	a := makeCandidate("a.example")

	err := s.ConnectOnce(context.Background(), a, time.Second)
	require.NoError(t, err)
	assert.True(t, s.Connected())
	assert.Equal(t, a.Key(), s.CurrentKey())
}

func TestConnectOnceDialError(t *testing.T) {
	factory := &fakeFactory{dialErrs: map[string]error{
		"a.example": errors.New("connection refused"),
	}}
	s := newTestSupervisor(&fakePool{}, factory)

	err := s.ConnectOnce(context.Background(), makeCandidate("a.example"), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, s.Connected())

	// 失败路径上连接被清理
	require.Len(t, factory.created, 1)
	assert.Equal(t, 1, factory.created[0].destroyed)
}

func TestConnectOnceTimeout(t *testing.T) {
	factory := &fakeFactory{silent: map[string]bool{"a.example": true}}
	cfg := config.DefaultSupervisorConfig()
	clk := clock.NewMock()
	s := New(cfg, &fakePool{}, factory, clk)

	done := make(chan error, 1)
	go func() {
		done <- s.ConnectOnce(context.Background(), makeCandidate("a.example"), 5*time.Second)
	}()

	// 等待调用进入定时器等待后推进 mock 时钟
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		select {
		case err := <-done:
			done <- err
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, <-done, types.ErrConnectTimeout)
	assert.False(t, s.Connected())
}

func TestConnectOnceCancelledContext(t *testing.T) {
	factory := &fakeFactory{silent: map[string]bool{"a.example": true}}
	s := newTestSupervisor(&fakePool{}, factory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ConnectOnce(ctx, makeCandidate("a.example"), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectOnceReplacesExistingConnection(t *testing.T) {
	factory := &fakeFactory{}
	s := newTestSupervisor(&fakePool{}, factory)

	require.NoError(t, s.ConnectOnce(context.Background(), makeCandidate("a.example"), time.Second))
	require.NoError(t, s.ConnectOnce(context.Background(), makeCandidate("b.example"), time.Second))

	require.Len(t, factory.created, 2)
	first := factory.created[0]
	assert.Equal(t, 1, first.kaStops, "替换前必须停止旧连接 keepalive")
	assert.Equal(t, 1, first.destroyed)
	assert.Equal(t, makeCandidate("b.example").Key(), s.CurrentKey())
}

func TestConnectOnceCleansUpScopedListener(t *testing.T) {
	factory := &fakeFactory{}
	s := newTestSupervisor(&fakePool{}, factory)

	before := s.events.count()
	_ = s.ConnectOnce(context.Background(), makeCandidate("a.example"), time.Second)
	assert.Equal(t, before, s.events.count(), "临时监听必须在返回前注销")

	factory.dialErrs = map[string]error{"b.example": errors.New("refused")}
	_ = s.ConnectOnce(context.Background(), makeCandidate("b.example"), time.Second)
	assert.Equal(t, before, s.events.count(), "失败路径同样注销临时监听")
}

func TestConnectOnceIgnoresOtherNodeEvents(t *testing.T) {
	factory := &fakeFactory{silent: map[string]bool{"a.example": true}}
	s := newTestSupervisor(&fakePool{}, factory)

	done := make(chan error, 1)
	go func() {
		done <- s.ConnectOnce(context.Background(), makeCandidate("a.example"), 200*time.Millisecond)
	}()

	// 其他节点的事件不应结算本次尝试
	time.Sleep(20 * time.Millisecond)
	s.publish(types.ConnEvent{
		Type: types.EventConnect,
		Slot: "main",
		Key:  makeCandidate("other.example").Key(),
	})

	assert.ErrorIs(t, <-done, types.ErrConnectTimeout)
}

func TestConnectOnceIgnoresStaleSessionEvents(t *testing.T) {
	factory := &fakeFactory{silent: map[string]bool{"a.example": true}}
	s := newTestSupervisor(&fakePool{}, factory)
	a := makeCandidate("a.example")

	done := make(chan error, 1)
	go func() {
		done <- s.ConnectOnce(context.Background(), a, 200*time.Millisecond)
	}()

	// 同一节点上前次连接的迟到错误事件：会话 ID 不同，不得结算本次尝试
	time.Sleep(20 * time.Millisecond)
	s.publish(types.ConnEvent{
		Type:      types.EventError,
		Slot:      "main",
		Key:       a.Key(),
		SessionID: "sess-stale",
		Err:       errors.New("context canceled"),
	})

	// 本会话的 connect 事件正常结算
	time.Sleep(20 * time.Millisecond)
	s.publish(types.ConnEvent{
		Type:      types.EventConnect,
		Slot:      "main",
		Key:       a.Key(),
		SessionID: "sess-" + string(a.Key()),
	})

	assert.NoError(t, <-done)
}

// ============================================================================
//                              启动扫描
// ============================================================================

func TestFastScanConnectsPersistedFirst(t *testing.T) {
	persisted := makeCandidate("saved.example")
	pool := &fakePool{
		candidates: []types.Candidate{makeCandidate("a.example")},
		persisted:  &persisted,
	}
	factory := &fakeFactory{}
	s := newTestSupervisor(pool, factory)

	require.NoError(t, s.FastScan(context.Background(), 0, time.Second))
	require.Len(t, factory.created, 1)
	assert.Equal(t, persisted.Key(), factory.created[0].key)
	assert.Equal(t, []types.NodeKey{persisted.Key()}, pool.working)
}

func TestFastScanFallsThroughToPoolOrder(t *testing.T) {
	a, b := makeCandidate("a.example"), makeCandidate("b.example")
	pool := &fakePool{candidates: []types.Candidate{a, b}}
	factory := &fakeFactory{dialErrs: map[string]error{
		"a.example": errors.New("refused"),
	}}
	s := newTestSupervisor(pool, factory)

	require.NoError(t, s.FastScan(context.Background(), 0, time.Second))
	require.Len(t, factory.created, 2)
	assert.Equal(t, a.Key(), factory.created[0].key)
	assert.Equal(t, b.Key(), factory.created[1].key)
	assert.Equal(t, []types.NodeKey{b.Key()}, pool.working)
}

func TestFastScanExhaustsCandidates(t *testing.T) {
	a := makeCandidate("a.example")
	pool := &fakePool{candidates: []types.Candidate{a}}
	factory := &fakeFactory{dialErrs: map[string]error{
		"a.example": errors.New("refused"),
	}}
	s := newTestSupervisor(pool, factory)

	err := s.FastScan(context.Background(), 0, time.Second)
	assert.ErrorIs(t, err, types.ErrScanExhausted)
}

func TestFastScanRespectsAttemptCap(t *testing.T) {
	var candidates []types.Candidate
	dialErrs := map[string]error{}
	for _, h := range []string{"a", "b", "c", "d", "e"} {
		host := h + ".example"
		candidates = append(candidates, makeCandidate(host))
		dialErrs[host] = errors.New("refused")
	}
	pool := &fakePool{candidates: candidates}
	factory := &fakeFactory{dialErrs: dialErrs}
	s := newTestSupervisor(pool, factory)

	err := s.FastScan(context.Background(), 3, time.Second)
	assert.ErrorIs(t, err, types.ErrScanExhausted)
	assert.Len(t, factory.created, 3)
}

func TestFastScanStopsOnCancelledContext(t *testing.T) {
	a, b := makeCandidate("a.example"), makeCandidate("b.example")
	pool := &fakePool{candidates: []types.Candidate{a, b}}
	factory := &fakeFactory{dialErrs: map[string]error{
		"a.example": errors.New("refused"),
		"b.example": errors.New("refused"),
	}}
	s := newTestSupervisor(pool, factory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.FastScan(ctx, 0, time.Second)
	require.Error(t, err)
	assert.LessOrEqual(t, len(factory.created), 1, "context 取消后不再继续扫描")
}

// ============================================================================
//                              生命周期
// ============================================================================

func TestTeardownStopsKeepaliveBeforeDestroy(t *testing.T) {
	factory := &fakeFactory{}
	s := newTestSupervisor(&fakePool{}, factory)

	require.NoError(t, s.ConnectOnce(context.Background(), makeCandidate("a.example"), time.Second))
	require.NoError(t, s.Teardown(context.Background()))

	conn := factory.created[0]
	assert.Equal(t, 1, conn.kaStops)
	assert.Equal(t, 1, conn.destroyed)
	assert.False(t, s.Connected())
	assert.Empty(t, s.CurrentKey())

	// 空槽位幂等
	require.NoError(t, s.Teardown(context.Background()))
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	s := newTestSupervisor(&fakePool{}, &fakeFactory{})

	var events int
	sub := s.Subscribe(func(types.ConnEvent) { events++ })
	require.Equal(t, 1, s.events.count())

	s.publish(types.ConnEvent{Type: types.EventConnect})
	assert.Equal(t, 1, events)

	sub.Close()
	sub.Close()
	assert.Zero(t, s.events.count())

	s.publish(types.ConnEvent{Type: types.EventConnect})
	assert.Equal(t, 1, events, "关闭后不再收到事件")
}
