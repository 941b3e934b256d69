package wavelink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/types"
)

// ============================================================================
//                              测试替身
// ============================================================================

// stubConn 始终连接成功的 NodeConn 替身
type stubConn struct {
	mu        sync.Mutex
	key       types.NodeKey
	slot      string
	emit      interfaces.EmitFunc
	connected bool
}

func (s *stubConn) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	s.emit(types.ConnEvent{
		Type:      types.EventConnect,
		Slot:      s.slot,
		Key:       s.key,
		SessionID: "stub",
		Time:      time.Now(),
	})
	return nil
}

func (s *stubConn) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubConn) Key() types.NodeKey { return s.key }
func (s *stubConn) SessionID() string  { return "stub" }
func (s *stubConn) StopKeepalive()     {}

func (s *stubConn) Destroy(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// stubFactory 产出 stubConn 的工厂
type stubFactory struct{}

func (stubFactory) Create(c types.Candidate, slot string, emit interfaces.EmitFunc) (interfaces.NodeConn, error) {
	return &stubConn{key: c.Key(), slot: slot, emit: emit}, nil
}

// stubProbe 恒判存活的健康探测替身
type stubProbe struct{}

func (stubProbe) Check(ctx context.Context, c types.Candidate) bool { return true }

// directoryServer 返回单节点目录
func directoryServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const oneNodeDirectory = `[{"host": "node-a.example", "port": 2333, "password": "secret", "protocol_version": 4}]`

// ============================================================================
//                              选项与配置
// ============================================================================

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(WithDirectoryURLs("", ""))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)

	_, err = New(WithMaxReconnectAttempts(0))
	assert.Error(t, err)

	_, err = New(WithConnectTimeout(-time.Second))
	assert.Error(t, err)
}

func TestBuildConfigPrecedence(t *testing.T) {
	// 配置文件提供基础值
	dir := t.TempDir()
	file := filepath.Join(dir, "wavelink.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"pool": {"directory_url": "https://file.example/nodes", "fetch_cooldown": "3m"},
		"failover": {"max_reconnect_attempts": 4}
	}`), 0600))

	o := newOptions()
	require.NoError(t, WithConfigFile(file)(o))
	require.NoError(t, WithoutEnvOverrides()(o))
	require.NoError(t, WithDirectoryURLs("https://explicit.example/nodes", "")(o))

	cfg, err := o.buildConfig()
	require.NoError(t, err)

	// 显式选项覆盖配置文件
	assert.Equal(t, "https://explicit.example/nodes", cfg.Pool.DirectoryURL)
	// 未覆盖的文件值保留
	assert.Equal(t, config.Duration(3*time.Minute), cfg.Pool.FetchCooldown)
	assert.Equal(t, 4, cfg.Failover.MaxReconnectAttempts)
}

func TestBuildConfigEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvPrefix+config.EnvDirectoryURL, "https://env.example/nodes")

	o := newOptions()
	cfg, err := o.buildConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/nodes", cfg.Pool.DirectoryURL)

	// 禁用后不再读取环境变量
	o = newOptions()
	require.NoError(t, WithoutEnvOverrides()(o))
	cfg, err = o.buildConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Pool.DirectoryURL)
}

// ============================================================================
//                              客户端生命周期
// ============================================================================

func TestClientLifecycle(t *testing.T) {
	srv := directoryServer(t, oneNodeDirectory)

	client, err := New(
		WithDirectoryURLs(srv.URL, ""),
		WithDataDir(t.TempDir()),
		WithConnFactory(stubFactory{}),
		WithProbe(stubProbe{}),
		WithoutEnvOverrides(),
	)
	require.NoError(t, err)

	assert.False(t, client.IsAvailable(), "启动前不可用")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, client.Start(ctx))

	assert.True(t, client.IsAvailable())
	assert.Equal(t, types.MakeNodeKey("node-a.example", 2333), client.CurrentNode())

	st := client.Status()
	assert.True(t, st.IsConnected)
	assert.False(t, st.IsReconnecting)
	assert.Equal(t, 1, st.Pool.Total)

	// 重复 Start 幂等
	require.NoError(t, client.Start(ctx))

	require.NoError(t, client.Close(context.Background()))
	assert.False(t, client.IsAvailable())

	// Close 幂等
	require.NoError(t, client.Close(context.Background()))
}

func TestClientSubscribeReceivesEvents(t *testing.T) {
	srv := directoryServer(t, oneNodeDirectory)

	client, err := New(
		WithDirectoryURLs(srv.URL, ""),
		WithDataDir(t.TempDir()),
		WithConnFactory(stubFactory{}),
		WithProbe(stubProbe{}),
		WithoutEnvOverrides(),
	)
	require.NoError(t, err)

	var mu sync.Mutex
	var events []types.ConnEvent
	sub := client.Subscribe(func(ev types.ConnEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer func() { _ = client.Close(context.Background()) }()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, types.EventConnect, events[0].Type)
}

func TestClientStartWithEmptyDirectory(t *testing.T) {
	srv := directoryServer(t, `[]`)

	client, err := New(
		WithDirectoryURLs(srv.URL, ""),
		WithDataDir(t.TempDir()),
		WithConnFactory(stubFactory{}),
		WithProbe(stubProbe{}),
		WithoutEnvOverrides(),
	)
	require.NoError(t, err)

	// 启动扫描找不到节点不算启动失败
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer func() { _ = client.Close(context.Background()) }()

	assert.False(t, client.IsAvailable())
}
