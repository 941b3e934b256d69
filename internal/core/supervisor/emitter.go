package supervisor

import (
	"sync"

	"github.com/wavelink/go-wavelink/pkg/interfaces"
	"github.com/wavelink/go-wavelink/pkg/types"
)

// ============================================================================
//                              事件分发
// ============================================================================

// emitter 连接事件分发器
//
// 订阅以句柄形式返回，Close 幂等。发布时复制处理器列表，
// 避免在回调执行期间持有锁。
type emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(types.ConnEvent)
}

// newEmitter 创建事件分发器
func newEmitter() *emitter {
	return &emitter{handlers: make(map[int]func(types.ConnEvent))}
}

// subscribe 注册事件处理器
func (e *emitter) subscribe(handler func(types.ConnEvent)) *subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	return &subscription{emitter: e, id: id}
}

// publish 同步分发事件给所有订阅者
func (e *emitter) publish(ev types.ConnEvent) {
	e.mu.RLock()
	handlers := make([]func(types.ConnEvent), 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// count 返回当前订阅数
func (e *emitter) count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// subscription 订阅句柄
type subscription struct {
	emitter *emitter
	id      int
	once    sync.Once
}

// 确保实现接口
var _ interfaces.Subscription = (*subscription)(nil)

// Close 注销订阅，幂等
func (s *subscription) Close() {
	s.once.Do(func() {
		s.emitter.mu.Lock()
		delete(s.emitter.handlers, s.id)
		s.emitter.mu.Unlock()
	})
}
