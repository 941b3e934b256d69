// Package failover 实现重试/退避/故障转移状态机
//
// Failover 模块负责：
//   - 故障分类：认证类（立即切换节点）与瞬时类（同节点退避重试）
//   - 分层重试：单节点指数退避 → 节点轮转 → 整轮耗尽后冷却
//   - 周期性健康检查与兜底复位检查
//   - 重入保护与防死锁的保护超时强制清除
//
// 状态由控制器单写：ConnectionState 的任何字段都只在控制器自身
// 方法内变更，定时器回调与网络事件回调通过同一把锁串行化。
// 裁决逻辑（decide.go）是纯函数，不依赖真实定时器即可测试。
package failover
