// Package supervisor 实现单连接槽位监督
//
// Supervisor 模块负责：
//   - 持有唯一逻辑连接槽位，创建/销毁底层节点连接
//   - 限时连接尝试（ConnectOnce）：在 connect 事件、error 事件与
//     超时三者中最先到达者处结算
//   - 启动期快速扫描（FastScan）：持久化节点优先，其次池序
//   - 连接事件的订阅分发，订阅句柄保证在所有退出路径上释放
//
// 内置基于 websocket 的节点连接适配器；外部连接库可通过
// interfaces.ConnFactory 替换。
package supervisor
