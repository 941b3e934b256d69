// Package interfaces 定义 Wavelink 各子系统的公共接口边界
//
// 接口按子系统拆分：
//   - CandidatePool: 候选节点池（拉取、排序、轮转、持久化）
//   - HealthProbe: 轻量可达性探测
//   - ConnectionSupervisor: 单连接槽位监督（限时连接、启动扫描）
//   - FailoverController: 重试/退避/故障转移状态机
//   - NodeConn / ConnFactory: 外部音频节点连接库的适配边界
//
// 实现位于 internal/core 下的对应包；上层应用仅依赖本包与 pkg/types。
package interfaces
