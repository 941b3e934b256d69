// Package pool 实现候选节点池
//
// Pool 模块负责：
//   - 从远程目录拉取候选节点（主/备双源），过滤不合格记录
//   - secure 优先的稳定排序
//   - 失败集轮转：按池序返回下一个健康探测通过的候选
//   - 磁盘持久化：当前节点与目录缓存两个 JSON 文件（原子写）
//   - 拉取冷却：两次远程拉取之间的最小间隔
//
// 所有对外方法都不向调用方抛错：拉取失败降级为返回可用的缓存列表。
package pool
