// Package wavelink 提供音频节点控制面的弹性接入能力
//
// Wavelink 面向依赖远程音频处理节点的宿主应用：节点从远程目录获取，
// 随时可能失效或轮换，Wavelink 负责让宿主始终“尽最大努力”保有一条
// 可用的节点控制面连接。
//
// 核心组件：
//   - 候选节点池：目录拉取、secure 优先排序、失败轮转与磁盘持久化
//   - 健康探测：低成本的候选可达性剪枝
//   - 连接监督：唯一连接槽位上的限时连接与启动快速扫描
//   - 故障转移控制器：指数退避、节点切换、冷却与周期健康监控
//
// 最小使用方式：
//
//	client, err := wavelink.New(
//		wavelink.WithDirectoryURLs("https://directory.example/nodes", ""),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	if client.IsAvailable() {
//		// 节点可用
//	}
//
// 节点故障不会以错误形式向上传播：宿主通过 IsAvailable 与 Status
// 观察可用性，通过 Subscribe 订阅连接生命周期事件，通过
// ForceNodeSwitch 在旁路信号（如请求级超时）探知节点失灵时手动切换。
package wavelink
