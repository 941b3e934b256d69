// Package supervisor 实现连接监督模块
package supervisor

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置
	Config *config.Config

	// Pool 候选节点池
	Pool interfaces.CandidatePool

	// Clock 时钟
	Clock clock.Clock

	// Factory 连接工厂（可选，默认内置 websocket 工厂）
	Factory interfaces.ConnFactory `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Supervisor 连接监督者
	Supervisor interfaces.ConnectionSupervisor
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	factory := input.Factory
	if factory == nil {
		factory = NewWSFactory(input.Config.Supervisor, input.Clock)
	}

	s := New(input.Config.Supervisor, input.Pool, factory, input.Clock)
	return ModuleOutput{Supervisor: s}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("supervisor",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In

	LC         fx.Lifecycle
	Supervisor interfaces.ConnectionSupervisor
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return input.Supervisor.Teardown(ctx)
		},
	})
}

// 模块元信息常量
const (
	// Name 模块名称
	Name = "supervisor"
	// Description 模块描述
	Description = "连接监督模块，提供限时连接与启动扫描能力"
)
