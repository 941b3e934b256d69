package failover

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

	// Supervisor 连接监督者
	Supervisor interfaces.ConnectionSupervisor

	// Clock 时钟
	Clock clock.Clock

	// Lifecycle fx 生命周期
	Lifecycle fx.Lifecycle
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Controller 故障转移控制器
	Controller interfaces.FailoverController
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	c := New(input.Config, input.Pool, input.Supervisor, input.Clock)
	input.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Destroy(ctx)
		},
	})
	return ModuleOutput{Controller: c}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("failover",
		fx.Provide(ProvideServices),
	)
}

// 模块元信息常量
const (
	// Name 模块名称
	Name = "failover"
	// Description 模块描述
	Description = "故障转移控制器模块，提供重试、退避与节点切换状态机"
)
