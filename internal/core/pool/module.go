// Package pool 实现候选节点池模块
package pool

import (
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

	// Probe 健康探测
	Probe interfaces.HealthProbe

	// Clock 时钟
	Clock clock.Clock
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Pool 候选节点池
	Pool interfaces.CandidatePool
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	p := New(input.Config.Pool, input.Probe, input.Clock)
	return ModuleOutput{Pool: p}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("pool",
		fx.Provide(ProvideServices),
	)
}

// 模块元信息常量
const (
	// Name 模块名称
	Name = "pool"
	// Description 模块描述
	Description = "候选节点池模块，提供目录拉取、排序、轮转与持久化能力"
)
