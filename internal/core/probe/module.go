// Package probe 实现健康探测模块
package probe

import (
	"go.uber.org/fx"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置
	Config *config.Config
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Probe 健康探测
	Probe interfaces.HealthProbe
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	return ModuleOutput{Probe: New(input.Config.Probe)}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("probe",
		fx.Provide(ProvideServices),
	)
}

// 模块元信息常量
const (
	// Name 模块名称
	Name = "probe"
	// Description 模块描述
	Description = "健康探测模块，提供候选节点可达性检查能力"
)
