package wavelink

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/wavelink/go-wavelink/config"
	"github.com/wavelink/go-wavelink/internal/core/failover"
	"github.com/wavelink/go-wavelink/internal/core/pool"
	"github.com/wavelink/go-wavelink/internal/core/probe"
	"github.com/wavelink/go-wavelink/internal/core/supervisor"
	"github.com/wavelink/go-wavelink/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 组装全部内部模块并回填 Client 依赖。
//
// 加载顺序（按依赖）：
//  1. Probe（无依赖）
//  2. Pool（依赖 Probe）
//  3. Supervisor（依赖 Pool，连接工厂可选注入）
//  4. Failover（依赖 Pool 与 Supervisor）
func buildFxApp(cfg *config.Config, o *options, c *Client) (*fx.App, error) {
	modules := []fx.Option{
		// 配置注入
		fx.Supply(cfg),

		// 时钟（测试可通过 WithClock 替换）
		fx.Provide(func() clock.Clock {
			if o.clock != nil {
				return o.clock
			}
			return clock.New()
		}),

		// 核心模块
		pool.Module(),
		supervisor.Module(),
		failover.Module(),
	}

	// 健康探测：外部注入优先，否则使用内置 HTTP 探测模块
	if o.probe != nil {
		probeImpl := o.probe
		modules = append(modules, fx.Provide(func() interfaces.HealthProbe {
			return probeImpl
		}))
	} else {
		modules = append(modules, probe.Module())
	}

	// 外部连接工厂（可选）
	if o.factory != nil {
		factory := o.factory
		modules = append(modules, fx.Provide(func() interfaces.ConnFactory {
			return factory
		}))
	}

	// 用户扩展
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// Client 依赖回填
	modules = append(modules, fx.Populate(&c.pool, &c.supervisor, &c.controller))

	// 禁用 Fx 日志输出（避免干扰用户日志）
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.NopLogger,
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}
