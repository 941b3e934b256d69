// Package main 提供 wavelink 命令行入口
//
// 以独立进程方式维持一条到音频节点的控制面连接，主要用于部署验证
// 与目录/节点联调。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	wavelink "github.com/wavelink/go-wavelink"
	"github.com/wavelink/go-wavelink/pkg/lib/log"
	"github.com/wavelink/go-wavelink/pkg/types"
)

var logger = log.Logger("wavelink/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 配置优先级（从高到低）：
//  1. 命令行参数（运行时覆盖）
//  2. 环境变量（WAVELINK_* 前缀）
//  3. 配置文件（持久化配置）
//  4. 默认值
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile   = flag.String("config", "", "配置文件路径（JSON）")
	directoryURL = flag.String("directory-url", "", "节点目录地址")
	fallbackURL  = flag.String("fallback-url", "", "备用目录地址")
	dataDir      = flag.String("data-dir", "", "持久化目录（默认: ~/.wavelink）")

	statusEvery = flag.Duration("status-every", 30*time.Second, "状态输出间隔（0 = 不输出）")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(wavelink.VersionInfo())
		return nil
	}

	log.InitFromEnv()

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	client, err := wavelink.New(opts...)
	if err != nil {
		return fmt.Errorf("创建客户端失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("📦 %s\n", wavelink.VersionInfo())
	logger.Info("启动 wavelink", "version", wavelink.Version, "commit", wavelink.GitCommit)

	sub := client.Subscribe(func(ev types.ConnEvent) {
		switch ev.Type {
		case types.EventConnect:
			fmt.Printf("✅ 已连接节点 %s\n", ev.Key)
		case types.EventDisconnect:
			if !ev.Intentional {
				fmt.Printf("⚠️  节点 %s 断开: code=%d reason=%q\n", ev.Key, ev.CloseCode, ev.Reason)
			}
		}
	})
	defer sub.Close()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = client.Close(shutdownCtx)
	}()

	if client.IsAvailable() {
		fmt.Printf("节点可用: %s\n", client.CurrentNode())
	} else {
		fmt.Println("暂无可用节点，后台持续重连中")
	}

	fmt.Println("按 Ctrl+C 退出")
	waitForSignal(ctx, client)

	fmt.Println("\n正在关闭...")
	return nil
}

// buildOptions 构建客户端选项
func buildOptions() ([]wavelink.Option, error) {
	var opts []wavelink.Option

	if *configFile != "" {
		opts = append(opts, wavelink.WithConfigFile(*configFile))
	}
	if *directoryURL != "" {
		opts = append(opts, wavelink.WithDirectoryURLs(*directoryURL, *fallbackURL))
	} else if *fallbackURL != "" {
		return nil, fmt.Errorf("指定 -fallback-url 时必须同时指定 -directory-url")
	}
	if *dataDir != "" {
		opts = append(opts, wavelink.WithDataDir(*dataDir))
	}
	return opts, nil
}

// waitForSignal 等待退出信号，期间按需输出状态
func waitForSignal(ctx context.Context, client *wavelink.Client) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var statusCh <-chan time.Time
	if *statusEvery > 0 {
		ticker := time.NewTicker(*statusEvery)
		defer ticker.Stop()
		statusCh = ticker.C
	}

	for {
		select {
		case <-sigCh:
			return
		case <-ctx.Done():
			return
		case <-statusCh:
			printStatus(client)
		}
	}
}

// printStatus 输出状态快照
func printStatus(client *wavelink.Client) {
	st := client.Status()
	switch {
	case st.IsConnected:
		logger.Info("状态",
			"connected", true,
			"node", client.CurrentNode(),
			"lastPing", st.LastPing.Format(time.RFC3339))
	case st.IsWaitingForReset:
		logger.Warn("状态", "connected", false, "phase", "cooldown")
	case st.IsReconnecting:
		logger.Warn("状态",
			"connected", false,
			"phase", "reconnecting",
			"attempts", st.ReconnectAttempts,
			"nodesTried", st.NodesTriedThisCycle,
			"total", st.TotalNodesInCycle)
	default:
		logger.Warn("状态", "connected", false, "phase", "idle")
	}
}
