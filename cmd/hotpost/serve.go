package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thongnm19089/share-fb/internal/api"
	"github.com/thongnm19089/share-fb/internal/utils"
)

var (
	listenAddr  string
	noScheduler bool
)

// pruneInterval 清理已结束任务的周期
const pruneInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP接口和自动扫描",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		listen := a.cfg.Server.Listen
		if listenAddr != "" {
			listen = listenAddr
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return api.NewServer(a.runner).Run(gctx, listen)
		})
		if !noScheduler {
			g.Go(func() error {
				return a.scheduler.Run(gctx)
			})
		}
		g.Go(func() error {
			return pruneLoop(gctx, a, a.cfg.Jobs.TTL)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		utils.Info("👋 服务已停止")
		return nil
	},
}

// pruneLoop 定期删除超过保留期的已结束任务
func pruneLoop(ctx context.Context, a *app, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			n, err := a.registry.Prune(ctx, now.Add(-ttl))
			if err != nil {
				utils.Warnf("清理任务失败: %v", err)
				continue
			}
			if n > 0 {
				utils.Debugf("已清理 %d 个过期任务", n)
			}
		}
	}
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "监听地址, 默认使用 server.listen")
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "不运行自动扫描")
}
