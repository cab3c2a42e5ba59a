package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/thongnm19089/share-fb/internal/utils"
)

var scanWatch bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "检查到期的自动扫描目标并爬取",
	Long: `对开启 auto_scan 的目标执行一次调度判断, 到期的目标立即爬取.

默认策略为每日两次: 上午一次, 中午之后再一次; 配置了 scan_time 的目标每天在该时刻之后爬取一次.
使用 --watch 按 scheduler.interval 持续运行.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		if scanWatch {
			if err := a.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}

		queued, err := a.scheduler.EvaluateAndQueue(ctx, time.Now())
		if err != nil {
			return err
		}
		if len(queued) == 0 {
			utils.Info("没有需要扫描的目标")
			return nil
		}
		utils.Infof("⏳ 等待 %d 个任务完成...", len(queued))
		done := make(chan struct{})
		go func() {
			a.runner.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			utils.Warn("收到中断信号, 正在取消任务...")
		}
		utils.Info("✨ 扫描完成")
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "持续运行调度循环")
}
