package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thongnm19089/share-fb/internal/core"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/utils"
)

var (
	crawlTarget     string
	crawlCredential string
	reportDir       string
	noProgress      bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "立即爬取一个目标或全部目标",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateTargetID(crawlTarget); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		cred, err := a.runner.Credential(crawlCredential)
		if err != nil {
			return err
		}
		jobID, err := a.runner.StartCrawl(ctx, crawlTarget, cred)
		if err != nil {
			return fmt.Errorf("启动任务失败: %w", err)
		}

		job, err := waitForJob(ctx, a.runner, jobID, !noProgress)
		if err != nil {
			return err
		}
		printJob(job)

		if reportDir != "" {
			if _, err := utils.NewReporter(reportDir).SaveJobReport(job, time.Now()); err != nil {
				utils.Warnf("生成报告失败: %v", err)
			}
		}
		if job.Status == models.JobError {
			return fmt.Errorf("任务失败: %s", job.Error)
		}
		return nil
	},
}

// waitForJob 轮询任务直到终止; ctx 结束时取消任务并等待其落定
func waitForJob(ctx context.Context, runner *core.Runner, jobID string, showProgress bool) (models.CrawlJob, error) {
	bg := context.WithoutCancel(ctx)
	var bar interface {
		Set(int) error
		Finish() error
	}
	if showProgress {
		bar = utils.NewProgressBar(100, "爬取中")
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	cancelled := false
	for {
		job, err := runner.GetStatus(bg, jobID)
		if err != nil {
			return job, err
		}
		if bar != nil {
			_ = bar.Set(job.Progress)
		}
		if job.Status.Terminal() {
			if bar != nil {
				_ = bar.Finish()
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			if !cancelled {
				utils.Warn("收到中断信号, 正在取消任务...")
				if err := runner.Cancel(bg, jobID); err != nil {
					return job, err
				}
				cancelled = true
			}
			<-ticker.C
		case <-ticker.C:
		}
	}
}

func printJob(job models.CrawlJob) {
	fmt.Println("\n==================================================")
	fmt.Println("📊 爬取结果")
	fmt.Println("==================================================")
	fmt.Printf("任务: %s\n", job.ID)
	fmt.Printf("目标: %s\n", job.TargetID)
	fmt.Printf("状态: %s\n", job.Status)
	if job.Error != "" {
		fmt.Printf("❌ 错误: %s\n", job.Error)
	}
	fmt.Printf("✅ 最近帖子: %d\n", len(job.Results))
	fmt.Println("==================================================")
	if len(job.Results) > 0 {
		if err := utils.PrintRanking(os.Stdout, job.Results); err != nil {
			utils.Warnf("输出排行失败: %v", err)
		}
	}
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlTarget, "target", "t", "", "目标ID, all 表示全部目标")
	crawlCmd.Flags().StringVar(&crawlCredential, "credential", "", "使用的凭据名称, 默认第一个可用凭据")
	crawlCmd.Flags().StringVarP(&reportDir, "report", "o", "", "JSON报告输出目录")
	crawlCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")
}
