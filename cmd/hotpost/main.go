package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thongnm19089/share-fb/internal/core"
	"github.com/thongnm19089/share-fb/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	envFile    string
	verbose    bool
	logLevel   string

	// 浏览器参数
	headers     []string
	driver      string
	headless    bool
	maxSessions int
	workers     int

	// 加载后的配置
	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "hotpost",
	Short: "Facebook 信息流热门帖子爬取工具",
	Long: `hotpost - 发现、提取并排序 Facebook 信息流中的最近热门帖子

支持:
  • 滚动信息流收集帖子链接
  • 多策略提取发布时间、正文和互动数
  • 越南语/英语的数字和时间归一化
  • 按加权互动分排序
  • 每日两次或固定时刻的自动扫描
  • HTTP接口查询任务进度

示例:
  hotpost crawl --target hot-news
  hotpost crawl --target all --report reports
  hotpost scan --watch
  hotpost serve

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		// .env 先于配置加载, 其中的 HOTPOST_* 变量可覆盖配置文件
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("加载环境文件失败: %w", err)
		}

		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.MergeCLIFlags(driver, headless, cmd.Flags().Changed("headless"), maxSessions, workers)

		if logLevel != "" {
			config.Logging.Level = logLevel
		} else if verbose {
			config.Logging.Level = "debug"
		}
		if err := utils.InitLogger(config.Logging); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if err := ValidateFlags(driver, maxSessions, workers); err != nil {
			return err
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("配置验证失败: %w", err)
		}

		appConfig = config
		if verbose {
			utils.Info("详细模式已启用")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hotpost %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "环境变量文件")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 浏览器参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "浏览器驱动 (rod|static)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.PersistentFlags().IntVar(&maxSessions, "max-sessions", 0, "最大并发浏览器会话数")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "任务并发数")

	rootCmd.AddCommand(versionCmd, crawlCmd, scanCmd, serveCmd, doctorCmd, targetsCmd)
}

// signalContext Ctrl+C 时取消, 正在执行的任务以 cancelled 结束
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
