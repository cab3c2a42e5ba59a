package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/config"
	"github.com/thongnm19089/share-fb/internal/jobs"
	"github.com/thongnm19089/share-fb/internal/store"
)

// check 一项环境检查
type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "检查运行环境 (浏览器/存储/Redis/资源/目标文件)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		failed := 0
		for _, c := range doctorChecks() {
			detail, err := c.run(ctx)
			if err != nil {
				failed++
				fmt.Printf("❌ %-8s %v\n", c.name, err)
				continue
			}
			fmt.Printf("✅ %-8s %s\n", c.name, detail)
		}
		if failed > 0 {
			return fmt.Errorf("%d 项检查未通过", failed)
		}
		fmt.Println("✨ 环境检查全部通过")
		return nil
	},
}

func doctorChecks() []check {
	cfg := appConfig
	return []check{
		{"浏览器", func(context.Context) (string, error) {
			if cfg.Browser.Driver == "static" {
				return "static 驱动, 不需要浏览器", nil
			}
			if cfg.Browser.Bin != "" {
				return cfg.Browser.Bin, nil
			}
			path, ok := browser.LookPath()
			if !ok {
				return "", fmt.Errorf("未找到 Chrome/Chromium, 首次运行时 rod 会自动下载")
			}
			return path, nil
		}},
		{"存储", func(ctx context.Context) (string, error) {
			st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return "", err
			}
			defer st.Close()
			if err := st.Ping(ctx); err != nil {
				return "", err
			}
			return cfg.Store.Driver, nil
		}},
		{"任务登记", func(context.Context) (string, error) {
			reg, err := jobs.Open(cfg.Jobs.Config)
			if err != nil {
				return "", err
			}
			if c, ok := reg.(io.Closer); ok {
				_ = c.Close()
			}
			if cfg.Jobs.Backend == "redis" {
				return "redis " + cfg.Jobs.RedisAddr, nil
			}
			return "memory", nil
		}},
		{"资源", func(context.Context) (string, error) {
			monitor := browser.NewResourceMonitor(browser.DefaultResourceMonitorConfig(cfg.Browser.MaxSessions))
			n := monitor.CalculateMaxSessions()
			if ok, reason := monitor.CheckResourceAvailability(); !ok {
				return "", fmt.Errorf("%s", reason)
			}
			return fmt.Sprintf("可用会话数 %d", n), nil
		}},
		{"目标文件", func(context.Context) (string, error) {
			loader := config.NewTargetsLoader(cfg.TargetsFile)
			file, err := loader.Load()
			if err != nil {
				return "", err
			}
			creds, err := loader.Credentials(file)
			if err != nil {
				return "", err
			}
			live := 0
			for _, c := range creds {
				if c.Live {
					live++
				}
			}
			if live == 0 {
				return "", fmt.Errorf("%d 个目标, 但没有可用凭据", len(file.Targets))
			}
			return fmt.Sprintf("%d 个目标, %d 个可用凭据", len(file.Targets), live), nil
		}},
	}
}
