package main

import (
	"context"
	"fmt"
	"io"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/config"
	"github.com/thongnm19089/share-fb/internal/core"
	"github.com/thongnm19089/share-fb/internal/jobs"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/store"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// app 一次命令执行所需的全部组件
type app struct {
	cfg         *core.Config
	store       store.Store
	registry    jobs.Registry
	credentials []models.Credential

	// 以下仅在需要浏览器时创建
	pool      *browser.SessionPool
	runner    *core.Runner
	scheduler *core.Scheduler
}

// newApp 打开存储、同步目标文件; withBrowser 为 true 时启动浏览器并创建工作池
func newApp(ctx context.Context, withBrowser bool) (*app, error) {
	cfg := appConfig
	a := &app{cfg: cfg}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}
	a.store = st

	if err := a.loadTargets(ctx); err != nil {
		a.close()
		return nil, err
	}

	registry, err := jobs.Open(cfg.Jobs.Config)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("创建任务登记表失败: %w", err)
	}
	a.registry = registry

	if !withBrowser {
		return a, nil
	}

	headerManager, err := browser.NewHeaderManager(cfg.Browser.UserAgent, cfg.Browser.AcceptLanguage, cfg.Browser.Headers, headers)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		a.close()
		return nil, fmt.Errorf("HTTP头部验证失败: %w", err)
	}
	utils.Debugf("当前HTTP头部: %s", headerManager.GetSafeHeaders())

	launcher, err := newLauncher(cfg.Browser, headerManager)
	if err != nil {
		a.close()
		return nil, err
	}

	monitor := browser.NewResourceMonitor(browser.DefaultResourceMonitorConfig(cfg.Browser.MaxSessions))
	a.pool = browser.NewSessionPool(launcher, monitor, cfg.Browser.MaxSessions, cfg.Browser.SerializePerCredential)

	orch := core.NewOrchestrator(cfg.Crawl, st, registry, nil)
	a.runner = core.NewRunner(st, registry, a.pool, orch, a.credentials, cfg.Jobs.Workers)

	loc, err := cfg.Location()
	if err != nil {
		a.close()
		return nil, err
	}
	a.scheduler = core.NewScheduler(st, a.runner, nil, cfg.Scheduler.Interval, loc)

	utils.Infof("⚙️  驱动: %s, 会话上限: %d, 任务并发: %d", cfg.Browser.Driver, a.pool.Capacity(), a.runner.Workers())
	return a, nil
}

// loadTargets 读取目标文件写入存储, 并把上次异常退出遗留的排队/执行中状态恢复为空闲
func (a *app) loadTargets(ctx context.Context) error {
	loader := config.NewTargetsLoader(a.cfg.TargetsFile)
	file, err := loader.Load()
	if err != nil {
		return err
	}
	n, err := config.SyncTargets(ctx, a.store, file)
	if err != nil {
		return fmt.Errorf("同步监控目标失败: %w", err)
	}
	creds, err := loader.Credentials(file)
	if err != nil {
		return err
	}
	a.credentials = creds
	utils.Infof("📋 已加载 %d 个监控目标, %d 个凭据", n, len(creds))

	targets, err := a.store.Targets(ctx)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.Busy() {
			utils.Warnf("目标 %s 停留在 %s 状态, 恢复为空闲", t.ID, t.Status)
			if err := a.store.SetStatus(ctx, t.ID, models.TargetIdle); err != nil {
				return err
			}
		}
	}
	return nil
}

func newLauncher(cfg core.BrowserConfig, headerManager *browser.HeaderManager) (browser.Launcher, error) {
	switch cfg.Driver {
	case "static":
		return browser.NewStaticLauncher(headerManager, cfg.NavigationTimeout), nil
	default:
		utils.Info("🌐 启动浏览器...")
		launcher, err := browser.LaunchRod(browser.RodOptions{
			Headless:          cfg.Headless,
			Bin:               cfg.Bin,
			NavigationTimeout: cfg.NavigationTimeout,
		}, headerManager)
		if err != nil {
			return nil, err
		}
		return launcher, nil
	}
}

// close 按创建的逆序释放资源
func (a *app) close() {
	if a.runner != nil {
		a.runner.Shutdown()
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}
	if c, ok := a.registry.(io.Closer); ok {
		if err := c.Close(); err != nil {
			utils.Warnf("关闭任务登记表失败: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			utils.Warnf("关闭存储失败: %v", err)
		}
	}
}
