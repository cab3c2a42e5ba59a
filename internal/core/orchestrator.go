package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/crawlers"
	"github.com/thongnm19089/share-fb/internal/jobs"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/store"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// loginSelectors 登录页特征
var loginSelectors = []string{
	"input[name='pass']",
	"form#login_form",
	"form[data-testid='royal_login_form']",
}

// Slice 一个目标在任务总进度中占用的区间
type Slice struct {
	From, To int
}

// FullSlice 单目标任务的进度区间
var FullSlice = Slice{From: 0, To: 100}

// at 将目标内的进度(0-100)映射到任务进度
func (s Slice) at(local int) int {
	return s.From + models.ClampProgress(local)*(s.To-s.From)/100
}

// Orchestrator 单个目标的爬取流程: 打开信息流 → 收集链接 → 逐个提取 → 持久化
type Orchestrator struct {
	settings  models.CrawlSettings
	posts     store.PostStore
	registry  jobs.Registry
	clock     clock.Clock
	collector *crawlers.LinkCollector
	extractor *crawlers.DetailExtractor
}

// NewOrchestrator 创建编排器
func NewOrchestrator(settings models.CrawlSettings, posts store.PostStore, registry jobs.Registry, clk clock.Clock) *Orchestrator {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Orchestrator{
		settings:  settings,
		posts:     posts,
		registry:  registry,
		clock:     clk,
		collector: crawlers.NewLinkCollector(settings, clk),
		extractor: crawlers.NewDetailExtractor(settings, clk),
	}
}

// Settings 爬取参数
func (o *Orchestrator) Settings() models.CrawlSettings {
	return o.settings
}

// CrawlTarget 爬取一个目标, 返回按发现顺序排列的最近帖子
//
// known 中的地址直接跳过. 单个候选的错误只记录日志并恢复到信息流;
// 需要登录、会话丢失和取消会终止并返回已得到的结果.
func (o *Orchestrator) CrawlTarget(ctx context.Context, jobID string, session browser.Session, target models.MonitoredTarget, known []string, slice Slice) ([]models.PostRecord, error) {
	utils.Infof("🚀 开始爬取目标: %s (%s)", target.Name, target.FeedURL)

	if err := session.Navigate(ctx, target.FeedURL); err != nil {
		return nil, fmt.Errorf("打开信息流失败: %w", err)
	}
	if err := o.checkAuth(ctx, session); err != nil {
		return nil, err
	}

	progress := func(local int) {
		if err := o.registry.SetProgress(context.WithoutCancel(ctx), jobID, slice.at(local)); err != nil {
			utils.Warnf("更新任务进度失败: %v", err)
		}
	}

	candidates, stop, err := o.collector.Collect(ctx, session, target.FeedURL, func(step, maxSteps int) {
		progress(step * 50 / maxSteps)
	})
	if err != nil {
		return nil, err
	}
	utils.Debugf("目标 %s 链接收集结束: %s", target.ID, stop)
	progress(50)

	skip := make(map[string]bool, len(known))
	for _, u := range known {
		skip[u] = true
	}

	var limiter *rate.Limiter
	if o.settings.NavRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.settings.NavRate), 1)
	}

	var results []models.PostRecord
	n := len(candidates)
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		rec, err := o.crawlCandidate(ctx, jobID, session, target, c, skip, limiter)
		if err != nil {
			return results, err
		}
		if rec != nil {
			results = append(results, *rec)
		}
		progress(50 + (i+1)*50/n)
	}

	utils.Infof("✅ 目标 %s 爬取完成: %d 个候选, %d 条最近帖子", target.ID, n, len(results))
	return results, nil
}

// crawlCandidate 处理一个候选; 返回错误表示整个目标必须终止
func (o *Orchestrator) crawlCandidate(ctx context.Context, jobID string, session browser.Session, target models.MonitoredTarget, c models.Candidate, skip map[string]bool, limiter *rate.Limiter) (*models.PostRecord, error) {
	if skip[c.URL] {
		utils.Debugf("已入库, 跳过: %s", c.URL)
		return nil, nil
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	detail, err := o.extractor.Extract(ctx, session, c, o.clock.Now())
	if err != nil {
		if errors.Is(err, browser.ErrSessionLost) || ctx.Err() != nil {
			return nil, err
		}
		utils.Warnf("提取帖子失败 [%s]: %v", c.URL, err)
		return nil, o.recover(ctx, session, target.FeedURL)
	}
	if detail == nil || !detail.Recent {
		return nil, nil
	}

	rec := detail.PostRecord
	rec.TargetID = target.ID
	rec.Recompute()

	if created, err := o.posts.Upsert(ctx, target.ID, rec.URL, rec.PostFields); err != nil {
		utils.Errorf("保存帖子失败 [%s]: %v", rec.URL, err)
	} else if created {
		utils.Debugf("新帖子: %s (互动 %d)", rec.URL, rec.TotalEngagement)
	}
	if err := o.registry.AppendResult(context.WithoutCancel(ctx), jobID, rec); err != nil {
		utils.Warnf("追加任务结果失败: %v", err)
	}
	return &rec, nil
}

// recover 候选失败后回到信息流: 先后退, 不行再重新打开; 都失败视为会话丢失
func (o *Orchestrator) recover(ctx context.Context, session browser.Session, feedURL string) error {
	backErr := session.GoBack(ctx)
	if backErr == nil {
		return nil
	}
	if errors.Is(backErr, browser.ErrSessionLost) {
		return backErr
	}
	if err := session.Navigate(ctx, feedURL); err != nil {
		return fmt.Errorf("无法回到信息流 (%v): %w", err, browser.ErrSessionLost)
	}
	return nil
}

// checkAuth 检测是否被重定向到登录页
func (o *Orchestrator) checkAuth(ctx context.Context, session browser.Session) error {
	current := session.CurrentURL()
	if strings.Contains(current, "/login") || strings.Contains(current, "checkpoint") {
		return fmt.Errorf("%s: %w", current, models.ErrAuthRequired)
	}
	for _, sel := range loginSelectors {
		els, err := session.Locate(ctx, sel)
		if err != nil {
			if errors.Is(err, browser.ErrSessionLost) {
				return err
			}
			continue
		}
		if len(els) > 0 {
			return fmt.Errorf("页面出现登录表单: %w", models.ErrAuthRequired)
		}
	}
	return nil
}
