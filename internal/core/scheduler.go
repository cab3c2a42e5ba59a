package core

import (
	"context"
	"time"

	"github.com/juju/clock"

	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/store"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// Enqueuer 接收到期目标并启动任务
type Enqueuer interface {
	Enqueue(ctx context.Context, target models.MonitoredTarget) (string, error)
	HasLiveCredential() bool
}

// Scheduler 自动扫描调度
type Scheduler struct {
	targets  store.TargetStore
	enqueuer Enqueuer
	clock    clock.Clock
	interval time.Duration
	location *time.Location
}

// NewScheduler 创建调度器, loc 为判断"今天"和"中午"使用的时区
func NewScheduler(targets store.TargetStore, enqueuer Enqueuer, clk clock.Clock, interval time.Duration, loc *time.Location) *Scheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{targets: targets, enqueuer: enqueuer, clock: clk, interval: interval, location: loc}
}

// IsDue 判断目标此刻是否需要扫描
//
// 固定时刻: 已过今天的该时刻, 且今天还没有爬取或尝试过.
// 默认策略: 上午要求今天爬取过一次, 中午之后要求中午之后再爬取一次.
// 调度尝试与成功爬取同样计入, 失败的任务在同一窗口内不会被再次排队.
func IsDue(t models.MonitoredTarget, now time.Time) bool {
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	last := t.LastActivity()

	if t.ScanTime != nil {
		if now.Before(t.ScanTime.On(now)) {
			return false
		}
		return last == nil || last.Before(startOfDay)
	}

	noon := time.Date(y, m, d, 12, 0, 0, 0, now.Location())
	if now.Before(noon) {
		return last == nil || last.Before(startOfDay)
	}
	return last == nil || last.Before(noon)
}

// EvaluateAndQueue 检查所有自动扫描目标, 将到期的目标置为排队并交给执行方
// 返回已排队的目标ID
func (s *Scheduler) EvaluateAndQueue(ctx context.Context, now time.Time) ([]string, error) {
	now = now.In(s.location)

	targets, err := s.targets.Targets(ctx)
	if err != nil {
		return nil, err
	}

	var due []models.MonitoredTarget
	for _, t := range targets {
		if !t.AutoScan || t.Busy() {
			continue
		}
		if IsDue(t, now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		utils.Debugf("没有到期的扫描目标")
		return nil, nil
	}
	if !s.enqueuer.HasLiveCredential() {
		utils.Warnf("⚠️  有 %d 个目标到期, 但没有可用的登录凭据, 本轮跳过", len(due))
		return nil, nil
	}

	var queued []string
	for _, t := range due {
		if err := s.targets.SetStatus(ctx, t.ID, models.TargetQueued); err != nil {
			utils.Warnf("更新目标状态失败 [%s]: %v", t.ID, err)
			continue
		}
		jobID, err := s.enqueuer.Enqueue(ctx, t)
		if err != nil {
			utils.Errorf("目标 %s 排队失败: %v", t.ID, err)
			if serr := s.targets.SetStatus(ctx, t.ID, models.TargetIdle); serr != nil {
				utils.Warnf("更新目标状态失败 [%s]: %v", t.ID, serr)
			}
			continue
		}
		if err := s.targets.MarkAttempted(ctx, t.ID, now); err != nil {
			utils.Warnf("记录调度时间失败 [%s]: %v", t.ID, err)
		}
		utils.Infof("⏰ 目标 %s 已排队, 任务 %s", t.ID, jobID)
		queued = append(queued, t.ID)
	}
	return queued, nil
}

// Run 按间隔循环扫描, 直到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) error {
	utils.Infof("⏰ 自动扫描已启动, 间隔 %s", s.interval)
	for {
		if _, err := s.EvaluateAndQueue(ctx, s.clock.Now()); err != nil {
			utils.Errorf("自动扫描失败: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.interval):
		}
	}
}
