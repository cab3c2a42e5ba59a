package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/juju/clock"
	"golang.org/x/sync/semaphore"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/jobs"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/store"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// Runner 有界的任务工作池
//
// 每个任务独占一个会话, 任务内部严格串行. 任务在后台执行, 调用方通过任务ID轮询状态.
type Runner struct {
	store    store.Store
	registry jobs.Registry
	pool     *browser.SessionPool
	orch     *Orchestrator
	clock    clock.Clock

	credentials []models.Credential
	workers     *semaphore.Weighted
	size        int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner 创建工作池, 并发数不超过会话池容量
func NewRunner(st store.Store, registry jobs.Registry, pool *browser.SessionPool, orch *Orchestrator, credentials []models.Credential, workers int) *Runner {
	if c := pool.Capacity(); c < workers {
		workers = c
	}
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		store:       st,
		registry:    registry,
		pool:        pool,
		orch:        orch,
		clock:       orch.clock,
		credentials: credentials,
		workers:     semaphore.NewWeighted(int64(workers)),
		size:        workers,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Workers 实际并发数
func (r *Runner) Workers() int {
	return r.size
}

// Credential 按名称取凭据; name 为空时返回第一个可用凭据
func (r *Runner) Credential(name string) (models.Credential, error) {
	for _, c := range r.credentials {
		if !c.Live {
			continue
		}
		if name == "" || c.Name == name {
			return c, nil
		}
	}
	if name != "" {
		return models.Credential{}, fmt.Errorf("凭据 %s: %w", name, models.ErrNoLiveCredential)
	}
	return models.Credential{}, models.ErrNoLiveCredential
}

// HasLiveCredential 是否存在可用凭据
func (r *Runner) HasLiveCredential() bool {
	_, err := r.Credential("")
	return err == nil
}

// Enqueue 以默认凭据为目标启动任务, 供扫描调度使用
func (r *Runner) Enqueue(ctx context.Context, target models.MonitoredTarget) (string, error) {
	cred, err := r.Credential("")
	if err != nil {
		return "", err
	}
	return r.StartCrawl(ctx, target.ID, cred)
}

// StartCrawl 创建任务并在后台执行, 立即返回任务ID
// targetID 为 "all" 时在同一任务中依次爬取全部目标
func (r *Runner) StartCrawl(ctx context.Context, targetID string, cred models.Credential) (string, error) {
	if !cred.Live {
		return "", fmt.Errorf("凭据 %s 已失效: %w", cred.Name, models.ErrNoLiveCredential)
	}

	targets, err := r.resolveTargets(ctx, targetID)
	if err != nil {
		return "", err
	}

	job, err := r.registry.Create(ctx, targetID)
	if err != nil {
		return "", fmt.Errorf("创建任务失败: %w", err)
	}
	for _, t := range targets {
		if err := r.store.SetStatus(ctx, t.ID, models.TargetQueued); err != nil {
			utils.Warnf("更新目标状态失败 [%s]: %v", t.ID, err)
		}
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	jlog := utils.JobLogger(job.ID, targetID)
	jlog.Info().Str("credential", cred.Name).Msg("📋 任务已创建")

	r.wg.Add(1)
	go r.run(jobCtx, job.ID, targets, cred)
	return job.ID, nil
}

func (r *Runner) resolveTargets(ctx context.Context, targetID string) ([]models.MonitoredTarget, error) {
	if targetID == models.AllTargets {
		targets, err := r.store.Targets(ctx)
		if err != nil {
			return nil, fmt.Errorf("读取监控目标失败: %w", err)
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("没有监控目标: %w", models.ErrTargetNotFound)
		}
		return targets, nil
	}
	t, err := r.store.Target(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return []models.MonitoredTarget{t}, nil
}

// GetStatus 任务快照
func (r *Runner) GetStatus(ctx context.Context, jobID string) (models.CrawlJob, error) {
	return r.registry.Get(ctx, jobID)
}

// Cancel 取消任务; 已结束的任务不受影响
func (r *Runner) Cancel(ctx context.Context, jobID string) error {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		jlog := utils.JobLogger(jobID, "")
		jlog.Info().Msg("🛑 取消任务")
		cancel()
		return nil
	}
	_, err := r.registry.Get(ctx, jobID)
	return err
}

// Wait 等待所有后台任务结束
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown 取消所有任务并等待结束
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// run 执行一个任务直到终止状态
func (r *Runner) run(ctx context.Context, jobID string, targets []models.MonitoredTarget, cred models.Credential) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		if cancel, ok := r.cancels[jobID]; ok {
			cancel()
			delete(r.cancels, jobID)
		}
		r.mu.Unlock()
	}()

	bg := context.WithoutCancel(ctx)
	log := utils.JobLogger(jobID, "")

	if err := r.workers.Acquire(ctx, 1); err != nil {
		r.resetTargets(bg, targets)
		r.settle(bg, jobID, nil, err, true)
		return
	}
	defer r.workers.Release(1)

	session, release, err := r.pool.Acquire(ctx, cred)
	if err != nil {
		r.resetTargets(bg, targets)
		r.settle(bg, jobID, nil, err, ctx.Err() != nil)
		return
	}
	defer release()

	log.Info().Int("targets", len(targets)).Msg("▶️ 任务开始执行")

	var all []models.PostRecord
	var fatal error
	n := len(targets)
	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			fatal = err
			r.resetTargets(bg, targets[i:])
			break
		}
		tlog := utils.JobLogger(jobID, t.ID)
		if err := r.store.SetStatus(bg, t.ID, models.TargetRunning); err != nil {
			tlog.Warn().Err(err).Msg("更新目标状态失败")
		}

		known, err := r.store.KnownURLs(ctx, t.ID, r.orch.settings.KnownURLLimit)
		if err != nil {
			tlog.Warn().Err(err).Msg("读取已知帖子失败, 不使用跳过列表")
		}

		slice := Slice{From: i * 100 / n, To: (i + 1) * 100 / n}
		records, err := r.orch.CrawlTarget(ctx, jobID, session, t, known, slice)
		all = append(all, records...)

		if err != nil {
			status := models.TargetError
			if ctx.Err() != nil {
				status = models.TargetIdle
			}
			if serr := r.store.SetStatus(bg, t.ID, status); serr != nil {
				tlog.Warn().Err(serr).Msg("更新目标状态失败")
			}
			if n == 1 || jobFatal(ctx, err) {
				fatal = err
				r.resetTargets(bg, targets[i+1:])
				break
			}
			tlog.Error().Err(err).Msg("目标爬取失败, 继续下一个")
			continue
		}
		if err := r.store.MarkCrawled(bg, t.ID, r.clock.Now()); err != nil {
			tlog.Warn().Err(err).Msg("记录爬取时间失败")
		}
	}

	r.settle(bg, jobID, all, fatal, ctx.Err() != nil)
}

// settle 将任务置为终止状态; 只有完成时才排序结果
func (r *Runner) settle(ctx context.Context, jobID string, records []models.PostRecord, cause error, cancelled bool) {
	log := utils.JobLogger(jobID, "")
	var err error
	switch {
	case cause == nil:
		ranked := RankPosts(records)
		err = r.registry.Complete(ctx, jobID, ranked)
		log.Info().Int("results", len(ranked)).Msg("✅ 任务完成")
	case cancelled:
		err = r.registry.Fail(ctx, jobID, models.JobCancelled, "任务已取消")
		log.Warn().Int("results", len(records)).Msg("任务已取消")
	default:
		err = r.registry.Fail(ctx, jobID, models.JobError, cause.Error())
		log.Error().Err(cause).Int("results", len(records)).Msg("❌ 任务失败")
	}
	if err != nil {
		log.Error().Err(err).Msg("更新任务终止状态失败")
	}
}

// resetTargets 未执行的目标恢复为空闲
func (r *Runner) resetTargets(ctx context.Context, targets []models.MonitoredTarget) {
	for _, t := range targets {
		if err := r.store.SetStatus(ctx, t.ID, models.TargetIdle); err != nil {
			utils.Warnf("更新目标状态失败 [%s]: %v", t.ID, err)
		}
	}
}

// jobFatal 需要登录、会话丢失和取消会终止整个任务
func jobFatal(ctx context.Context, err error) bool {
	return errors.Is(err, models.ErrAuthRequired) ||
		errors.Is(err, browser.ErrSessionLost) ||
		ctx.Err() != nil
}
