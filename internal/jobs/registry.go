// Package jobs 保存爬取任务的进度和结果, 供轮询方读取
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/thongnm19089/share-fb/internal/models"
)

// Registry 任务登记表
//
// 进度单调不减并限制在 [0,100]; 任务进入终止状态后的所有修改被忽略.
// 读取返回深拷贝.
type Registry interface {
	Create(ctx context.Context, targetID string) (models.CrawlJob, error)
	Get(ctx context.Context, id string) (models.CrawlJob, error)
	SetProgress(ctx context.Context, id string, progress int) error
	AppendResult(ctx context.Context, id string, r models.PostRecord) error
	// Complete 以排序后的结果完成任务
	Complete(ctx context.Context, id string, ranked []models.PostRecord) error
	// Fail 以 error 或 cancelled 结束任务, 已追加的结果保留
	Fail(ctx context.Context, id string, status models.JobStatus, msg string) error
	// Prune 删除在 before 之前结束的任务, 返回删除数量
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Open 按后端名创建登记表: memory, redis
func Open(cfg Config) (Registry, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryRegistry(nil), nil
	case "redis":
		return NewRedisRegistry(cfg)
	default:
		return nil, fmt.Errorf("不支持的任务登记后端: %s", cfg.Backend)
	}
}

// Config 登记表配置
type Config struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// 以下修改函数由各后端共用, 返回 false 表示无需写回

func applyProgress(j *models.CrawlJob, progress int, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	progress = models.ClampProgress(progress)
	if progress <= j.Progress {
		return false
	}
	j.Progress = progress
	j.UpdatedAt = now
	return true
}

func applyResult(j *models.CrawlJob, r models.PostRecord, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	j.Results = append(j.Results, r)
	j.UpdatedAt = now
	return true
}

func applyComplete(j *models.CrawlJob, ranked []models.PostRecord, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	j.Status = models.JobCompleted
	j.Progress = 100
	j.Results = append([]models.PostRecord{}, ranked...)
	j.UpdatedAt = now
	return true
}

func applyFail(j *models.CrawlJob, status models.JobStatus, msg string, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	if status != models.JobCancelled {
		status = models.JobError
	}
	j.Status = status
	j.Error = msg
	j.UpdatedAt = now
	return true
}

func notFound(id string) error {
	return fmt.Errorf("%s: %w", id, models.ErrJobNotFound)
}
