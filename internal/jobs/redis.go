package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"

	"github.com/thongnm19089/share-fb/internal/models"
)

const (
	keyPrefix = "hotpost:job:"
	// maxTxRetries WATCH 冲突时的重试次数
	maxTxRetries = 50
	defaultTTL   = 24 * time.Hour
)

// RedisRegistry 基于 Redis 的登记表, 多个进程可共享任务状态
// 每个任务一个JSON值, 修改使用 WATCH/MULTI 乐观事务
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	clock  clock.Clock
}

var _ Registry = (*RedisRegistry)(nil)

// NewRedisRegistry 连接 Redis
func NewRedisRegistry(cfg Config) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接Redis失败 [%s]: %w", cfg.RedisAddr, err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisRegistry{client: client, ttl: ttl, clock: clock.WallClock}, nil
}

// Client 底层客户端
func (r *RedisRegistry) Client() *redis.Client {
	return r.client
}

// Close 关闭连接
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func key(id string) string {
	return keyPrefix + id
}

// Create 实现 Registry
func (r *RedisRegistry) Create(ctx context.Context, targetID string) (models.CrawlJob, error) {
	job := models.NewCrawlJob(targetID, r.clock.Now())
	data, err := json.Marshal(job)
	if err != nil {
		return models.CrawlJob{}, err
	}
	if err := r.client.Set(ctx, key(job.ID), data, r.ttl).Err(); err != nil {
		return models.CrawlJob{}, fmt.Errorf("保存任务失败: %w", err)
	}
	return job.Clone(), nil
}

// Get 实现 Registry
func (r *RedisRegistry) Get(ctx context.Context, id string) (models.CrawlJob, error) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CrawlJob{}, notFound(id)
	}
	if err != nil {
		return models.CrawlJob{}, fmt.Errorf("读取任务失败: %w", err)
	}
	var job models.CrawlJob
	if err := json.Unmarshal(data, &job); err != nil {
		return models.CrawlJob{}, fmt.Errorf("解析任务失败: %w", err)
	}
	return job, nil
}

// mutate 在乐观事务中读取-修改-写回
func (r *RedisRegistry) mutate(ctx context.Context, id string, fn func(j *models.CrawlJob, now time.Time) bool) error {
	k := key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		var job models.CrawlJob
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("解析任务失败: %w", err)
		}
		if !fn(&job, r.clock.Now()) {
			return nil
		}
		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, out, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("更新任务 %s 冲突次数过多", id)
}

// SetProgress 实现 Registry
func (r *RedisRegistry) SetProgress(ctx context.Context, id string, progress int) error {
	return r.mutate(ctx, id, func(j *models.CrawlJob, now time.Time) bool {
		return applyProgress(j, progress, now)
	})
}

// AppendResult 实现 Registry
func (r *RedisRegistry) AppendResult(ctx context.Context, id string, rec models.PostRecord) error {
	return r.mutate(ctx, id, func(j *models.CrawlJob, now time.Time) bool {
		return applyResult(j, rec, now)
	})
}

// Complete 实现 Registry
func (r *RedisRegistry) Complete(ctx context.Context, id string, ranked []models.PostRecord) error {
	return r.mutate(ctx, id, func(j *models.CrawlJob, now time.Time) bool {
		return applyComplete(j, ranked, now)
	})
}

// Fail 实现 Registry
func (r *RedisRegistry) Fail(ctx context.Context, id string, status models.JobStatus, msg string) error {
	return r.mutate(ctx, id, func(j *models.CrawlJob, now time.Time) bool {
		return applyFail(j, status, msg, now)
	})
}

// Prune 实现 Registry, 过期任务同时由TTL回收
func (r *RedisRegistry) Prune(ctx context.Context, before time.Time) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		job, err := r.Get(ctx, k[len(keyPrefix):])
		if err != nil {
			continue
		}
		if job.Status.Terminal() && job.UpdatedAt.Before(before) {
			if err := r.client.Del(ctx, k).Err(); err == nil {
				n++
			}
		}
	}
	return n, iter.Err()
}
