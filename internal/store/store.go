// Package store 持久化监控目标和热门帖子
//
// 帖子以 (target_id, url) 唯一, 去重由存储端的 upsert 保证.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/thongnm19089/share-fb/internal/models"
)

// PostStore 帖子持久化
type PostStore interface {
	// Upsert 插入或更新帖子, 返回是否为新记录; total_engagement 每次写入都重新计算
	Upsert(ctx context.Context, targetID, url string, f models.PostFields) (created bool, err error)
	// KnownURLs 目标最近入库的帖子地址, 最新的在前
	KnownURLs(ctx context.Context, targetID string, limit int) ([]string, error)
	// Posts 目标的全部帖子, 按总互动数降序
	Posts(ctx context.Context, targetID string) ([]models.PostRecord, error)
}

// TargetStore 监控目标持久化
type TargetStore interface {
	Targets(ctx context.Context) ([]models.MonitoredTarget, error)
	Target(ctx context.Context, id string) (models.MonitoredTarget, error)
	SaveTarget(ctx context.Context, t models.MonitoredTarget) error
	SetStatus(ctx context.Context, id string, status models.TargetStatus) error
	// MarkCrawled 标记完成并记录爬取时间
	MarkCrawled(ctx context.Context, id string, at time.Time) error
	// MarkAttempted 记录调度尝试时间, 不改变状态
	MarkAttempted(ctx context.Context, id string, at time.Time) error
}

// Store 完整的存储
type Store interface {
	PostStore
	TargetStore
	Ping(ctx context.Context) error
	Close() error
}

// Open 按驱动名打开存储: memory, postgres, sqlite3
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres", "sqlite3":
		return OpenSQL(driver, dsn)
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", driver)
	}
}
