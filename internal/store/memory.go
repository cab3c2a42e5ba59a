package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/thongnm19089/share-fb/internal/models"
)

type postKey struct {
	targetID string
	url      string
}

type memoryPost struct {
	record models.PostRecord
	seq    int
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu      sync.RWMutex
	targets map[string]models.MonitoredTarget
	order   []string
	posts   map[postKey]*memoryPost
	seq     int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets: make(map[string]models.MonitoredTarget),
		posts:   make(map[postKey]*memoryPost),
	}
}

// Upsert 实现 PostStore
func (m *MemoryStore) Upsert(_ context.Context, targetID, url string, f models.PostFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := postKey{targetID, url}
	if p, ok := m.posts[key]; ok {
		p.record.PostFields = f
		p.record.Recompute()
		return false, nil
	}
	m.seq++
	m.posts[key] = &memoryPost{record: models.NewPostRecord(targetID, url, f), seq: m.seq}
	return true, nil
}

// KnownURLs 实现 PostStore
func (m *MemoryStore) KnownURLs(_ context.Context, targetID string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var posts []*memoryPost
	for k, p := range m.posts {
		if k.targetID == targetID {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].seq > posts[j].seq })
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	urls := make([]string, len(posts))
	for i, p := range posts {
		urls[i] = p.record.URL
	}
	return urls, nil
}

// Posts 实现 PostStore
func (m *MemoryStore) Posts(_ context.Context, targetID string) ([]models.PostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var posts []*memoryPost
	for k, p := range m.posts {
		if k.targetID == targetID {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].record.TotalEngagement != posts[j].record.TotalEngagement {
			return posts[i].record.TotalEngagement > posts[j].record.TotalEngagement
		}
		return posts[i].seq < posts[j].seq
	})
	out := make([]models.PostRecord, len(posts))
	for i, p := range posts {
		out[i] = p.record
	}
	return out, nil
}

// Targets 实现 TargetStore, 按添加顺序返回
func (m *MemoryStore) Targets(_ context.Context) ([]models.MonitoredTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MonitoredTarget, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, copyTarget(m.targets[id]))
	}
	return out, nil
}

// Target 实现 TargetStore
func (m *MemoryStore) Target(_ context.Context, id string) (models.MonitoredTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return models.MonitoredTarget{}, fmt.Errorf("%s: %w", id, models.ErrTargetNotFound)
	}
	return copyTarget(t), nil
}

// SaveTarget 实现 TargetStore
func (m *MemoryStore) SaveTarget(_ context.Context, t models.MonitoredTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = models.TargetIdle
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.targets[t.ID] = copyTarget(t)
	return nil
}

// SetStatus 实现 TargetStore
func (m *MemoryStore) SetStatus(_ context.Context, id string, status models.TargetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, models.ErrTargetNotFound)
	}
	t.Status = status
	m.targets[id] = t
	return nil
}

// MarkCrawled 实现 TargetStore
func (m *MemoryStore) MarkCrawled(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, models.ErrTargetNotFound)
	}
	t.Status = models.TargetCompleted
	t.LastCrawledAt = &at
	m.targets[id] = t
	return nil
}

// MarkAttempted 实现 TargetStore
func (m *MemoryStore) MarkAttempted(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, models.ErrTargetNotFound)
	}
	t.LastAttemptAt = &at
	m.targets[id] = t
	return nil
}

// Ping 实现 Store
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close 实现 Store
func (m *MemoryStore) Close() error { return nil }

func copyTarget(t models.MonitoredTarget) models.MonitoredTarget {
	if t.ScanTime != nil {
		st := *t.ScanTime
		t.ScanTime = &st
	}
	if t.LastCrawledAt != nil {
		at := *t.LastCrawledAt
		t.LastCrawledAt = &at
	}
	if t.LastAttemptAt != nil {
		at := *t.LastAttemptAt
		t.LastAttemptAt = &at
	}
	return t
}
