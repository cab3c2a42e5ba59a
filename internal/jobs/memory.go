package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/thongnm19089/share-fb/internal/models"
)

// MemoryRegistry 进程内登记表
type MemoryRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*models.CrawlJob
	clock clock.Clock
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry 创建内存登记表, clk 为空时使用系统时钟
func NewMemoryRegistry(clk clock.Clock) *MemoryRegistry {
	if clk == nil {
		clk = clock.WallClock
	}
	return &MemoryRegistry{jobs: make(map[string]*models.CrawlJob), clock: clk}
}

// Create 实现 Registry
func (m *MemoryRegistry) Create(_ context.Context, targetID string) (models.CrawlJob, error) {
	job := models.NewCrawlJob(targetID, m.clock.Now())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return job.Clone(), nil
}

// Get 实现 Registry
func (m *MemoryRegistry) Get(_ context.Context, id string) (models.CrawlJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.CrawlJob{}, notFound(id)
	}
	return job.Clone(), nil
}

func (m *MemoryRegistry) mutate(id string, fn func(j *models.CrawlJob, now time.Time) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return notFound(id)
	}
	fn(job, m.clock.Now())
	return nil
}

// SetProgress 实现 Registry
func (m *MemoryRegistry) SetProgress(_ context.Context, id string, progress int) error {
	return m.mutate(id, func(j *models.CrawlJob, now time.Time) bool {
		return applyProgress(j, progress, now)
	})
}

// AppendResult 实现 Registry
func (m *MemoryRegistry) AppendResult(_ context.Context, id string, r models.PostRecord) error {
	return m.mutate(id, func(j *models.CrawlJob, now time.Time) bool {
		return applyResult(j, r, now)
	})
}

// Complete 实现 Registry
func (m *MemoryRegistry) Complete(_ context.Context, id string, ranked []models.PostRecord) error {
	return m.mutate(id, func(j *models.CrawlJob, now time.Time) bool {
		return applyComplete(j, ranked, now)
	})
}

// Fail 实现 Registry
func (m *MemoryRegistry) Fail(_ context.Context, id string, status models.JobStatus, msg string) error {
	return m.mutate(id, func(j *models.CrawlJob, now time.Time) bool {
		return applyFail(j, status, msg, now)
	})
}

// Prune 实现 Registry
func (m *MemoryRegistry) Prune(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(before) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}
