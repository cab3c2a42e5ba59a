package models

import "time"

// JobStatus 爬取任务状态
type JobStatus string

const (
	JobRunning   JobStatus = "running"   // 执行中
	JobCompleted JobStatus = "completed" // 已完成
	JobError     JobStatus = "error"     // 失败
	JobCancelled JobStatus = "cancelled" // 已取消
)

// Terminal 是否为终止状态
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError || s == JobCancelled
}

// CrawlJob 爬取任务
type CrawlJob struct {
	ID        string       `json:"job_id"`
	TargetID  string       `json:"target_id"` // 目标ID 或 "all"
	Status    JobStatus    `json:"status"`
	Progress  int          `json:"progress"` // 0-100
	Results   []PostRecord `json:"results"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewCrawlJob 创建处于执行中状态的新任务
func NewCrawlJob(targetID string, now time.Time) *CrawlJob {
	return &CrawlJob{
		ID:        NewID(),
		TargetID:  targetID,
		Status:    JobRunning,
		Results:   []PostRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone 深拷贝, 供轮询方读取
func (j *CrawlJob) Clone() CrawlJob {
	c := *j
	c.Results = make([]PostRecord, len(j.Results))
	copy(c.Results, j.Results)
	return c
}

// ClampProgress 将进度限制在 [0,100]
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
