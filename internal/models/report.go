package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	JobID    string    `json:"job_id"`
	TargetID string    `json:"target_id"`
	Status   JobStatus `json:"status"`
	Error    string    `json:"error,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 按加权互动分排序后的结果
	Posts []RankedPost `json:"posts"`
}

// RankedPost 报告中的单条帖子
type RankedPost struct {
	Rank  int   `json:"rank"`
	Score int64 `json:"score"`
	PostRecord
}

// NewCrawlReport 根据任务快照生成报告
func NewCrawlReport(job CrawlJob, end time.Time) *CrawlReport {
	r := &CrawlReport{
		JobID:     job.ID,
		TargetID:  job.TargetID,
		Status:    job.Status,
		Error:     job.Error,
		StartTime: job.CreatedAt,
		EndTime:   end,
		Duration:  end.Sub(job.CreatedAt).Seconds(),
		Posts:     make([]RankedPost, 0, len(job.Results)),
	}
	for i, p := range job.Results {
		r.Posts = append(r.Posts, RankedPost{Rank: i + 1, Score: p.EngagementScore(), PostRecord: p})
	}
	return r
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
