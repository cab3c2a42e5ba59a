package models

import "time"

// PostFields 单条帖子的可写字段
type PostFields struct {
	Caption  string    `json:"caption_snippet"`
	PostedAt time.Time `json:"posted_at"`
	Likes    int64     `json:"likes"`
	Comments int64     `json:"comments"`
	Shares   int64     `json:"shares"`
}

// PostRecord 热门帖子记录, 以 (TargetID, URL) 唯一
type PostRecord struct {
	TargetID string `json:"target_id"`
	URL      string `json:"source_url"`
	PostFields

	TotalEngagement int64 `json:"total_engagement"`
}

// NewPostRecord 创建记录并计算总互动数
func NewPostRecord(targetID, url string, f PostFields) PostRecord {
	r := PostRecord{TargetID: targetID, URL: url, PostFields: f}
	r.Recompute()
	return r
}

// Recompute 重新计算总互动数, 每次写入前调用
func (r *PostRecord) Recompute() {
	r.TotalEngagement = r.Likes + r.Comments + r.Shares
}

// EngagementScore 排序用的加权互动分: 点赞×1 + 评论×2 + 分享×3
func (r PostRecord) EngagementScore() int64 {
	return r.Likes + 2*r.Comments + 3*r.Shares
}

// Candidate 链接收集阶段发现的候选帖子
type Candidate struct {
	URL      string     `json:"url"`
	Label    string     `json:"label,omitempty"`     // 链接旁的短时间标签
	PostedAt *time.Time `json:"posted_at,omitempty"` // 标签可解析时的发布时间
	Order    int        `json:"order"`               // 发现顺序
}
