package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TargetStatus 监控目标状态
type TargetStatus string

const (
	TargetIdle      TargetStatus = "idle"      // 空闲
	TargetQueued    TargetStatus = "queued"    // 已排队
	TargetRunning   TargetStatus = "running"   // 爬取中
	TargetCompleted TargetStatus = "completed" // 已完成
	TargetError     TargetStatus = "error"     // 出错
)

// AllTargets 触发全部目标爬取时使用的目标ID
const AllTargets = "all"

// ClockTime 一天中的时刻(HH:MM)
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime 解析 "HH:MM" 格式的时刻
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("无效的时刻格式 %q, 应为 HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("无效的小时 %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("无效的分钟 %q", parts[1])
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// On 返回 day 所在日期的该时刻
func (c ClockTime) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// String 格式化为 HH:MM
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MonitoredTarget 监控目标(一个被定期爬取的主页/信息流)
type MonitoredTarget struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	FeedURL string `json:"feed_url"`

	// 爬取策略
	AutoScan bool       `json:"auto_scan"`           // 是否参与自动扫描
	ScanTime *ClockTime `json:"scan_time,omitempty"` // 固定扫描时刻, 为空时使用默认的每日两次策略

	// 运行状态
	Status        TargetStatus `json:"status"`
	LastCrawledAt *time.Time   `json:"last_crawled_at,omitempty"` // 最近一次成功爬取时间
	LastAttemptAt *time.Time   `json:"last_attempt_at,omitempty"` // 最近一次被调度排队的时间, 无论成败
}

// Validate 验证目标配置
func (t *MonitoredTarget) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("目标ID不能为空")
	}
	if t.ID == AllTargets {
		return fmt.Errorf("目标ID不能使用保留字 %q", AllTargets)
	}
	if err := ValidateURL(t.FeedURL); err != nil {
		return fmt.Errorf("目标 %s 的地址无效: %w", t.ID, err)
	}
	return nil
}

// LastActivity 最近一次成功爬取或调度尝试中较晚的一个
func (t *MonitoredTarget) LastActivity() *time.Time {
	switch {
	case t.LastAttemptAt == nil:
		return t.LastCrawledAt
	case t.LastCrawledAt == nil || t.LastAttemptAt.After(*t.LastCrawledAt):
		return t.LastAttemptAt
	default:
		return t.LastCrawledAt
	}
}

// Busy 目标是否已排队或正在爬取
func (t *MonitoredTarget) Busy() bool {
	return t.Status == TargetQueued || t.Status == TargetRunning
}
