package models

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// CrawlSettings 爬取参数(滚动/停止阈值/超时)
type CrawlSettings struct {
	MaxScrolls    int           `mapstructure:"max_scrolls"`     // 最大滚动次数
	ScrollAmount  int           `mapstructure:"scroll_amount"`   // 每次滚动像素
	ScrollPause   time.Duration `mapstructure:"scroll_pause"`    // 滚动后等待
	PlateauSteps  int           `mapstructure:"plateau_steps"`   // 连续无新链接的步数上限
	StaleStreak   int           `mapstructure:"stale_streak"`    // 连续过期链接上限
	LabelMaxRunes int           `mapstructure:"label_max_runes"` // 时间标签最大长度

	DialogTimeout    time.Duration `mapstructure:"dialog_timeout"`    // 等待详情弹窗
	CandidateTimeout time.Duration `mapstructure:"candidate_timeout"` // 单个候选的处理超时
	SettleDelay      time.Duration `mapstructure:"settle_delay"`      // 导航后等待渲染
	NavRate          float64       `mapstructure:"nav_rate"`          // 每秒导航次数, 0 表示不限速

	KnownURLLimit   int `mapstructure:"known_url_limit"`   // 跳过列表的大小
	CaptionMinRunes int `mapstructure:"caption_min_runes"` // 正文候选最小长度
	CaptionMaxRunes int `mapstructure:"caption_max_runes"` // 正文截断长度
}

// DefaultCrawlSettings 默认爬取参数
func DefaultCrawlSettings() CrawlSettings {
	return CrawlSettings{
		MaxScrolls:       15,
		ScrollAmount:     3000,
		ScrollPause:      3 * time.Second,
		PlateauSteps:     3,
		StaleStreak:      4,
		LabelMaxRunes:    20,
		DialogTimeout:    5 * time.Second,
		CandidateTimeout: 45 * time.Second,
		SettleDelay:      2 * time.Second,
		NavRate:          0.5,
		KnownURLLimit:    100,
		CaptionMinRunes:  5,
		CaptionMaxRunes:  200,
	}
}

// Validate 验证参数, 汇总所有错误
func (c *CrawlSettings) Validate() error {
	var err error
	if c.MaxScrolls < 1 || c.MaxScrolls > 200 {
		err = multierror.Append(err, fmt.Errorf("最大滚动次数必须在1-200之间"))
	}
	if c.ScrollAmount < 1 {
		err = multierror.Append(err, fmt.Errorf("滚动距离必须大于0"))
	}
	if c.PlateauSteps < 1 {
		err = multierror.Append(err, fmt.Errorf("平台期步数必须大于0"))
	}
	if c.StaleStreak < 1 {
		err = multierror.Append(err, fmt.Errorf("过期链接上限必须大于0"))
	}
	if c.ScrollPause < 0 || c.DialogTimeout < 0 || c.SettleDelay < 0 {
		err = multierror.Append(err, fmt.Errorf("等待时间不能为负数"))
	}
	if c.CandidateTimeout <= 0 {
		err = multierror.Append(err, fmt.Errorf("候选处理超时必须大于0"))
	}
	if c.NavRate < 0 {
		err = multierror.Append(err, fmt.Errorf("导航速率不能为负数"))
	}
	if c.CaptionMaxRunes < 1 {
		err = multierror.Append(err, fmt.Errorf("正文截断长度必须大于0"))
	}
	return err
}
