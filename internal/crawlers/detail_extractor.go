package crawlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/normalize"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// dialogSelector 帖子详情弹窗
const dialogSelector = "div[role='dialog']"

// Detail 一个候选帖子的提取结果
type Detail struct {
	models.PostRecord
	// Recent 发布时间是否在最近窗口内
	Recent bool
	// Sources 各字段命中的策略名
	Sources map[string]string
}

// DetailExtractor 打开候选帖子并提取字段
type DetailExtractor struct {
	settings models.CrawlSettings
	clock    clock.Clock

	postedAt []Strategy[normalize.TimeResult]
	caption  []Strategy[string]
	metrics  []metricField
}

type metricField struct {
	name  string
	chain []Strategy[int64]
	set   func(f *models.PostFields, v int64)
}

// NewDetailExtractor 创建提取器
func NewDetailExtractor(settings models.CrawlSettings, clk clock.Clock) *DetailExtractor {
	if clk == nil {
		clk = clock.WallClock
	}
	return &DetailExtractor{
		settings: settings,
		clock:    clk,
		postedAt: postedAtChain,
		caption:  captionChain,
		metrics: []metricField{
			{"likes", metricChain(&normalize.LikesLexicon), func(f *models.PostFields, v int64) { f.Likes = v }},
			{"comments", metricChain(&normalize.CommentsLexicon), func(f *models.PostFields, v int64) { f.Comments = v }},
			{"shares", metricChain(&normalize.SharesLexicon), func(f *models.PostFields, v int64) { f.Shares = v }},
		},
	}
}

// Extract 打开候选并提取帖子
//
// 无法确定发布时间时返回 (nil, nil), 候选被静默丢弃.
// 元素级错误不会返回; 导航失败、超时和会话丢失会返回错误.
func (de *DetailExtractor) Extract(ctx context.Context, session browser.Session, c models.Candidate, now time.Time) (*Detail, error) {
	ctx, cancel := context.WithTimeout(ctx, de.settings.CandidateTimeout)
	defer cancel()

	if err := session.Navigate(ctx, c.URL); err != nil {
		return nil, fmt.Errorf("打开帖子失败: %w", err)
	}
	if err := sleep(ctx, de.clock, de.settings.SettleDelay); err != nil {
		return nil, err
	}

	scope, err := de.scope(ctx, session)
	if err != nil {
		return nil, err
	}

	ex := &Extraction{Scope: scope, Candidate: c, Now: now, Settings: de.settings}
	return de.ExtractFrom(ex)
}

// ExtractFrom 在已确定的范围内执行所有策略链
func (de *DetailExtractor) ExtractFrom(ex *Extraction) (*Detail, error) {
	sources := make(map[string]string)

	posted, name, ok := firstSuccess(ex, de.postedAt)
	if ex.lost != nil {
		return nil, ex.lost
	}
	if !ok || !posted.HasInstant {
		utils.Debugf("无法确定发布时间, 跳过: %s", ex.Candidate.URL)
		return nil, nil
	}
	sources["posted_at"] = name

	var fields models.PostFields
	fields.PostedAt = posted.At

	if caption, name, ok := firstSuccess(ex, de.caption); ok {
		fields.Caption = truncateRunes(caption, de.settings.CaptionMaxRunes)
		sources["caption"] = name
	}

	for _, m := range de.metrics {
		if v, name, ok := firstSuccess(ex, m.chain); ok {
			m.set(&fields, v)
			sources[m.name] = name
		}
	}
	if ex.lost != nil {
		return nil, ex.lost
	}

	return &Detail{
		PostRecord: models.NewPostRecord("", ex.Candidate.URL, fields),
		Recent:     posted.Recent,
		Sources:    sources,
	}, nil
}

// scope 等待详情弹窗, 超时则使用整个文档; 有多个弹窗时取最后一个
func (de *DetailExtractor) scope(ctx context.Context, session browser.Session) (browser.Scope, error) {
	err := session.WaitFor(ctx, dialogSelector, de.settings.DialogTimeout)
	switch {
	case err == nil:
		dialogs, err := session.Locate(ctx, dialogSelector)
		if err != nil {
			return nil, err
		}
		if len(dialogs) > 0 {
			return dialogs[len(dialogs)-1], nil
		}
	case errors.Is(err, browser.ErrSessionLost) || ctx.Err() != nil:
		return nil, err
	}
	return browser.Document(ctx, session)
}
