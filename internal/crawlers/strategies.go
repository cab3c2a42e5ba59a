package crawlers

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/normalize"
)

// Strategy 单个字段的一种提取方式
type Strategy[T any] struct {
	Name string
	Run  func(ex *Extraction) (T, bool)
}

// firstSuccess 依次执行策略, 返回第一个成功的结果和策略名
func firstSuccess[T any](ex *Extraction, chain []Strategy[T]) (T, string, bool) {
	for _, s := range chain {
		if ex.lost != nil {
			break
		}
		if v, ok := s.Run(ex); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// Extraction 一次详情提取的上下文
// 元素错误在策略内部吞掉, 只记录会话丢失
type Extraction struct {
	Scope     browser.Scope
	Candidate models.Candidate
	Now       time.Time
	Settings  models.CrawlSettings

	text     string
	textRead bool
	lost     error
}

func (ex *Extraction) note(err error) {
	if err != nil && ex.lost == nil && errors.Is(err, browser.ErrSessionLost) {
		ex.lost = err
	}
}

// Locate 在范围内查找, 失败时返回空
func (ex *Extraction) Locate(selector string) []browser.Element {
	els, err := ex.Scope.Locate(selector)
	ex.note(err)
	return els
}

// Text 范围内全文, 只读取一次
func (ex *Extraction) Text() string {
	if !ex.textRead {
		text, err := ex.Scope.Text()
		ex.note(err)
		ex.text, ex.textRead = text, true
	}
	return ex.text
}

func (ex *Extraction) textOf(el browser.Element) string {
	text, err := el.Text()
	ex.note(err)
	return strings.TrimSpace(text)
}

func (ex *Extraction) attr(el browser.Element, name string) (string, bool) {
	v, ok, err := el.Attribute(name)
	ex.note(err)
	return strings.TrimSpace(v), ok && err == nil
}

// postedAtChain 发布时间: 机器时间戳 → 短标签 → 全文时间短语
var postedAtChain = []Strategy[normalize.TimeResult]{
	{
		Name: "machine_timestamp",
		Run: func(ex *Extraction) (normalize.TimeResult, bool) {
			for _, el := range ex.Locate("abbr[data-utime], [data-utime]") {
				if v, ok := ex.attr(el, "data-utime"); ok {
					if r := normalize.NormalizeTime(v, ex.Now); r.HasInstant {
						return r, true
					}
				}
			}
			for _, el := range ex.Locate("time[datetime]") {
				if v, ok := ex.attr(el, "datetime"); ok {
					if at, err := time.Parse(time.RFC3339, v); err == nil {
						return normalize.ClassifyInstant(at, ex.Now), true
					}
				}
			}
			return normalize.TimeResult{}, false
		},
	},
	{
		Name: "short_label",
		Run: func(ex *Extraction) (normalize.TimeResult, bool) {
			if ex.Candidate.Label != "" {
				if r := normalize.NormalizeTime(ex.Candidate.Label, ex.Now); r.HasInstant {
					return r, true
				}
			}
			if ex.Candidate.PostedAt != nil {
				return normalize.ClassifyInstant(*ex.Candidate.PostedAt, ex.Now), true
			}
			for _, el := range ex.Locate("a[href], abbr") {
				label := ex.textOf(el)
				if label == "" || utf8.RuneCountInString(label) > ex.Settings.LabelMaxRunes {
					if aria, ok := ex.attr(el, "aria-label"); ok && utf8.RuneCountInString(aria) <= ex.Settings.LabelMaxRunes {
						label = aria
					} else {
						continue
					}
				}
				if r := normalize.NormalizeTime(label, ex.Now); r.HasInstant {
					return r, true
				}
			}
			return normalize.TimeResult{}, false
		},
	},
	{
		Name: "text_phrase",
		Run: func(ex *Extraction) (normalize.TimeResult, bool) {
			phrase, ok := normalize.FindTimePhrase(ex.Text())
			if !ok {
				return normalize.TimeResult{}, false
			}
			r := normalize.NormalizeTime(phrase, ex.Now)
			return r, r.HasInstant
		},
	},
}

// captionChain 正文: 广告预览容器 → 最长的 dir=auto 文本块
var captionChain = []Strategy[string]{
	{
		Name: "preview_message",
		Run: func(ex *Extraction) (string, bool) {
			for _, el := range ex.Locate("div[data-ad-preview='message'], div[data-ad-comet-preview='message']") {
				if text := ex.textOf(el); text != "" {
					return text, true
				}
			}
			return "", false
		},
	},
	{
		Name: "longest_auto_dir",
		Run: func(ex *Extraction) (string, bool) {
			best, bestLen := "", 0
			for _, el := range ex.Locate("div[dir='auto'], span[dir='auto']") {
				text := ex.textOf(el)
				n := utf8.RuneCountInString(text)
				if n <= ex.Settings.CaptionMinRunes || n <= bestLen || normalize.IsCaptionChrome(text) {
					continue
				}
				best, bestLen = text, n
			}
			return best, best != ""
		},
	},
}

// metricChain 某项互动数: 无障碍标签 → 结构提示 → 全文模式
func metricChain(lex *normalize.MetricLexicon) []Strategy[int64] {
	return []Strategy[int64]{
		{
			Name: "aria_label",
			Run: func(ex *Extraction) (int64, bool) {
				var best int64
				found := false
				for _, el := range ex.Locate("[aria-label]") {
					label, ok := ex.attr(el, "aria-label")
					if !ok {
						continue
					}
					if v, ok := lex.MatchLabel(label); ok {
						found = true
						best = max(best, v)
					}
				}
				return best, found
			},
		},
		{
			Name: "structural_hint",
			Run: func(ex *Extraction) (int64, bool) {
				var best int64
				found := false
				for _, el := range ex.Locate("div[role='button'], span[role='toolbar'], a[role='link']") {
					text := ex.textOf(el)
					if !lex.MentionsMetric(text) || !strings.ContainsAny(text, "0123456789") {
						continue
					}
					v, ok := lex.ScanText(text)
					if !ok {
						v, ok = lex.MatchLabel(text)
					}
					if ok {
						found = true
						best = max(best, v)
					}
				}
				return best, found
			},
		},
		{
			Name: "text_pattern",
			Run: func(ex *Extraction) (int64, bool) {
				return lex.ScanText(ex.Text())
			},
		},
	}
}

// truncateRunes 超过上限时截断并追加 "..."
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
