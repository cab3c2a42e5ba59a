package normalize

import (
	"sort"
	"strings"
)

// 本文件集中存放所有与语言相关的词表.
// 新增一种语言或单位只需要修改这里的数据.

// magnitudeUnit 数量级单位
type magnitudeUnit struct {
	word       string
	multiplier int64
}

var magnitudeUnits = sortUnits([]magnitudeUnit{
	{"k", 1_000},
	{"nghìn", 1_000},
	{"ngàn", 1_000},
	{"m", 1_000_000},
	{"tr", 1_000_000},
	{"triệu", 1_000_000},
	{"b", 1_000_000_000},
	{"tỷ", 1_000_000_000},
})

// TimeLexicon 单一语言的时间表达词表
type TimeLexicon struct {
	Locale    string
	JustNow   []string
	Yesterday []string
	Today     []string
	Seconds   []string
	Minutes   []string
	Hours     []string
	Days      []string
	AM        []string
	PM        []string
	Months    [][]string // 下标+1 即月份
	MonthWord string     // "12 tháng 5" 形式中的月份连接词
}

var timeLexicons = []TimeLexicon{
	{
		Locale:    "vi",
		JustNow:   []string{"vừa xong", "vài giây trước"},
		Yesterday: []string{"hôm qua"},
		Today:     []string{"hôm nay"},
		Seconds:   []string{"giây"},
		Minutes:   []string{"phút"},
		Hours:     []string{"giờ", "tiếng"},
		Days:      []string{"ngày"},
		AM:        []string{"sa"},
		PM:        []string{"ch"},
		MonthWord: "tháng",
	},
	{
		Locale:    "en",
		JustNow:   []string{"just now", "a few seconds ago"},
		Yesterday: []string{"yesterday"},
		Today:     []string{"today"},
		Seconds:   []string{"s", "sec", "secs", "second", "seconds"},
		Minutes:   []string{"m", "min", "mins", "minute", "minutes"},
		Hours:     []string{"h", "hr", "hrs", "hour", "hours"},
		Days:      []string{"d", "day", "days"},
		AM:        []string{"am"},
		PM:        []string{"pm"},
		Months: [][]string{
			{"january", "jan"},
			{"february", "feb"},
			{"march", "mar"},
			{"april", "apr"},
			{"may"},
			{"june", "jun"},
			{"july", "jul"},
			{"august", "aug"},
			{"september", "sept", "sep"},
			{"october", "oct"},
			{"november", "nov"},
			{"december", "dec"},
		},
	},
}

// MetricLexicon 单项互动指标(点赞/评论/分享)的识别词表
type MetricLexicon struct {
	Name string
	// Keywords 无障碍标签中出现这些词才视为该指标
	Keywords []string
	// ChromeLabels 完全等于这些文案的标签是界面按钮, 不含计数
	ChromeLabels []string
	// ExcludeSubstrings 包含这些片段的标签一律跳过
	ExcludeSubstrings []string
	// UnitWords 全文匹配 "<数字> <单位词>"
	UnitWords []string
	// Prefixes 全文匹配 "<前缀> <数字>"
	Prefixes []string
}

var (
	// LikesLexicon 点赞/心情
	LikesLexicon = MetricLexicon{
		Name:     "likes",
		Keywords: []string{"cảm xúc", "lượt thích", "người thích", "thích:", "yêu thích:", "người khác", "reaction", "react", "likes", "like:", "others"},
		ChromeLabels: []string{
			"bày tỏ cảm xúc", "thích", "yêu thích", "like", "react",
			"xem ai đã bày tỏ cảm xúc về tin này", "xem ai đã bày tỏ cảm xúc về bình luận này",
			"see who reacted to this",
		},
		ExcludeSubstrings: []string{"bình luận này"},
		UnitWords:         []string{"lượt thích", "người thích", "người khác", "cảm xúc", "likes", "reactions", "others"},
		Prefixes:          []string{"tất cả cảm xúc:", "all reactions:"},
	}

	// CommentsLexicon 评论
	CommentsLexicon = MetricLexicon{
		Name:     "comments",
		Keywords: []string{"bình luận", "comment"},
		ChromeLabels: []string{
			"bình luận", "viết bình luận", "comment", "write a comment", "leave a comment",
			"ẩn hoặc báo cáo bình luận này", "trả lời", "reply",
		},
		ExcludeSubstrings: []string{"dưới tên", "comment as", "bình luận của", "comment by"},
		UnitWords:         []string{"bình luận", "comments", "comment"},
	}

	// SharesLexicon 分享
	SharesLexicon = MetricLexicon{
		Name:     "shares",
		Keywords: []string{"chia sẻ", "share"},
		ChromeLabels: []string{
			"chia sẻ", "share", "chia sẻ bài viết", "share post",
		},
		ExcludeSubstrings: []string{"góp ý cho chia sẻ", "gửi nội dung", "send this"},
		UnitWords:         []string{"lượt chia sẻ", "chia sẻ", "shares", "share"},
	}
)

// CaptionChromeKeywords 含有这些词的文本视为界面元素, 不作为帖子正文
var CaptionChromeKeywords = []string{
	"bình luận", "chia sẻ", "thích", "comment", "share", "like", "reactions",
}

func sortUnits(units []magnitudeUnit) []magnitudeUnit {
	sort.SliceStable(units, func(i, j int) bool {
		return len(units[i].word) > len(units[j].word)
	})
	return units
}

// collect 汇总所有语言的某一类词并按长度降序, 用于构造正则的最长优先分支
func collect(pick func(TimeLexicon) []string) []string {
	var words []string
	seen := map[string]bool{}
	for _, lex := range timeLexicons {
		for _, w := range pick(lex) {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return words
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
