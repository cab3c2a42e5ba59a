package normalize

import (
	"regexp"
	"strings"
	"sync"
)

// numberPattern 数字加可选数量级单位, 交给 NormalizeNumber 解析
var numberPattern = `(\d[\d.,]*(?:\s*(?:` + alternation(unitWords()) + `))?)`

func unitWords() []string {
	words := make([]string, len(magnitudeUnits))
	for i, u := range magnitudeUnits {
		words[i] = u.word
	}
	return words
}

type metricPatterns struct {
	suffix *regexp.Regexp
	prefix *regexp.Regexp
}

var (
	patternCache   = map[string]metricPatterns{}
	patternCacheMu sync.Mutex
)

func (l *MetricLexicon) patterns() metricPatterns {
	patternCacheMu.Lock()
	defer patternCacheMu.Unlock()

	if p, ok := patternCache[l.Name]; ok {
		return p
	}
	var p metricPatterns
	if len(l.UnitWords) > 0 {
		p.suffix = regexp.MustCompile(numberPattern + `\s*(?:` + alternation(longestFirst(l.UnitWords)) + `)(?:$|[^\p{L}])`)
	}
	if len(l.Prefixes) > 0 {
		p.prefix = regexp.MustCompile(`(?:` + alternation(longestFirst(l.Prefixes)) + `)\s*` + numberPattern)
	}
	patternCache[l.Name] = p
	return p
}

// MatchLabel 判断无障碍标签是否为该指标的计数, 是则返回其中的数字
func (l *MetricLexicon) MatchLabel(label string) (int64, bool) {
	s := fold(label)
	if s == "" || !strings.ContainsFunc(s, isASCIIDigit) {
		return 0, false
	}
	if !containsAny(s, l.Keywords) || containsAny(s, l.ExcludeSubstrings) {
		return 0, false
	}
	for _, chrome := range l.ChromeLabels {
		if s == chrome {
			return 0, false
		}
	}
	return NormalizeNumber(s), true
}

// MentionsMetric 文本是否提到该指标
func (l *MetricLexicon) MentionsMetric(text string) bool {
	return containsAny(fold(text), l.Keywords)
}

// ScanText 在全文中查找 "<数字> <单位词>" 或 "<前缀> <数字>"
func (l *MetricLexicon) ScanText(text string) (int64, bool) {
	s := fold(text)
	p := l.patterns()
	if p.prefix != nil {
		if m := p.prefix.FindStringSubmatch(s); m != nil {
			return NormalizeNumber(m[1]), true
		}
	}
	if p.suffix != nil {
		if m := p.suffix.FindStringSubmatch(s); m != nil {
			return NormalizeNumber(m[1]), true
		}
	}
	return 0, false
}

// IsCaptionChrome 文本是否包含界面按钮关键词
func IsCaptionChrome(text string) bool {
	return containsAny(fold(text), CaptionChromeKeywords)
}
