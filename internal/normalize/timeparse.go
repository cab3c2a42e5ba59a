package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RecentWindow "近期"时间窗口
const RecentWindow = 24 * time.Hour

// justNowOffset "刚刚" 对应的时间偏移
const justNowOffset = 30 * time.Second

// TimeResult 时间解析结果
type TimeResult struct {
	At         time.Time // 解析出的时间点, 仅当 HasInstant 为 true 时有效
	HasInstant bool
	Recent     bool // 是否在最近24小时内
}

type unitKind int

const (
	unitSecond unitKind = iota
	unitMinute
	unitHour
	unitDay
)

var (
	justNowWords   = collect(func(l TimeLexicon) []string { return l.JustNow })
	yesterdayWords = collect(func(l TimeLexicon) []string { return l.Yesterday })
	todayWords     = collect(func(l TimeLexicon) []string { return l.Today })
	pmWords        = collect(func(l TimeLexicon) []string { return l.PM })

	unitKinds = map[string]unitKind{}

	relativeRe  *regexp.Regexp
	clockRe     *regexp.Regexp
	bareClockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	epochRe     = regexp.MustCompile(`^\d{10}$`)
	phraseRe    *regexp.Regexp
	dayMonthRe  *regexp.Regexp
	monthDayRe  *regexp.Regexp
	dayNameRe   *regexp.Regexp

	monthByName = map[string]time.Month{}
)

func init() {
	var units []string
	for kind, pick := range map[unitKind]func(TimeLexicon) []string{
		unitSecond: func(l TimeLexicon) []string { return l.Seconds },
		unitMinute: func(l TimeLexicon) []string { return l.Minutes },
		unitHour:   func(l TimeLexicon) []string { return l.Hours },
		unitDay:    func(l TimeLexicon) []string { return l.Days },
	} {
		for _, w := range collect(pick) {
			unitKinds[w] = kind
			units = append(units, w)
		}
	}
	units = longestFirst(units)

	// 数字前后都必须是非字母边界, RE2 的 \b 不识别越南语字母
	relativeRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(\d+)\s*(` + alternation(units) + `)(?:$|[^\p{L}])`)

	meridiem := longestFirst(append(
		collect(func(l TimeLexicon) []string { return l.AM }),
		pmWords...))
	clockRe = regexp.MustCompile(`(\d{1,2}):(\d{2})(?:\s*(` + alternation(meridiem) + `)(?:$|[^\p{L}]))?`)

	var months []string
	var monthWords []string
	for _, lex := range timeLexicons {
		for i, names := range lex.Months {
			for _, n := range names {
				monthByName[n] = time.Month(i + 1)
				months = append(months, n)
			}
		}
		if lex.MonthWord != "" {
			monthWords = append(monthWords, lex.MonthWord)
		}
	}
	months = longestFirst(months)
	dayMonthRe = regexp.MustCompile(`(?:^|[^\p{N}])(\d{1,2})\s+(?:` + alternation(monthWords) + `)\s+(\d{1,2})(?:,?\s+(?:năm\s+)?(\d{4}))?`)
	monthDayRe = regexp.MustCompile(`(?:^|[^\p{L}])(` + alternation(months) + `)\s+(\d{1,2})(?:,?\s+(\d{4}))?(?:$|[^\p{N}])`)
	dayNameRe = regexp.MustCompile(`(?:^|[^\p{N}])(\d{1,2})\s+(` + alternation(months) + `)(?:\s+(\d{4}))?(?:$|[^\p{L}])`)

	phraseRe = regexp.MustCompile(strings.Join([]string{
		alternation(justNowWords),
		`(?:` + alternation(yesterdayWords) + `|` + alternation(todayWords) + `)(?:\s+\S+)?(?:\s+\d{1,2}:\d{2})?`,
		`(?:^|[^\p{L}\p{N}])\d+\s*(?:` + alternation(units) + `)(?:$|[^\p{L}])`,
	}, "|"))
}

// NormalizeTime 将短时间标签或10位Unix时间戳解析为时间点
//
// 规则按优先级依次尝试, 结果只依赖传入的 now.
func NormalizeTime(label string, now time.Time) TimeResult {
	s := fold(label)
	if s == "" {
		return TimeResult{}
	}

	// 刚刚
	if containsAny(s, justNowWords) {
		return recent(now.Add(-justNowOffset))
	}

	// N秒/分钟/小时/天前
	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch unitKinds[m[2]] {
			case unitSecond:
				return recent(now.Add(-time.Duration(n) * time.Second))
			case unitMinute:
				return recent(now.Add(-time.Duration(n) * time.Minute))
			case unitHour:
				return hoursAgo(n, now)
			case unitDay:
				return hoursAgo(n*24, now)
			}
		}
	}

	// 昨天 [HH:MM]
	if containsAny(s, yesterdayWords) {
		if clock, ok := findClock(s); ok {
			y := now.AddDate(0, 0, -1)
			at := time.Date(y.Year(), y.Month(), y.Day(), clock.hour, clock.minute, 0, 0, now.Location())
			return withinWindow(at, now)
		}
		return recent(now.Add(-RecentWindow))
	}

	// 今天 HH:MM 或单独的 HH:MM
	if containsAny(s, todayWords) || bareClockRe.MatchString(s) {
		if clock, ok := findClock(s); ok {
			at := time.Date(now.Year(), now.Month(), now.Day(), clock.hour, clock.minute, 0, 0, now.Location())
			if at.After(now) {
				at = at.AddDate(0, 0, -1)
			}
			return withinWindow(at, now)
		}
	}

	// Unix 时间戳
	if epochRe.MatchString(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return withinWindow(time.Unix(sec, 0).In(now.Location()), now)
		}
	}

	// 绝对日期, 如 "12 tháng 5", "May 12, 2024"
	if at, ok := parseCalendarDate(s, now); ok {
		return withinWindow(at, now)
	}

	return TimeResult{}
}

// FindTimePhrase 在一段自由文本中查找第一个类似时间的片段
func FindTimePhrase(text string) (string, bool) {
	s := fold(text)
	loc := phraseRe.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(s[loc[0]:loc[1]]), true
}

type clockTime struct{ hour, minute int }

func findClock(s string) (clockTime, bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return clockTime{}, false
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return clockTime{}, false
	}
	if marker := m[3]; marker != "" {
		pm := containsAny(marker, pmWords)
		switch {
		case pm && h < 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
	}
	return clockTime{hour: h, minute: minute}, true
}

func parseCalendarDate(s string, now time.Time) (time.Time, bool) {
	var day, year int
	var month time.Month

	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		day, _ = strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		month = time.Month(mo)
		year, _ = strconv.Atoi(m[3])
	} else if m := monthDayRe.FindStringSubmatch(s); m != nil {
		month = monthByName[m[1]]
		day, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else if m := dayNameRe.FindStringSubmatch(s); m != nil {
		day, _ = strconv.Atoi(m[1])
		month = monthByName[m[2]]
		year, _ = strconv.Atoi(m[3])
	} else {
		return time.Time{}, false
	}
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}

	hour, minute := 0, 0
	if clock, ok := findClock(s); ok {
		hour, minute = clock.hour, clock.minute
	}

	explicitYear := year != 0
	if !explicitYear {
		year = now.Year()
	}
	at := time.Date(year, month, day, hour, minute, 0, 0, now.Location())
	if !explicitYear && at.After(now) {
		at = at.AddDate(-1, 0, 0)
	}
	return at, true
}

func hoursAgo(n int, now time.Time) TimeResult {
	if n > 24 {
		return TimeResult{}
	}
	return recent(now.Add(-time.Duration(n) * time.Hour))
}

func recent(at time.Time) TimeResult {
	return TimeResult{At: at, HasInstant: true, Recent: true}
}

func withinWindow(at, now time.Time) TimeResult {
	return TimeResult{At: at, HasInstant: true, Recent: now.Sub(at) <= RecentWindow}
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

func longestFirst(words []string) []string {
	out := append([]string(nil), words...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ClassifyInstant 判断一个已知时间点是否在最近窗口内
func ClassifyInstant(at, now time.Time) TimeResult {
	return withinWindow(at.In(now.Location()), now)
}
