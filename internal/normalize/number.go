// Package normalize 将界面上的本地化文本(数量、时间)转换为规范值.
//
// 所有与语言相关的词表都集中在 lexicon.go 中.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeNumber 将带数量级后缀的界面文本解析为整数
//
// 分隔符规则:
//   - 分隔符后紧跟1-2位数字再跟单位: 小数点 ("1,2K" = 1200)
//   - 其他分隔符一律去掉 ("1.200" = 1200)
//
// 无法解析、超出 int64 范围或空输入返回0, 不会报错.
func NormalizeNumber(text string) int64 {
	s := fold(text)

	start := strings.IndexFunc(s, isASCIIDigit)
	if start < 0 {
		return 0
	}
	end := start
	for end < len(s) && (isDigitByte(s[end]) || s[end] == '.' || s[end] == ',') {
		end++
	}

	multiplier, hasUnit := matchUnit(strings.TrimLeft(s[end:], " "))
	whole, frac := splitSeparators(s[start:end], hasUnit)

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0
	}
	if !hasUnit {
		return w
	}

	if w > math.MaxInt64/multiplier {
		return 0
	}
	value := w * multiplier
	if frac != "" {
		f, err := strconv.ParseInt(frac, 10, 64)
		if err == nil {
			scale := int64(1)
			for range frac {
				scale *= 10
			}
			add := f * multiplier / scale
			if value > math.MaxInt64-add {
				return 0
			}
			value += add
		}
	}
	return value
}

// splitSeparators 按分隔符规则拆出整数部分与小数部分
func splitSeparators(raw string, hasUnit bool) (whole, frac string) {
	groups := strings.FieldsFunc(raw, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) == 0 {
		return "", ""
	}
	// 分组之间的分隔符只有最后一个可能是小数点
	if hasUnit && len(groups) > 1 && !strings.HasSuffix(raw, ".") && !strings.HasSuffix(raw, ",") {
		last := groups[len(groups)-1]
		if len(last) >= 1 && len(last) <= 2 {
			return strings.Join(groups[:len(groups)-1], ""), last
		}
	}
	return strings.Join(groups, ""), ""
}

// matchUnit 识别紧随数字之后的数量级单位
func matchUnit(rest string) (int64, bool) {
	for _, u := range magnitudeUnits {
		if !strings.HasPrefix(rest, u.word) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(rest[len(u.word):])
		if next == utf8.RuneError || !unicode.IsLetter(next) {
			return u.multiplier, true
		}
	}
	return 1, false
}

// fold 统一为 NFC、小写, 并把各类空白压缩为单个空格
func fold(s string) string {
	s = norm.NFC.String(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }
