package utils

import (
	"net/http"
	"sort"
	"strings"
)

// SensitiveKeywords 名称中包含这些片段的头部或cookie需要脱敏
var SensitiveKeywords = []string{
	"authorization",
	"cookie",
	"token",
	"secret",
	"password",
	"session",
	"c_user",
	"xs",
	"datr",
	"fr",
}

// SecretRedactor 日志脱敏器
type SecretRedactor struct {
	keywords []string
}

// NewSecretRedactor 创建脱敏器
func NewSecretRedactor() *SecretRedactor {
	return &SecretRedactor{keywords: SensitiveKeywords}
}

// IsSensitive 根据名称判断是否为敏感字段
func (r *SecretRedactor) IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range r.keywords {
		if lower == kw || (len(kw) > 3 && strings.Contains(lower, kw)) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个值, 长值保留首尾各2位
func (r *SecretRedactor) RedactValue(value string) string {
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:2] + "***" + value[len(value)-2:]
	}
	return "***"
}

// RedactPairs 脱敏名称-值对, 返回按名称排序的 "name=value" 字符串
func (r *SecretRedactor) RedactPairs(pairs map[string]string) string {
	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := pairs[name]
		if r.IsSensitive(name) {
			value = r.RedactValue(value)
		}
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, ", ")
}

// RedactHeaders 脱敏 http.Header (只取每个头部的第一个值)
func (r *SecretRedactor) RedactHeaders(headers http.Header) string {
	pairs := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			pairs[name] = values[0]
		}
	}
	return r.RedactPairs(pairs)
}
