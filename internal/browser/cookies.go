package browser

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultCookieDomain 会话材料中缺少域名时使用的默认域名
const DefaultCookieDomain = ".facebook.com"

// Cookie 浏览器导出格式的cookie
type Cookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Expires        float64 `json:"expires"`
	ExpirationDate float64 `json:"expirationDate"`
	HTTPOnly       bool    `json:"httpOnly"`
	Secure         bool    `json:"secure"`
	SameSite       string  `json:"sameSite"`
}

// ParseSessionMaterial 解析会话材料
// 支持cookie数组, 或带 "cookies" 字段的对象.
// 缺少域名时补 .facebook.com, 非法的 sameSite 会被丢弃.
func ParseSessionMaterial(material string) ([]Cookie, error) {
	data := []byte(strings.TrimSpace(material))
	if len(data) == 0 {
		return nil, fmt.Errorf("会话材料为空")
	}

	var cookies []Cookie
	if data[0] == '{' {
		var wrapper struct {
			Cookies []Cookie `json:"cookies"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("解析会话材料失败: %w", err)
		}
		cookies = wrapper.Cookies
	} else if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("解析会话材料失败: %w", err)
	}

	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		if c.Domain == "" {
			c.Domain = DefaultCookieDomain
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if c.Expires == 0 && c.ExpirationDate > 0 {
			c.Expires = c.ExpirationDate
		}
		c.SameSite = normalizeSameSite(c.SameSite)
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("会话材料中没有有效的cookie")
	}
	return out, nil
}

func normalizeSameSite(v string) string {
	switch strings.ToLower(v) {
	case "strict":
		return "Strict"
	case "lax":
		return "Lax"
	case "none", "no_restriction":
		return "None"
	default:
		return ""
	}
}

// HTTPCookie 转换为 net/http 的cookie
func (c Cookie) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if c.Expires > 0 {
		hc.Expires = time.Unix(int64(c.Expires), 0)
	}
	switch c.SameSite {
	case "Strict":
		hc.SameSite = http.SameSiteStrictMode
	case "Lax":
		hc.SameSite = http.SameSiteLaxMode
	case "None":
		hc.SameSite = http.SameSiteNoneMode
	}
	return hc
}

// URL 返回可以设置该cookie的地址
func (c Cookie) URL() string {
	return "https://" + strings.TrimPrefix(c.Domain, ".") + c.Path
}

// cookiePairs 名称-值映射, 用于脱敏日志
func cookiePairs(cookies []Cookie) map[string]string {
	pairs := make(map[string]string, len(cookies))
	for _, c := range cookies {
		pairs[c.Name] = c.Value
	}
	return pairs
}
