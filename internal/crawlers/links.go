package crawlers

import (
	"net/url"
	"strings"
)

// postLinkPatterns 帖子链接特征
var postLinkPatterns = []string{
	"/posts/", "/videos/", "/photos/", "/permalink/", "/reel/", "fbid=", "story_fbid=",
}

// postIdentityKeys 标识帖子的查询参数, 规范化时只保留这些
var postIdentityKeys = []string{"fbid", "story_fbid", "id", "v"}

// IsPostLink 链接是否指向单个帖子
func IsPostLink(href string) bool {
	for _, p := range postLinkPatterns {
		if strings.Contains(href, p) {
			return true
		}
	}
	return false
}

// NormalizeLink 把链接规范化为绝对地址
// 相对链接基于 base 解析, 去掉片段, 查询参数只保留帖子标识
func NormalizeLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""

	query := u.Query()
	kept := url.Values{}
	for _, k := range postIdentityKeys {
		if v := query.Get(k); v != "" {
			kept.Set(k, v)
		}
	}
	u.RawQuery = kept.Encode()
	return u.String(), true
}
