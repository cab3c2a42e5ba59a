package browser

import (
	"net/http"

	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/124.0.0.0 Safari/537.36"

	// DefaultAcceptLanguage 默认语言, 越南语优先
	DefaultAcceptLanguage = "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7"
)

// HeaderManager 管理浏览器会话的请求头
// 实现 models.HeaderProvider 接口, 优先级: 默认 < 配置文件 < 命令行
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator *utils.HeaderValidator
	redactor  *utils.SecretRedactor
}

// NewHeaderManager 创建头部管理器
// configHeaders 来自配置文件 browser.headers, cliHeaders 来自 -H 参数
func NewHeaderManager(userAgent, acceptLanguage string, configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  defaultHeaders(userAgent, acceptLanguage),
		config:    make(http.Header),
		cli:       make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewSecretRedactor(),
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

func defaultHeaders(userAgent, acceptLanguage string) http.Header {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if acceptLanguage == "" {
		acceptLanguage = DefaultAcceptLanguage
	}
	return http.Header{
		"User-Agent":      []string{userAgent},
		"Accept-Language": []string{acceptLanguage},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	}
}

// Validate 验证所有头部
// 验证顺序: 默认 → 配置 → 命令行
func (hm *HeaderManager) Validate() error {
	for _, layer := range []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	} {
		if err := hm.validator.Validate(layer.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", layer.name, err)
			return err
		}
	}
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部, 用于日志
func (hm *HeaderManager) GetSafeHeaders() string {
	return hm.redactor.RedactHeaders(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}

// UserAgent 合并后的 User-Agent
func (hm *HeaderManager) UserAgent() string {
	return hm.GetMergedHeaders().Get("User-Agent")
}

// AcceptLanguage 合并后的 Accept-Language
func (hm *HeaderManager) AcceptLanguage() string {
	return hm.GetMergedHeaders().Get("Accept-Language")
}

// extraHeaders 除 User-Agent 外的头部, 展开为 name,value 交替的列表
func extraHeaders(h http.Header) []string {
	var out []string
	for name, values := range h {
		if http.CanonicalHeaderKey(name) == "User-Agent" || len(values) == 0 {
			continue
		}
		out = append(out, name, values[0])
	}
	return out
}
