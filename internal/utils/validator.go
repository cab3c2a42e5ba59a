package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/thongnm19089/share-fb/internal/models"
)

// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

// ForbiddenHeaders 由浏览器或HTTP客户端管理, 不允许自定义
// Cookie 只能通过会话材料注入
var ForbiddenHeaders = []string{
	"Host",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Cookie",
}

var (
	headerNameRe  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValueRe = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderValidator 验证自定义头部是否符合 RFC 7230
type HeaderValidator struct {
	forbidden map[string]bool
}

// NewHeaderValidator 创建验证器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]bool)
	for _, h := range ForbiddenHeaders {
		forbidden[strings.ToLower(h)] = true
	}
	return &HeaderValidator{forbidden: forbidden}
}

// ValidateHeader 验证单个头部
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	switch {
	case hv.forbidden[strings.ToLower(name)]:
		return &models.ValidationError{HeaderName: name, Reason: "此头部由浏览器自动管理,不允许自定义"}
	case !headerNameRe.MatchString(name):
		return &models.ValidationError{HeaderName: name, Reason: "头部名称包含非法字符 (仅允许字母、数字和连字符)"}
	case len(value) > MaxHeaderValueLength:
		return &models.ValidationError{HeaderName: name, Reason: fmt.Sprintf("头部值过长: %d 字节", len(value))}
	case !headerValueRe.MatchString(value):
		return &models.ValidationError{HeaderName: name, Reason: "头部值包含非法字符 (仅允许可打印ASCII字符)"}
	}
	return nil
}

// Validate 验证全部头部, 返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for name, values := range headers {
		for _, value := range values {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
