// Package browser 定义爬取核心所依赖的浏览器能力接口, 并提供
// go-rod(真实浏览器)和 colly(静态HTML)两种实现.
//
// 爬取核心只依赖 Session/Element 接口, 不直接接触具体驱动.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionLost 浏览器会话已断开或崩溃, 对整个任务是致命错误
	ErrSessionLost = errors.New("浏览器会话已断开")
	// ErrNotFound 在超时内未找到元素
	ErrNotFound = errors.New("未找到元素")
)

// Scope 可以在其中查找元素并读取文本的范围(整个文档或某个弹窗)
type Scope interface {
	Text() (string, error)
	Locate(selector string) ([]Element, error)
}

// Element 页面元素
type Element interface {
	Scope
	// Attribute 读取属性, 属性不存在时 ok 为 false
	Attribute(name string) (value string, ok bool, err error)
	Click() error
	Type(text string) error
}

// Session 一个独占的浏览器会话
// 同一会话只能被一个任务使用, 所有阻塞操作都受 ctx 约束
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor 等待选择器出现, 超时返回 ErrNotFound
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	ScrollBy(ctx context.Context, amount int) error
	Locate(ctx context.Context, selector string) ([]Element, error)
	// InjectSession 注入序列化的会话材料(cookie)
	InjectSession(ctx context.Context, material string) error
	GoBack(ctx context.Context) error
	CurrentURL() string
	Close() error
}

// Launcher 创建相互隔离的会话
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Document 返回整个文档作为查找范围
func Document(ctx context.Context, s Session) (Scope, error) {
	els, err := s.Locate(ctx, "body")
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("页面没有 body: %w", ErrNotFound)
	}
	return els[0], nil
}
