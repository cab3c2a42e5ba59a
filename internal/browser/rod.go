package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/hashicorp/go-multierror"

	"github.com/thongnm19089/share-fb/internal/utils"
)

// RodOptions 真实浏览器启动参数
type RodOptions struct {
	Headless          bool
	Bin               string
	NavigationTimeout time.Duration
}

// RodLauncher 基于 go-rod 的会话工厂
// 所有会话共享同一个浏览器进程, 每个会话一个独立的隐身上下文
type RodLauncher struct {
	browser *rod.Browser
	opts    RodOptions
	headers *HeaderManager
}

// LaunchRod 启动浏览器并连接
func LaunchRod(opts RodOptions, headers *HeaderManager) (*RodLauncher, error) {
	l := launcher.New().Headless(opts.Headless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	l = l.Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &RodLauncher{browser: browser, opts: opts, headers: headers}, nil
}

// LookPath 查找本机浏览器
func LookPath() (string, bool) {
	return launcher.LookPath()
}

// NewSession 打开一个隐身上下文中的隐匿页面
func (rl *RodLauncher) NewSession(ctx context.Context) (s Session, err error) {
	defer recoverLost(&err)

	incognito, err := rl.browser.Incognito()
	if err != nil {
		return nil, rl.lost(fmt.Errorf("创建隐身上下文失败: %w", err))
	}
	page, err := stealth.Page(incognito)
	if err != nil {
		_ = incognito.Close()
		return nil, rl.lost(fmt.Errorf("创建页面失败: %w", err))
	}

	sess := &RodSession{launcher: rl, context: incognito, page: page}
	if rl.headers != nil {
		headers, err := rl.headers.GetHeaders()
		if err != nil {
			_ = sess.Close()
			return nil, err
		}
		if err := sess.applyHeaders(headers); err != nil {
			_ = sess.Close()
			return nil, err
		}
	}
	return sess, nil
}

// Close 关闭浏览器进程
func (rl *RodLauncher) Close() error {
	if rl.browser == nil {
		return nil
	}
	err := rl.browser.Close()
	utils.Debugf("浏览器已关闭")
	return err
}

// alive 通过 Browser.getVersion 探测浏览器是否仍可用
func (rl *RodLauncher) alive() bool {
	_, err := proto.BrowserGetVersion{}.Call(rl.browser)
	return err == nil
}

// lost 浏览器不可用时把错误标记为会话丢失
func (rl *RodLauncher) lost(err error) error {
	if err == nil || errors.Is(err, ErrSessionLost) {
		return err
	}
	if !rl.alive() {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}

// recoverLost 把驱动内部的panic转换为 ErrSessionLost
func recoverLost(err *error) {
	if r := recover(); r != nil {
		utils.Errorf("浏览器操作panic: %v", r)
		*err = fmt.Errorf("%w: %v", ErrSessionLost, r)
	}
}

// RodSession 单个隐身上下文中的页面
type RodSession struct {
	launcher *RodLauncher
	context  *rod.Browser
	page     *rod.Page
}

func (s *RodSession) applyHeaders(headers http.Header) error {
	err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      headers.Get("User-Agent"),
		AcceptLanguage: headers.Get("Accept-Language"),
	})
	if err != nil {
		return fmt.Errorf("设置User-Agent失败: %w", err)
	}
	if extra := extraHeaders(headers); len(extra) > 0 {
		if _, err := s.page.SetExtraHeaders(extra); err != nil {
			return fmt.Errorf("设置请求头失败: %w", err)
		}
	}
	return nil
}

// Navigate 打开地址并等待加载
func (s *RodSession) Navigate(ctx context.Context, url string) (err error) {
	defer recoverLost(&err)

	page := s.page.Context(ctx).Timeout(s.launcher.opts.NavigationTimeout)
	defer page.CancelTimeout()
	if err := page.Navigate(url); err != nil {
		return s.launcher.lost(fmt.Errorf("打开页面失败 [%s]: %w", url, err))
	}
	if err := page.WaitLoad(); err != nil {
		return s.launcher.lost(fmt.Errorf("等待页面加载失败 [%s]: %w", url, err))
	}
	return nil
}

// WaitFor 等待选择器出现
func (s *RodSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) (err error) {
	defer recoverLost(&err)

	page := s.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()
	_, err = page.Element(selector)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return s.launcher.lost(err)
}

// ScrollBy 向下滚动
func (s *RodSession) ScrollBy(ctx context.Context, amount int) (err error) {
	defer recoverLost(&err)

	if _, err := s.page.Context(ctx).Eval(`dy => window.scrollBy(0, dy)`, amount); err != nil {
		return s.launcher.lost(fmt.Errorf("滚动失败: %w", err))
	}
	return nil
}

// Locate 查找所有匹配的元素
func (s *RodSession) Locate(ctx context.Context, selector string) (out []Element, err error) {
	defer recoverLost(&err)

	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, s.launcher.lost(fmt.Errorf("查找元素失败 [%s]: %w", selector, err))
	}
	return wrapRodElements(els), nil
}

// InjectSession 注入cookie
func (s *RodSession) InjectSession(ctx context.Context, material string) (err error) {
	defer recoverLost(&err)

	cookies, err := ParseSessionMaterial(material)
	if err != nil {
		return err
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		switch c.SameSite {
		case "Strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "Lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "None":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		params = append(params, p)
	}
	if err := s.page.Context(ctx).SetCookies(params); err != nil {
		return s.launcher.lost(fmt.Errorf("注入cookie失败: %w", err))
	}
	utils.Debugf("已注入%d个cookie: %s", len(params), utils.NewSecretRedactor().RedactPairs(cookiePairs(cookies)))
	return nil
}

// GoBack 浏览器后退
func (s *RodSession) GoBack(ctx context.Context) (err error) {
	defer recoverLost(&err)

	page := s.page.Context(ctx).Timeout(s.launcher.opts.NavigationTimeout)
	defer page.CancelTimeout()
	if err := page.NavigateBack(); err != nil {
		return s.launcher.lost(fmt.Errorf("后退失败: %w", err))
	}
	return nil
}

// CurrentURL 当前地址, 读取失败时返回空串
func (s *RodSession) CurrentURL() (url string) {
	defer func() {
		if recover() != nil {
			url = ""
		}
	}()
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close 关闭页面和隐身上下文
func (s *RodSession) Close() error {
	var result *multierror.Error
	if err := s.page.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("关闭页面失败: %w", err))
	}
	if err := s.context.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("关闭隐身上下文失败: %w", err))
	}
	return result.ErrorOrNil()
}

// rodElement rod 元素适配
type rodElement struct {
	el *rod.Element
}

func wrapRodElements(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out
}

func (e *rodElement) Text() (text string, err error) {
	defer recoverLost(&err)
	return e.el.Text()
}

func (e *rodElement) Locate(selector string) (out []Element, err error) {
	defer recoverLost(&err)
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapRodElements(els), nil
}

func (e *rodElement) Attribute(name string) (value string, ok bool, err error) {
	defer recoverLost(&err)
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) Click() (err error) {
	defer recoverLost(&err)
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Type(text string) (err error) {
	defer recoverLost(&err)
	return e.el.Input(text)
}
