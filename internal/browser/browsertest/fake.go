// Package browsertest 提供脚本化的假浏览器会话, 用于测试爬取逻辑
//
// 每个页面由若干HTML帧组成, 每次滚动展示下一帧, 停在最后一帧.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/thongnm19089/share-fb/internal/browser"
)

// Page 一个脚本化页面
type Page struct {
	Frames []string
	// RedirectTo 打开该页面时跳转到的地址(例如登录页)
	RedirectTo string
	// Err 打开该页面时返回的错误
	Err error
}

// Site 一组可访问的假页面
type Site struct {
	mu    sync.Mutex
	pages map[string]*Page

	// LoseAfter >0 时, 第N次操作之后所有操作都返回 ErrSessionLost
	LoseAfter int
}

// NewSite 创建空站点
func NewSite() *Site {
	return &Site{pages: make(map[string]*Page)}
}

// Add 注册页面
func (s *Site) Add(url string, frames ...string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = &Page{Frames: frames}
	return s
}

// AddPage 注册完整页面定义
func (s *Site) AddPage(url string, p *Page) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = p
	return s
}

func (s *Site) page(url string) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[url]
	return p, ok
}

// Session 新建会话
func (s *Site) Session() *Session {
	return &Session{site: s}
}

// Launcher 假会话工厂
type Launcher struct {
	Site *Site

	mu       sync.Mutex
	Sessions []*Session
	Closed   bool
}

// NewLauncher 创建工厂
func NewLauncher(site *Site) *Launcher {
	return &Launcher{Site: site}
}

// NewSession 实现 browser.Launcher
func (l *Launcher) NewSession(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := l.Site.Session()
	l.mu.Lock()
	l.Sessions = append(l.Sessions, s)
	l.mu.Unlock()
	return s, nil
}

// Close 实现 browser.Launcher
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed = true
	return nil
}

// Session 脚本化会话, 记录所有操作
type Session struct {
	site *Site

	mu       sync.Mutex
	current  string
	page     *Page
	frame    int
	docs     map[int]*goquery.Document
	history  []string
	ops      int
	lost     bool
	closed   bool
	visits   []string
	scrolls  int
	injected []string
}

var _ browser.Session = (*Session)(nil)

func (s *Session) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ops++
	if s.site.LoseAfter > 0 && s.ops > s.site.LoseAfter {
		s.lost = true
	}
	if s.lost || s.closed {
		return browser.ErrSessionLost
	}
	return nil
}

func (s *Session) load(url string) error {
	p, ok := s.site.page(url)
	if !ok {
		return fmt.Errorf("页面不存在: %s", url)
	}
	if p.Err != nil {
		return p.Err
	}
	if p.RedirectTo != "" && p.RedirectTo != url {
		return s.load(p.RedirectTo)
	}
	s.current = url
	s.page = p
	s.frame = 0
	s.docs = make(map[int]*goquery.Document)
	return nil
}

func (s *Session) doc() *goquery.Document {
	if s.page == nil || len(s.page.Frames) == 0 {
		return nil
	}
	if d, ok := s.docs[s.frame]; ok {
		return d
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(s.page.Frames[s.frame]))
	if err != nil {
		return nil
	}
	s.docs[s.frame] = d
	return d
}

// Navigate 打开页面
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step(ctx); err != nil {
		return err
	}
	s.visits = append(s.visits, url)
	prev := s.current
	if err := s.load(url); err != nil {
		return err
	}
	if prev != "" {
		s.history = append(s.history, prev)
	}
	return nil
}

// WaitFor 检查当前帧
func (s *Session) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step(ctx); err != nil {
		return err
	}
	d := s.doc()
	if d == nil || d.Find(selector).Length() == 0 {
		return fmt.Errorf("%s: %w", selector, browser.ErrNotFound)
	}
	return nil
}

// ScrollBy 前进一帧
func (s *Session) ScrollBy(ctx context.Context, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step(ctx); err != nil {
		return err
	}
	s.scrolls++
	if s.page != nil && s.frame < len(s.page.Frames)-1 {
		s.frame++
	}
	return nil
}

// Locate 在当前帧中查找
func (s *Session) Locate(ctx context.Context, selector string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step(ctx); err != nil {
		return nil, err
	}
	d := s.doc()
	if d == nil {
		return nil, nil
	}
	return browser.QueryElements(d.Find(selector)), nil
}

// InjectSession 记录注入的材料
func (s *Session) InjectSession(ctx context.Context, material string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step(ctx); err != nil {
		return err
	}
	if _, err := browser.ParseSessionMaterial(material); err != nil {
		return err
	}
	s.injected = append(s.injected, material)
	return nil
}

// GoBack 回到上一个页面
func (s *Session) GoBack(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step(ctx); err != nil {
		return err
	}
	if len(s.history) == 0 {
		return fmt.Errorf("没有可后退的页面")
	}
	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return s.load(prev)
}

// CurrentURL 当前地址
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close 关闭会话
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Lose 模拟浏览器崩溃
func (s *Session) Lose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = true
}

// Visits 所有打开过的地址
func (s *Session) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// Scrolls 滚动次数
func (s *Session) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}

// Injected 注入过的会话材料
func (s *Session) Injected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.injected...)
}

// Closed 会话是否已关闭
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
