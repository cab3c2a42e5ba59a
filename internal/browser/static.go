package browser

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"

	"github.com/thongnm19089/share-fb/internal/utils"
)

// StaticLauncher 基于 colly 的静态HTML会话工厂
// 没有脚本执行, 适合服务端渲染的轻量页面和离线调试
type StaticLauncher struct {
	headers *HeaderManager
	timeout time.Duration
}

// NewStaticLauncher 创建静态会话工厂
func NewStaticLauncher(headers *HeaderManager, timeout time.Duration) *StaticLauncher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StaticLauncher{headers: headers, timeout: timeout}
}

// NewSession 每个会话独立的cookie jar
func (sl *StaticLauncher) NewSession(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("创建cookie jar失败: %w", err)
	}

	var headers http.Header
	if sl.headers != nil {
		if headers, err = sl.headers.GetHeaders(); err != nil {
			return nil, err
		}
	}

	userAgent := headers.Get("User-Agent")
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetCookieJar(jar)
	c.SetRequestTimeout(sl.timeout)

	s := &StaticSession{collector: c, jar: jar}

	c.OnRequest(func(r *colly.Request) {
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
		utils.Debugf("访问: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		body, err := decompressResponse(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			s.setFailure(err)
			return
		}
		root, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			s.setFailure(fmt.Errorf("解析HTML失败: %w", err))
			return
		}
		s.setDocument(r.Request.URL.String(), goquery.NewDocumentFromNode(root))
	})

	c.OnError(func(r *colly.Response, err error) {
		s.setFailure(fmt.Errorf("请求失败 [%s]: %w", r.Request.URL, err))
	})

	return s, nil
}

// Close 静态会话工厂没有需要释放的资源
func (sl *StaticLauncher) Close() error {
	return nil
}

// StaticSession 单个静态会话
type StaticSession struct {
	collector *colly.Collector
	jar       http.CookieJar

	mu      sync.Mutex
	doc     *goquery.Document
	current string
	history []string
	failure error
}

func (s *StaticSession) setDocument(u string, doc *goquery.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.current = u
}

func (s *StaticSession) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Navigate 抓取并解析页面
func (s *StaticSession) Navigate(ctx context.Context, u string) error {
	prev := s.CurrentURL()
	if err := s.visit(ctx, u); err != nil {
		return err
	}
	if prev != "" {
		s.mu.Lock()
		s.history = append(s.history, prev)
		s.mu.Unlock()
	}
	return nil
}

func (s *StaticSession) visit(ctx context.Context, u string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setFailure(nil)

	done := make(chan error, 1)
	go func() {
		done <- s.collector.Visit(u)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("打开页面失败 [%s]: %w", u, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if s.doc == nil {
		return fmt.Errorf("页面没有内容 [%s]", u)
	}
	return nil
}

// WaitFor 静态文档不会变化, 只检查一次
func (s *StaticSession) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || s.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return nil
}

// ScrollBy 静态文档没有滚动加载
func (s *StaticSession) ScrollBy(ctx context.Context, _ int) error {
	return ctx.Err()
}

// Locate 在当前文档中查找
func (s *StaticSession) Locate(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, nil
	}
	return QueryElements(s.doc.Find(selector)), nil
}

// InjectSession 把cookie写入jar
func (s *StaticSession) InjectSession(_ context.Context, material string) error {
	cookies, err := ParseSessionMaterial(material)
	if err != nil {
		return err
	}
	for _, c := range cookies {
		u, err := url.Parse(c.URL())
		if err != nil {
			continue
		}
		s.jar.SetCookies(u, []*http.Cookie{c.HTTPCookie()})
	}
	utils.Debugf("已注入%d个cookie: %s", len(cookies), utils.NewSecretRedactor().RedactPairs(cookiePairs(cookies)))
	return nil
}

// GoBack 重新抓取上一个地址
func (s *StaticSession) GoBack(ctx context.Context) error {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return errors.New("没有可后退的页面")
	}
	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.mu.Unlock()
	return s.visit(ctx, prev)
}

// CurrentURL 当前地址
func (s *StaticSession) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close 释放文档
func (s *StaticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	s.history = nil
	return nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		// 传输层可能已经解压
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
