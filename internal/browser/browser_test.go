package browser

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/shirou/gopsutil/v3/mem"
)

func TestParseSessionMaterial(t *testing.T) {
	tests := []struct {
		name     string
		material string
		wantLen  int
		wantErr  bool
		check    func(t *testing.T, c []Cookie)
	}{
		{
			name:     "浏览器导出的数组",
			material: `[{"name":"c_user","value":"100"},{"name":"xs","value":"abc","domain":".facebook.com","sameSite":"no_restriction"}]`,
			wantLen:  2,
			check: func(t *testing.T, c []Cookie) {
				if c[0].Domain != DefaultCookieDomain || c[0].Path != "/" {
					t.Errorf("默认域名/路径错误: %+v", c[0])
				}
				if c[1].SameSite != "None" {
					t.Errorf("sameSite = %q, want None", c[1].SameSite)
				}
			},
		},
		{
			name:     "带cookies字段的对象",
			material: `{"cookies":[{"name":"datr","value":"x","expirationDate":1893456000,"sameSite":"unspecified"}]}`,
			wantLen:  1,
			check: func(t *testing.T, c []Cookie) {
				if c[0].Expires != 1893456000 {
					t.Errorf("expirationDate 未映射: %v", c[0].Expires)
				}
				if c[0].SameSite != "" {
					t.Errorf("非法sameSite应丢弃: %q", c[0].SameSite)
				}
			},
		},
		{name: "跳过空名称", material: `[{"name":"","value":"x"},{"name":"fr","value":"y"}]`, wantLen: 1},
		{name: "空材料", material: "  ", wantErr: true},
		{name: "非法JSON", material: `[{`, wantErr: true},
		{name: "没有有效cookie", material: `[{"value":"x"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSessionMaterial(tt.material)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSessionMaterial() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestCookieHTTPCookie(t *testing.T) {
	c := Cookie{Name: "xs", Value: "v", Domain: ".facebook.com", Path: "/", Expires: 1893456000, Secure: true, SameSite: "Lax"}
	hc := c.HTTPCookie()
	if hc.SameSite != http.SameSiteLaxMode || !hc.Secure || hc.Expires.Unix() != 1893456000 {
		t.Errorf("HTTPCookie() = %+v", hc)
	}
	if got := c.URL(); got != "https://facebook.com/" {
		t.Errorf("URL() = %s", got)
	}
}

func TestHeaderManagerLayering(t *testing.T) {
	hm, err := NewHeaderManager("", "",
		map[string]string{"Accept-Language": "en-US", "X-Trace": "cfg"},
		[]string{"X-Trace: cli"})
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}

	h, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders() error = %v", err)
	}
	if h.Get("User-Agent") != DefaultUserAgent {
		t.Errorf("默认User-Agent丢失: %s", h.Get("User-Agent"))
	}
	if h.Get("Accept-Language") != "en-US" {
		t.Errorf("配置文件应覆盖默认值: %s", h.Get("Accept-Language"))
	}
	if h.Get("X-Trace") != "cli" {
		t.Errorf("命令行应覆盖配置文件: %s", h.Get("X-Trace"))
	}

	extra := extraHeaders(h)
	for i := 0; i < len(extra); i += 2 {
		if extra[i] == "User-Agent" {
			t.Errorf("extraHeaders 不应包含 User-Agent")
		}
	}
}

func TestHeaderManagerRejectsForbidden(t *testing.T) {
	hm, err := NewHeaderManager("", "", nil, []string{"Cookie: xs=1"})
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}
	if _, err := hm.GetHeaders(); err == nil {
		t.Error("Cookie 头应被拒绝, 会话材料通过 InjectSession 注入")
	}

	if _, err := NewHeaderManager("", "", nil, []string{"bad"}); err == nil {
		t.Error("格式错误的 -H 参数应返回错误")
	}
}

func TestQueryElementText(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div role="dialog"><div>Dòng một</div><span>  nối   tiếp </span><script>var x=1</script><p>Dòng hai</p></div></body></html>`))
	}))
	defer site.Close()

	s, err := NewStaticLauncher(nil, time.Second).NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Navigate(ctx, site.URL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	els, err := s.Locate(ctx, "div[role='dialog']")
	if err != nil || len(els) != 1 {
		t.Fatalf("Locate() = %d, %v", len(els), err)
	}
	text, _ := els[0].Text()
	if text != "Dòng một\nnối tiếp\nDòng hai" {
		t.Errorf("Text() = %q", text)
	}
	if err := els[0].Click(); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Click() error = %v, want ErrUnsupported", err)
	}
}

func TestStaticSession(t *testing.T) {
	var gotCookie, gotLang string
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("c_user"); err == nil {
			gotCookie = c.Value
		}
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte(`<html><body><a href="/posts/1">3 giờ</a></body></html>`))
		_ = bw.Close()
	})
	mux.HandleFunc("/posts/1", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(`<html><body><div role="dialog">chi tiết</div></body></html>`))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hm, err := NewHeaderManager("", "vi-VN", nil, nil)
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}
	s, err := NewStaticLauncher(hm, 2*time.Second).NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	host := strings.TrimPrefix(srv.URL, "http://")
	material := `[{"name":"c_user","value":"100","domain":"` + strings.Split(host, ":")[0] + `"}]`
	if err := s.InjectSession(ctx, material); err != nil {
		t.Fatalf("InjectSession() error = %v", err)
	}

	if err := s.Navigate(ctx, srv.URL+"/feed"); err != nil {
		t.Fatalf("Navigate(feed) error = %v", err)
	}
	if gotCookie != "100" {
		t.Errorf("cookie 未发送, got %q", gotCookie)
	}
	if gotLang != "vi-VN" {
		t.Errorf("Accept-Language = %q", gotLang)
	}
	links, _ := s.Locate(ctx, "a[href]")
	if len(links) != 1 {
		t.Fatalf("brotli 页面解析失败, links = %d", len(links))
	}

	if err := s.Navigate(ctx, srv.URL+"/posts/1"); err != nil {
		t.Fatalf("Navigate(post) error = %v", err)
	}
	if err := s.WaitFor(ctx, "div[role='dialog']", time.Second); err != nil {
		t.Errorf("WaitFor(dialog) error = %v", err)
	}
	if err := s.WaitFor(ctx, "form#login_form", time.Second); !errors.Is(err, ErrNotFound) {
		t.Errorf("WaitFor(缺失) error = %v, want ErrNotFound", err)
	}

	if err := s.GoBack(ctx); err != nil {
		t.Fatalf("GoBack() error = %v", err)
	}
	if !strings.HasSuffix(s.CurrentURL(), "/feed") {
		t.Errorf("GoBack 后地址 = %s", s.CurrentURL())
	}
	if err := s.GoBack(ctx); err == nil {
		t.Error("历史为空时 GoBack 应返回错误")
	}
}

func TestDecompressResponse(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte("xin chào"))
	_ = zw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"gzip", "gzip", gz.Bytes()},
		{"已被传输层解压的gzip", "gzip", []byte("xin chào")},
		{"无压缩", "", []byte("xin chào")},
		{"未知编码", "zstd", []byte("xin chào")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.body)
			if err != nil {
				t.Fatalf("decompressResponse() error = %v", err)
			}
			if string(got) != "xin chào" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestResourceMonitor(t *testing.T) {
	rm := NewResourceMonitor(ResourceMonitorConfig{
		SafetyReserveMemory: 100,
		SessionMemoryUsage:  100,
		CPULoadThreshold:    200,
		MaxSessionsLimit:    1,
	})
	rm.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Available: 1000}, nil
	}
	if got := rm.CalculateMaxSessions(); got != 1 {
		t.Errorf("CalculateMaxSessions() = %d, want 1 (受上限约束)", got)
	}

	low := NewResourceMonitor(ResourceMonitorConfig{
		SafetyReserveMemory: 900,
		SessionMemoryUsage:  500,
		CPULoadThreshold:    50,
		MaxSessionsLimit:    8,
	})
	low.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Available: 1000}, nil
	}
	low.cpuPercent = func() (float64, error) { return 10, nil }
	if got := low.CalculateMaxSessions(); got != 1 {
		t.Errorf("内存不足时至少保留1个会话, got %d", got)
	}
	if ok, reason := low.CheckResourceAvailability(); ok || reason == "" {
		t.Errorf("CheckResourceAvailability() = %v, %q", ok, reason)
	}

	busy := NewResourceMonitor(ResourceMonitorConfig{SessionMemoryUsage: 1, CPULoadThreshold: 50, MaxSessionsLimit: 2})
	busy.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Available: 1 << 30}, nil
	}
	busy.cpuPercent = func() (float64, error) { return 95, nil }
	if ok, _ := busy.CheckResourceAvailability(); ok {
		t.Error("CPU负载过高时应拒绝")
	}
}
