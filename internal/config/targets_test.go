package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadGeneratesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "targets.yaml")
	f, err := NewTargetsLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(f.Targets) != 0 || len(f.Credentials) != 0 {
		t.Errorf("模板应为空: %+v", f)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("模板文件未生成: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	writeFile(t, filepath.Join(dir, "cookies", "main.json"), `{"cookies":[{"name":"c_user","value":"1"}]}`)

	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, l *TargetsLoader, f *TargetsFile)
	}{
		{
			name: "完整文件",
			content: `
targets:
  - id: hot
    name: Tin nóng
    feed_url: https://www.facebook.com/groups/hot
    auto_scan: true
    scan_time: "08:30"
  - id: quiet
    feed_url: https://www.facebook.com/quiet
credentials:
  - name: main
    material_file: cookies/main.json
  - name: inline
    material: '[{"name":"xs","value":"2"}]'
    live: false
  - name: broken
    material: 'not json'
`,
			check: func(t *testing.T, l *TargetsLoader, f *TargetsFile) {
				hot, err := f.Targets[0].Target()
				if err != nil || hot.ScanTime == nil || hot.ScanTime.String() != "08:30" || !hot.AutoScan {
					t.Errorf("hot = %+v, %v", hot, err)
				}
				quiet, _ := f.Targets[1].Target()
				if quiet.Name != "quiet" || quiet.ScanTime != nil {
					t.Errorf("quiet = %+v", quiet)
				}

				creds, err := l.Credentials(f)
				if err != nil {
					t.Fatalf("Credentials() error = %v", err)
				}
				want := map[string]bool{"main": true, "inline": false, "broken": false}
				for _, c := range creds {
					if c.Live != want[c.Name] {
						t.Errorf("凭据 %s live = %v, want %v", c.Name, c.Live, want[c.Name])
					}
				}
				if creds[0].Material == "" {
					t.Error("material_file 未读取")
				}
			},
		},
		{name: "未知字段", content: "targets: []\nproxies: []\n", wantErr: true},
		{name: "保留ID", content: "targets:\n  - id: all\n    feed_url: https://fb.test/x\n", wantErr: true},
		{name: "重复ID", content: "targets:\n  - id: a\n    feed_url: https://fb.test/x\n  - id: a\n    feed_url: https://fb.test/y\n", wantErr: true},
		{name: "无效时刻", content: "targets:\n  - id: a\n    feed_url: https://fb.test/x\n    scan_time: '25:00'\n", wantErr: true},
		{name: "凭据缺少材料", content: "credentials:\n  - name: a\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeFile(t, path, tt.content)
			l := NewTargetsLoader(path)
			f, err := l.Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *models.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("错误类型应为 ConfigError: %T", err)
				}
				return
			}
			if tt.check != nil {
				tt.check(t, l, f)
			}
		})
	}
}

func TestSyncTargetsKeepsRuntimeState(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	crawled := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	if err := st.SaveTarget(ctx, models.MonitoredTarget{ID: "hot", FeedURL: "https://fb.test/old"}); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkCrawled(ctx, "hot", crawled); err != nil {
		t.Fatal(err)
	}
	tried := crawled.Add(4 * time.Hour)
	if err := st.MarkAttempted(ctx, "hot", tried); err != nil {
		t.Fatal(err)
	}

	f := &TargetsFile{Targets: []TargetEntry{
		{ID: "hot", FeedURL: "https://fb.test/new", AutoScan: true},
		{ID: "fresh", FeedURL: "https://fb.test/fresh"},
	}}
	n, err := SyncTargets(ctx, st, f)
	if err != nil || n != 2 {
		t.Fatalf("SyncTargets() = %d, %v", n, err)
	}

	hot, _ := st.Target(ctx, "hot")
	if hot.FeedURL != "https://fb.test/new" || hot.Status != models.TargetCompleted || !hot.LastCrawledAt.Equal(crawled) ||
		hot.LastAttemptAt == nil || !hot.LastAttemptAt.Equal(tried) {
		t.Errorf("hot = %+v", hot)
	}
	fresh, _ := st.Target(ctx, "fresh")
	if fresh.Status != models.TargetIdle {
		t.Errorf("fresh status = %s", fresh.Status)
	}
}
