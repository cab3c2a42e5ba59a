package browser_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/browser/browsertest"
	"github.com/thongnm19089/share-fb/internal/models"
)

const material = `[{"name":"c_user","value":"100"},{"name":"xs","value":"secret"}]`

func TestSessionPoolInjectsAndReleases(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.NewSite())
	pool := browser.NewSessionPool(launcher, nil, 2, false)

	s, release, err := pool.Acquire(context.Background(), models.Credential{Name: "a", Material: material, Live: true})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	fake := s.(*browsertest.Session)
	if len(fake.Injected()) != 1 {
		t.Errorf("凭据未注入")
	}
	if pool.Active() != 1 {
		t.Errorf("Active() = %d, want 1", pool.Active())
	}

	release()
	release()
	if !fake.Closed() {
		t.Error("release 后会话应关闭")
	}
	if pool.Active() != 0 {
		t.Errorf("重复 release 不应重复计数, Active() = %d", pool.Active())
	}
}

func TestSessionPoolSerializesCredential(t *testing.T) {
	pool := browser.NewSessionPool(browsertest.NewLauncher(browsertest.NewSite()), nil, 4, true)
	cred := models.Credential{Name: "a", Material: material, Live: true}

	_, release, err := pool.Acquire(context.Background(), cred)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := pool.Acquire(ctx, cred); err == nil {
		t.Fatal("同一凭据的第二个会话应等待")
	}

	other := models.Credential{Name: "b", Material: material, Live: true}
	_, releaseOther, err := pool.Acquire(context.Background(), other)
	if err != nil {
		t.Fatalf("不同凭据不应被阻塞: %v", err)
	}
	releaseOther()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, r, err := pool.Acquire(context.Background(), cred)
		if err != nil {
			t.Errorf("释放后 Acquire() error = %v", err)
			return
		}
		r()
	}()
	release()
	wg.Wait()
}

func TestSessionPoolCapacity(t *testing.T) {
	pool := browser.NewSessionPool(browsertest.NewLauncher(browsertest.NewSite()), nil, 1, false)
	if pool.Capacity() != 1 {
		t.Fatalf("Capacity() = %d", pool.Capacity())
	}
	_, release, err := pool.Acquire(context.Background(), models.Credential{Name: "a"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, _, err := pool.Acquire(ctx, models.Credential{Name: "b"}); err == nil {
		t.Error("容量已满时应等待直到超时")
	}
}

func TestSessionPoolBadMaterial(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.NewSite())
	pool := browser.NewSessionPool(launcher, nil, 1, false)
	if _, _, err := pool.Acquire(context.Background(), models.Credential{Name: "a", Material: "not json"}); err == nil {
		t.Fatal("非法会话材料应返回错误")
	}
	// 失败后名额必须归还
	_, release, err := pool.Acquire(context.Background(), models.Credential{Name: "a"})
	if err != nil {
		t.Fatalf("失败后 Acquire() error = %v", err)
	}
	release()
}

func TestDocument(t *testing.T) {
	site := browsertest.NewSite().Add("https://fb.test/feed", `<html><body><p>xin chào</p></body></html>`)
	s := site.Session()
	ctx := context.Background()
	if err := s.Navigate(ctx, "https://fb.test/feed"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	scope, err := browser.Document(ctx, s)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if text, _ := scope.Text(); text != "xin chào" {
		t.Errorf("Text() = %q", text)
	}
}
