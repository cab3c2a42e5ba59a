package browser

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// SessionPool 为每个任务分配独占的浏览器会话
// 全局并发受资源上限约束, 可选地同一凭据同一时刻只允许一个会话
type SessionPool struct {
	launcher      Launcher
	monitor       *ResourceMonitor
	global        *semaphore.Weighted
	capacity      int64
	perCredential bool

	mu    sync.Mutex
	creds map[string]*semaphore.Weighted

	activeMu sync.Mutex
	active   int
}

// NewSessionPool 创建会话池, 容量为 min(maxSessions, 资源上限)
func NewSessionPool(launcher Launcher, monitor *ResourceMonitor, maxSessions int, perCredential bool) *SessionPool {
	capacity := maxSessions
	if monitor != nil {
		if byResource := monitor.CalculateMaxSessions(); byResource < capacity || capacity <= 0 {
			capacity = byResource
		}
	}
	if capacity < 1 {
		capacity = 1
	}
	utils.Debugf("会话池容量: %d", capacity)

	return &SessionPool{
		launcher:      launcher,
		monitor:       monitor,
		global:        semaphore.NewWeighted(int64(capacity)),
		capacity:      int64(capacity),
		perCredential: perCredential,
		creds:         make(map[string]*semaphore.Weighted),
	}
}

// Capacity 同时可用的会话数
func (p *SessionPool) Capacity() int {
	return int(p.capacity)
}

// Active 当前已分配的会话数
func (p *SessionPool) Active() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return p.active
}

func (p *SessionPool) credentialSem(name string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.creds[name]
	if !ok {
		sem = semaphore.NewWeighted(1)
		p.creds[name] = sem
	}
	return sem
}

// Acquire 获取一个已注入凭据的会话
// 调用方用完后必须调用 release, release 会关闭会话
func (p *SessionPool) Acquire(ctx context.Context, cred models.Credential) (Session, func(), error) {
	var credSem *semaphore.Weighted
	if p.perCredential {
		credSem = p.credentialSem(cred.Name)
		if err := credSem.Acquire(ctx, 1); err != nil {
			return nil, nil, err
		}
	}
	if err := p.global.Acquire(ctx, 1); err != nil {
		if credSem != nil {
			credSem.Release(1)
		}
		return nil, nil, err
	}

	releaseSlots := func() {
		p.global.Release(1)
		if credSem != nil {
			credSem.Release(1)
		}
	}

	if p.monitor != nil {
		if ok, reason := p.monitor.CheckResourceAvailability(); !ok {
			utils.Warnf("资源紧张, 仍继续创建会话: %s", reason)
		}
	}

	session, err := p.launcher.NewSession(ctx)
	if err != nil {
		releaseSlots()
		return nil, nil, fmt.Errorf("创建浏览器会话失败: %w", err)
	}
	if cred.Material != "" {
		if err := session.InjectSession(ctx, cred.Material); err != nil {
			_ = session.Close()
			releaseSlots()
			return nil, nil, fmt.Errorf("注入凭据 [%s] 失败: %w", cred.Name, err)
		}
	}

	p.activeMu.Lock()
	p.active++
	p.activeMu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := session.Close(); err != nil {
				utils.Warnf("关闭会话失败: %v", err)
			}
			p.activeMu.Lock()
			p.active--
			p.activeMu.Unlock()
			releaseSlots()
		})
	}
	return session, release, nil
}

// Close 关闭底层浏览器
func (p *SessionPool) Close() error {
	return p.launcher.Close()
}
