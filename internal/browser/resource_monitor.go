package browser

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/thongnm19089/share-fb/internal/utils"
)

// ResourceMonitorConfig 资源监控配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SessionMemoryUsage  int64 // 单个浏览器会话平均内存(字节)
	CPULoadThreshold    int   // CPU负载阈值(%), >=200 视为禁用
	MaxSessionsLimit    int   // 绝对上限
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig(maxSessions int) ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 512 * 1024 * 1024,
		SessionMemoryUsage:  300 * 1024 * 1024,
		CPULoadThreshold:    90,
		MaxSessionsLimit:    maxSessions,
	}
}

// ResourceMonitor 系统资源监控
// 根据可用内存和CPU计算可同时打开的浏览器会话数
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 测试中可替换
	virtualMemory func() (*mem.VirtualMemoryStat, error)
	cpuPercent    func() (float64, error)

	cacheMu       sync.Mutex
	cachedMax     int
	lastCacheTime time.Time
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.SessionMemoryUsage <= 0 {
		config.SessionMemoryUsage = 300 * 1024 * 1024
	}
	if config.MaxSessionsLimit <= 0 {
		config.MaxSessionsLimit = 1
	}
	return &ResourceMonitor{
		config:        config,
		virtualMemory: mem.VirtualMemory,
		cpuPercent: func() (float64, error) {
			p, err := cpu.Percent(100*time.Millisecond, false)
			if err != nil || len(p) == 0 {
				return 0, err
			}
			return p[0], nil
		},
	}
}

// CalculateMaxSessions 计算当前允许的最大会话数, 结果缓存1秒
func (rm *ResourceMonitor) CalculateMaxSessions() int {
	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()
	if rm.cachedMax > 0 && time.Since(rm.lastCacheTime) < time.Second {
		return rm.cachedMax
	}

	result := rm.config.MaxSessionsLimit
	if byCPU := runtime.NumCPU(); byCPU < result {
		result = byCPU
	}

	vm, err := rm.virtualMemory()
	if err != nil {
		utils.Warnf("获取系统内存失败, 按上限计算: %v", err)
	} else {
		available := int64(vm.Available) - rm.config.SafetyReserveMemory
		byMemory := int(available / rm.config.SessionMemoryUsage)
		if byMemory < result {
			result = byMemory
		}
	}

	if result < 1 {
		result = 1
	}
	rm.cachedMax = result
	rm.lastCacheTime = time.Now()
	return result
}

// CheckResourceAvailability 检查当前资源是否允许再打开一个会话
func (rm *ResourceMonitor) CheckResourceAvailability() (bool, string) {
	vm, err := rm.virtualMemory()
	if err == nil {
		available := int64(vm.Available) - rm.config.SafetyReserveMemory
		if available < rm.config.SessionMemoryUsage {
			return false, fmt.Sprintf("内存不足(当前可用%dMB)", available/(1024*1024))
		}
	}

	if rm.config.CPULoadThreshold < 200 {
		usage, err := rm.cpuPercent()
		if err == nil && usage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
		}
	}
	return true, ""
}
