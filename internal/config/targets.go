// Package config 加载监控目标和登录凭据文件
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/store"
	"github.com/thongnm19089/share-fb/internal/utils"
)

const (
	// DefaultTargetsFile 默认目标文件路径
	DefaultTargetsFile = "configs/targets.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed targets_template.yaml
var defaultTargetsTemplate string

// TargetEntry 文件中的一个监控目标
type TargetEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	FeedURL  string `yaml:"feed_url"`
	AutoScan bool   `yaml:"auto_scan"`
	ScanTime string `yaml:"scan_time"`
}

// CredentialEntry 文件中的一个登录凭据
type CredentialEntry struct {
	Name         string `yaml:"name"`
	Material     string `yaml:"material"`
	MaterialFile string `yaml:"material_file"`
	Live         *bool  `yaml:"live"`
}

// TargetsFile 目标文件内容
type TargetsFile struct {
	Targets     []TargetEntry     `yaml:"targets"`
	Credentials []CredentialEntry `yaml:"credentials"`
}

// TargetsLoader 目标文件加载器
type TargetsLoader struct {
	path string
}

// NewTargetsLoader 创建加载器
func NewTargetsLoader(path string) *TargetsLoader {
	if path == "" {
		path = DefaultTargetsFile
	}
	return &TargetsLoader{path: path}
}

// Path 文件路径
func (tl *TargetsLoader) Path() string {
	return tl.path
}

// EnsureConfigExists 文件不存在时写入模板
func (tl *TargetsLoader) EnsureConfigExists() error {
	if _, err := os.Stat(tl.path); os.IsNotExist(err) {
		dir := filepath.Dir(tl.path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}
		if err := os.WriteFile(tl.path, []byte(defaultTargetsTemplate), 0644); err != nil {
			return fmt.Errorf("无法生成配置文件 [%s]: %w", tl.path, err)
		}
		utils.Infof("📝 已生成目标配置模板: %s", tl.path)
	}
	return nil
}

// Load 读取并严格解析目标文件, 未知字段视为错误
func (tl *TargetsLoader) Load() (*TargetsFile, error) {
	if err := tl.EnsureConfigExists(); err != nil {
		return nil, err
	}

	info, err := os.Stat(tl.path)
	if err != nil {
		return nil, fmt.Errorf("无法读取配置文件信息 [%s]: %w", tl.path, err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, &models.ConfigError{
			FilePath: tl.path,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}

	data, err := os.ReadFile(tl.path)
	if err != nil {
		return nil, &models.ConfigError{FilePath: tl.path, Cause: err}
	}

	var file TargetsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &models.ConfigError{FilePath: tl.path, Cause: fmt.Errorf("解析失败: %w", err)}
	}
	if err := file.validate(); err != nil {
		return nil, &models.ConfigError{FilePath: tl.path, Cause: err}
	}
	return &file, nil
}

func (f *TargetsFile) validate() error {
	seen := make(map[string]bool)
	for i, e := range f.Targets {
		if _, err := e.Target(); err != nil {
			return fmt.Errorf("第%d个目标: %w", i+1, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("目标ID重复: %s", e.ID)
		}
		seen[e.ID] = true
	}
	names := make(map[string]bool)
	for i, c := range f.Credentials {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("第%d个凭据缺少名称", i+1)
		}
		if names[c.Name] {
			return fmt.Errorf("凭据名称重复: %s", c.Name)
		}
		names[c.Name] = true
		if c.Material == "" && c.MaterialFile == "" {
			return fmt.Errorf("凭据 %s 缺少 material 或 material_file", c.Name)
		}
	}
	return nil
}

// Target 转换为监控目标
func (e TargetEntry) Target() (models.MonitoredTarget, error) {
	t := models.MonitoredTarget{
		ID:       strings.TrimSpace(e.ID),
		Name:     e.Name,
		FeedURL:  strings.TrimSpace(e.FeedURL),
		AutoScan: e.AutoScan,
		Status:   models.TargetIdle,
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	if e.ScanTime != "" {
		ct, err := models.ParseClockTime(e.ScanTime)
		if err != nil {
			return t, err
		}
		t.ScanTime = &ct
	}
	return t, t.Validate()
}

// Credentials 读取凭据材料; material_file 相对于目标文件所在目录
// 无法解析的材料会被标记为不可用而不是报错
func (tl *TargetsLoader) Credentials(f *TargetsFile) ([]models.Credential, error) {
	out := make([]models.Credential, 0, len(f.Credentials))
	for _, c := range f.Credentials {
		material := c.Material
		if c.MaterialFile != "" {
			path := c.MaterialFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(filepath.Dir(tl.path), path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("读取凭据 %s 失败: %w", c.Name, err)
			}
			material = string(data)
		}

		live := c.Live == nil || *c.Live
		if live {
			if _, err := browser.ParseSessionMaterial(material); err != nil {
				utils.Warnf("凭据 %s 无法解析, 标记为不可用: %v", c.Name, err)
				live = false
			}
		}
		out = append(out, models.Credential{Name: c.Name, Material: material, Live: live})
	}
	return out, nil
}

// SyncTargets 将文件中的目标写入存储, 已存在目标的运行状态保持不变
func SyncTargets(ctx context.Context, st store.TargetStore, f *TargetsFile) (int, error) {
	n := 0
	for _, e := range f.Targets {
		t, err := e.Target()
		if err != nil {
			return n, err
		}
		existing, err := st.Target(ctx, t.ID)
		switch {
		case err == nil:
			t.Status = existing.Status
			t.LastCrawledAt = existing.LastCrawledAt
			t.LastAttemptAt = existing.LastAttemptAt
		case !errors.Is(err, models.ErrTargetNotFound):
			return n, err
		}
		if err := st.SaveTarget(ctx, t); err != nil {
			return n, fmt.Errorf("保存目标 %s 失败: %w", t.ID, err)
		}
		n++
	}
	return n, nil
}
