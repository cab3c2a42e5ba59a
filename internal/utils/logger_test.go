package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogConfig(t *testing.T, level string) LogConfig {
	t.Helper()
	return LogConfig{
		Level:      level,
		LogDir:     t.TempDir(),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		NoColor:    true,
	}
}

func TestInitLogger(t *testing.T) {
	config := newTestLogConfig(t, "debug")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("测试信息日志")
	Warn("测试警告日志")
	Debugf("测试调试日志 %d", 1)

	mainLogPath := filepath.Join(config.LogDir, "hotpost.log")
	if _, err := os.Stat(mainLogPath); os.IsNotExist(err) {
		t.Errorf("主日志文件未创建: %s", mainLogPath)
	}
}

func TestErrorLogOnlyReceivesErrors(t *testing.T) {
	config := newTestLogConfig(t, "info")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("普通信息不应进入错误日志")
	Errorf("爬取任务失败: %s", "会话断开")

	content, err := os.ReadFile(filepath.Join(config.LogDir, "hotpost_error.log"))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "爬取任务失败") {
		t.Errorf("错误日志缺少错误内容: %s", text)
	}
	if strings.Contains(text, "普通信息不应进入错误日志") {
		t.Errorf("错误日志不应包含信息级别日志: %s", text)
	}
}

func TestJobLogger(t *testing.T) {
	config := newTestLogConfig(t, "info")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	l := JobLogger("job-1", "")
	l.Info().Msg("任务日志")
	l = JobLogger("job-2", "hot")
	l.Info().Msg("目标日志")

	content, err := os.ReadFile(filepath.Join(config.LogDir, "hotpost.log"))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var jobLine, targetLine string
	for _, line := range lines {
		switch {
		case strings.Contains(line, "任务日志"):
			jobLine = line
		case strings.Contains(line, "目标日志"):
			targetLine = line
		}
	}
	if !strings.Contains(jobLine, `"job_id":"job-1"`) || strings.Contains(jobLine, "target_id") {
		t.Errorf("任务日志字段错误: %s", jobLine)
	}
	if !strings.Contains(targetLine, `"job_id":"job-2"`) || !strings.Contains(targetLine, `"target_id":"hot"`) {
		t.Errorf("目标日志字段错误: %s", targetLine)
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}
