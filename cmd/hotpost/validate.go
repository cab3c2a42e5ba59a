package main

import (
	"fmt"
	"strings"

	"github.com/thongnm19089/share-fb/internal/models"
)

// ValidateFlags 验证全局命令行标志, 0 和空值表示使用配置文件
func ValidateFlags(driver string, maxSessions, workers int) error {
	if driver != "" && driver != "rod" && driver != "static" {
		return fmt.Errorf("无效的浏览器驱动: %s (有效值: rod, static)", driver)
	}
	if maxSessions < 0 || maxSessions > 32 {
		return fmt.Errorf("最大会话数必须在1-32之间,当前值: %d", maxSessions)
	}
	if workers < 0 || workers > 32 {
		return fmt.Errorf("任务并发数必须在1-32之间,当前值: %d", workers)
	}
	return nil
}

// ValidateTargetID 验证 --target 参数
func ValidateTargetID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("必须指定 --target (目标ID 或 %q)", models.AllTargets)
	}
	return nil
}
