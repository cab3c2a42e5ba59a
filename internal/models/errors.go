package models

import "errors"

var (
	// ErrAuthRequired 会话被重定向到登录页
	ErrAuthRequired = errors.New("需要登录: 会话已失效")
	// ErrJobNotFound 任务不存在
	ErrJobNotFound = errors.New("任务不存在")
	// ErrTargetNotFound 监控目标不存在
	ErrTargetNotFound = errors.New("监控目标不存在")
	// ErrNoLiveCredential 没有可用的凭据
	ErrNoLiveCredential = errors.New("没有可用的登录凭据")
)
