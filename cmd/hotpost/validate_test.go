package main

import "testing"

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		maxSessions int
		workers     int
		wantErr     bool
	}{
		{"使用配置文件", "", 0, 0, false},
		{"rod驱动", "rod", 4, 2, false},
		{"static驱动", "static", 1, 1, false},
		{"未知驱动", "chromedp", 0, 0, true},
		{"会话数过大", "", 100, 0, true},
		{"并发数为负", "", 0, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.driver, tt.maxSessions, tt.workers)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTargetID(t *testing.T) {
	if err := ValidateTargetID(" "); err == nil {
		t.Error("空目标应报错")
	}
	if err := ValidateTargetID("all"); err != nil {
		t.Errorf("ValidateTargetID(all) error = %v", err)
	}
}
