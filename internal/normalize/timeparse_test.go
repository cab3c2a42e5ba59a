package normalize

import (
	"testing"
	"time"
)

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	now := time.Date(2024, 5, 10, 14, 0, 0, 0, loc)

	tests := []struct {
		name        string
		label       string
		wantInstant bool
		wantRecent  bool
		want        time.Time
	}{
		{"刚刚", "just now", true, true, now.Add(-30 * time.Second)},
		{"越南语刚刚", "Vừa xong", true, true, now.Add(-30 * time.Second)},
		{"秒", "45 giây", true, true, now.Add(-45 * time.Second)},
		{"分钟", "5 phút", true, true, now.Add(-5 * time.Minute)},
		{"英文分钟缩写", "12m", true, true, now.Add(-12 * time.Minute)},
		{"小时", "3 giờ", true, true, now.Add(-3 * time.Hour)},
		{"英文小时", "3 hours ago", true, true, now.Add(-3 * time.Hour)},
		{"恰好24小时", "24h", true, true, now.Add(-24 * time.Hour)},
		{"超过24小时", "25 hours ago", false, false, time.Time{}},
		{"带装饰的小时", "5 giờ · Đã chỉnh sửa", true, true, now.Add(-5 * time.Hour)},
		{"一天", "1 ngày", true, true, now.Add(-24 * time.Hour)},
		{"两天", "2d", false, false, time.Time{}},
		{"昨天无时刻", "Hôm qua", true, true, now.Add(-24 * time.Hour)},
		{"昨天晚于当前时刻", "Hôm qua lúc 20:30", true, true, time.Date(2024, 5, 9, 20, 30, 0, 0, loc)},
		{"昨天早于当前时刻", "Yesterday at 9:15 AM", true, false, time.Date(2024, 5, 9, 9, 15, 0, 0, loc)},
		{"昨天下午", "Yesterday at 3:00 PM", true, true, time.Date(2024, 5, 9, 15, 0, 0, 0, loc)},
		{"单独时刻为今天", "09:30", true, true, time.Date(2024, 5, 10, 9, 30, 0, 0, loc)},
		{"单独时刻在未来则为昨天", "18:00", true, true, time.Date(2024, 5, 9, 18, 0, 0, 0, loc)},
		{"今天时刻", "Hôm nay lúc 08:00", true, true, time.Date(2024, 5, 10, 8, 0, 0, 0, loc)},
		{"近期时间戳", "1715320800", true, true, time.Unix(1715320800, 0).In(loc)},
		{"过期时间戳", "1715000000", true, false, time.Unix(1715000000, 0).In(loc)},
		{"越南语日期", "2 tháng 5", true, false, time.Date(2024, 5, 2, 0, 0, 0, 0, loc)},
		{"英文日期", "May 3, 2024 at 10:00", true, false, time.Date(2024, 5, 3, 10, 0, 0, 0, loc)},
		{"空", "", false, false, time.Time{}},
		{"无法解析", "Đã chia sẻ với Công khai", false, false, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTime(tt.label, now)
			if got.HasInstant != tt.wantInstant || got.Recent != tt.wantRecent {
				t.Fatalf("NormalizeTime(%q) = %+v, want instant=%v recent=%v", tt.label, got, tt.wantInstant, tt.wantRecent)
			}
			if tt.wantInstant && !got.At.Equal(tt.want) {
				t.Errorf("NormalizeTime(%q).At = %v, want %v", tt.label, got.At, tt.want)
			}
		})
	}
}

func TestNormalizeTime_JustNowWithinMinute(t *testing.T) {
	now := time.Now()
	got := NormalizeTime("just now", now)
	if !got.HasInstant || !got.Recent {
		t.Fatalf("应解析为近期时间: %+v", got)
	}
	if d := now.Sub(got.At); d < 0 || d > time.Minute {
		t.Errorf("偏移 %v 超过1分钟", d)
	}
}

func TestFindTimePhrase(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"正文中的小时", "Trang ABC\n3 giờ · 🌏\nNội dung bài viết", "3 giờ", true},
		{"昨天带时刻", "Trang ABC Hôm qua lúc 10:30 · Nội dung", "hôm qua lúc 10:30", true},
		{"刚刚", "Trang ABC Vừa xong", "vừa xong", true},
		{"没有时间", "Nội dung bài viết không có thời gian", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindTimePhrase(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FindTimePhrase() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
