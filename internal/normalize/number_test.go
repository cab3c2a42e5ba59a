package normalize

import "testing"

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"逗号小数加K", "1,2K", 1200},
		{"点号千分位", "1.200", 1200},
		{"纯数字", "64", 64},
		{"空字符串", "", 0},
		{"无数字", "xyz", 0},
		{"点号小数加K", "1.2K", 1200},
		{"越南语千", "1,2 nghìn", 1200},
		{"越南语百万", "3,5 triệu", 3_500_000},
		{"tr缩写", "2 tr", 2_000_000},
		{"两位小数", "1,25K", 1250},
		{"浮点误差", "2,3K", 2300},
		{"十亿", "1b", 1_000_000_000},
		{"多个千分位", "1.234.567", 1_234_567},
		{"逗号千分位", "12,345", 12345},
		{"无单位的小数点被去掉", "1.5", 15},
		{"带标签", "Tất cả cảm xúc: 1,2K", 1200},
		{"单位后跟单词", "1,2K người khác", 1200},
		{"b开头的单词不是单位", "12 bình luận", 12},
		{"m开头的单词不是单位", "5 mọi người", 5},
		{"不间断空格", "1,2 K", 1200},
		{"尾部分隔符", "15.", 15},
		{"乘以单位后溢出", "99999999999b", 0},
		{"小数部分溢出", "9223372036,99b", 0},
		{"数字本身溢出", "99999999999999999999", 0},
		{"接近上限", "9223372036b", 9_223_372_036_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeNumber(tt.in); got != tt.want {
				t.Errorf("NormalizeNumber(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMetricLexicon_MatchLabel(t *testing.T) {
	tests := []struct {
		name   string
		lex    MetricLexicon
		label  string
		want   int64
		wantOK bool
	}{
		{"点赞标签", LikesLexicon, "Thích: 1,2K người", 1200, true},
		{"心情标签", LikesLexicon, "1,5K lượt bày tỏ cảm xúc", 1500, true},
		{"英文点赞", LikesLexicon, "2.3K reactions", 2300, true},
		{"通用按钮", LikesLexicon, "Bày tỏ cảm xúc", 0, false},
		{"评论计数", CommentsLexicon, "171 bình luận", 171, true},
		{"评论按钮", CommentsLexicon, "Viết bình luận", 0, false},
		{"以他人身份评论", CommentsLexicon, "Bình luận dưới tên Trang 2", 0, false},
		{"分享计数", SharesLexicon, "45 lượt chia sẻ", 45, true},
		{"分享反馈", SharesLexicon, "Góp ý cho chia sẻ 1", 0, false},
		{"无关键词", SharesLexicon, "12 người", 0, false},
		{"你和其他人", LikesLexicon, "Bạn và 1,2K người khác", 1200, true},
		{"英文其他人", LikesLexicon, "You and 1.2K others", 1200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.lex.MatchLabel(tt.label)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("MatchLabel(%q) = (%d, %v), want (%d, %v)", tt.label, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMetricLexicon_ScanText(t *testing.T) {
	tests := []struct {
		name   string
		lex    MetricLexicon
		text   string
		want   int64
		wantOK bool
	}{
		{"全部心情前缀", LikesLexicon, "Tất cả cảm xúc: 1,2K\nNguyễn Văn A và 1,1K người khác", 1200, true},
		{"评论单位词", CommentsLexicon, "Thích 1,2K  34 bình luận  5 lượt chia sẻ", 34, true},
		{"分享单位词", SharesLexicon, "Thích 1,2K  34 bình luận  5 lượt chia sẻ", 5, true},
		{"英文分享", SharesLexicon, "12 comments 3 shares", 3, true},
		{"没有计数", CommentsLexicon, "Viết bình luận", 0, false},
		{"仅有其他人摘要", LikesLexicon, "Bạn và 1,2K người khác", 1200, true},
		{"英文其他人摘要", LikesLexicon, "You and 1.2K others · 34 comments", 1200, true},
		{"其他人不算评论", CommentsLexicon, "Bạn và 1,2K người khác", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.lex.ScanText(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ScanText() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
