package pipeline

import "testing"

func TestExtractShareCard_Xiaohongshu(t *testing.T) {
	lines := []string{
		"小红书",
		"秋日咖啡指南",
		"在微风里喝一杯热拿铁",
		"来源：小红书",
		"https://www.xiaohongshu.com/abc123",
	}
	card := extractShareCard(lines)
	if card == nil {
		t.Fatal("expected a share card")
	}
	if card.Platform != "小红书" {
		t.Errorf("platform = %q", card.Platform)
	}
	if card.Title != "秋日咖啡指南" {
		t.Errorf("title = %q", card.Title)
	}
	if card.Body != "在微风里喝一杯热拿铁" {
		t.Errorf("body = %q", card.Body)
	}
	if card.Source != "小红书" {
		t.Errorf("source = %q", card.Source)
	}
	if card.URL != "https://www.xiaohongshu.com/abc123" {
		t.Errorf("url = %q", card.URL)
	}
}

func TestExtractShareCard_BilibiliMetrics(t *testing.T) {
	lines := []string{
		"哔哩哔哩",
		"视觉之旅：穿越光影",
		"UP主：阿B",
		"播放量：12.3万",
		"来源：哔哩哔哩",
		"https://www.bilibili.com/video/BVxxxx",
	}
	card := extractShareCard(lines)
	if card == nil {
		t.Fatal("expected a share card")
	}
	if card.Platform != "哔哩哔哩" {
		t.Errorf("platform = %q", card.Platform)
	}
	if card.Author != "阿B" {
		t.Errorf("author = %q", card.Author)
	}
	if card.Metric != 123000 {
		t.Errorf("metric = %d, want 123000", card.Metric)
	}
	if card.Title != "视觉之旅：穿越光影" {
		t.Errorf("title = %q", card.Title)
	}
	if card.Body != "" {
		t.Errorf("body should be empty, got %q", card.Body)
	}
}

func TestExtractShareCard_GenericSourceOnly(t *testing.T) {
	lines := []string{
		"查收这份礼物",
		"来源：星巴克",
	}
	card := extractShareCard(lines)
	if card == nil {
		t.Fatal("expected a share card")
	}
	if card.Platform != genericPlatform {
		t.Errorf("platform = %q, want generic label", card.Platform)
	}
	if card.Source != "星巴克" {
		t.Errorf("source = %q", card.Source)
	}
	if card.Title != "查收这份礼物" {
		t.Errorf("title = %q", card.Title)
	}
}

func TestExtractShareCard_PlatformFromURL(t *testing.T) {
	lines := []string{
		"深夜电台歌单",
		"https://music.163.com/playlist/42",
	}
	card := extractShareCard(lines)
	if card == nil {
		t.Fatal("expected a share card")
	}
	if card.Platform != "网易云音乐" {
		t.Errorf("platform = %q", card.Platform)
	}
}

func TestExtractShareCard_Rejections(t *testing.T) {
	cases := [][]string{
		nil,
		{"明天一起吃饭吗"},
		{"小红书"},           // platform alone, nothing follows
		{"小红书", "好店推荐"},   // only one following line, no URL/source
		{"你看这个链接不是链接的文本"}, // no platform, no source, no URL
	}
	for _, lines := range cases {
		if card := extractShareCard(lines); card != nil {
			t.Errorf("extractShareCard(%v) = %+v, want nil", lines, card)
		}
	}
}

func TestParseMetric(t *testing.T) {
	cases := []struct {
		num, suffix string
		want        int64
	}{
		{"12.3", "万", 123000},
		{"2", "亿", 200000000},
		{"980", "", 980},
	}
	for _, c := range cases {
		got, ok := parseMetric(c.num, c.suffix)
		if !ok || got != c.want {
			t.Errorf("parseMetric(%q, %q) = %d/%v, want %d", c.num, c.suffix, got, ok, c.want)
		}
	}
}
