package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

// genericPlatform is the label used when a source line proves the unit is a
// share but no known platform token matched.
const genericPlatform = "分享"

// Known share platforms, matched by exact line.
var platformNames = []string{
	"小红书",
	"哔哩哔哩",
	"bilibili",
	"微信小程序",
	"微信公众号",
	"知乎",
	"抖音",
	"微博",
	"网易云音乐",
	"腾讯视频",
	"优酷",
	"豆瓣",
}

// Recognizable hostname substrings mapped to their platform label.
var platformHosts = map[string]string{
	"xiaohongshu.com": "小红书",
	"xhslink.com":     "小红书",
	"bilibili.com":    "哔哩哔哩",
	"b23.tv":          "哔哩哔哩",
	"zhihu.com":       "知乎",
	"douyin.com":      "抖音",
	"weibo.com":       "微博",
	"music.163.com":   "网易云音乐",
	"v.qq.com":        "腾讯视频",
	"youku.com":       "优酷",
	"douban.com":      "豆瓣",
}

var (
	reURL        = regexp.MustCompile(`https?://\S+`)
	reSourceLine = regexp.MustCompile(`^(?:来源|来自|[Ss]ource)[：:]\s*(.+)$`)
	reAuthorLine = regexp.MustCompile(`^(?:UP主|up主|作者|[Aa]uthor)[：:]\s*(.+)$`)
	reMetricLine = regexp.MustCompile(`^(?:播放量|阅读量|点赞|观看)[：:]\s*([0-9.]+)\s*(万|亿)?$`)
)

// extractShareCard parses a block of trimmed non-empty lines into a share
// card. It returns nil when the block does not satisfy the card grammar:
// a platform token plus either a URL, an explicit source line, or at least
// two lines following the platform label.
func extractShareCard(lines []string) *ShareCard {
	if len(lines) == 0 {
		return nil
	}

	var (
		platform     string
		platformLine = -1
		url          string
		source       string
		author       string
		metric       int64
		hasSource    bool
	)

	for i, line := range lines {
		if platformLine < 0 {
			if p := matchPlatformLine(line); p != "" {
				platform = p
				platformLine = i
			}
		}
		if url == "" {
			if u := reURL.FindString(line); u != "" {
				url = u
				if platform == "" {
					platform = platformFromURL(u)
				}
			}
		}
		if m := reSourceLine.FindStringSubmatch(line); m != nil {
			source = strings.TrimSpace(m[1])
			hasSource = true
		}
	}

	hasFollowing := platformLine >= 0 && len(lines)-platformLine-1 >= 2
	if url == "" && !hasSource && !hasFollowing {
		return nil
	}
	if platform == "" {
		if !hasSource && url == "" {
			return nil
		}
		platform = genericPlatform
	}

	var remaining []string
	for i, line := range lines {
		if i == platformLine {
			continue
		}
		if reURL.MatchString(line) && strings.TrimSpace(reURL.ReplaceAllString(line, "")) == "" {
			continue
		}
		if reSourceLine.MatchString(line) {
			continue
		}
		if m := reAuthorLine.FindStringSubmatch(line); m != nil {
			author = strings.TrimSpace(m[1])
			continue
		}
		if m := reMetricLine.FindStringSubmatch(line); m != nil {
			if v, ok := parseMetric(m[1], m[2]); ok {
				metric = v
			}
			continue
		}
		remaining = append(remaining, line)
	}

	card := &ShareCard{
		Platform: platform,
		Source:   source,
		Author:   author,
		Metric:   metric,
		URL:      url,
	}
	if len(remaining) > 0 {
		card.Title = remaining[0]
	}
	if len(remaining) > 1 {
		card.Body = strings.Join(remaining[1:], "\n")
	}
	return card
}

// containsPlatformToken reports whether any line carries a share-platform
// signal (used by the merged-text stage to avoid eating card fragments).
func containsPlatformToken(text string) bool {
	for _, p := range platformNames {
		if strings.Contains(text, p) {
			return true
		}
	}
	for host := range platformHosts {
		if strings.Contains(text, host) {
			return true
		}
	}
	return false
}

func matchPlatformLine(line string) string {
	t := strings.TrimSpace(line)
	for _, p := range platformNames {
		if t == p {
			return p
		}
	}
	return ""
}

func platformFromURL(url string) string {
	for host, name := range platformHosts {
		if strings.Contains(url, host) {
			return name
		}
	}
	return ""
}

// parseMetric converts "12.3" + "万" into 123000. 万 multiplies by 1e4,
// 亿 by 1e8.
func parseMetric(num, suffix string) (int64, bool) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch suffix {
	case "万":
		v *= 10_000
	case "亿":
		v *= 100_000_000
	}
	return int64(v + 0.5), true
}
