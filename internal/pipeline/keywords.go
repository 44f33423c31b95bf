package pipeline

import "strings"

// Keyword tables for the single-bubble fallback classifier. These are the
// textual placeholders the chat client renders for non-text payloads, plus
// the system notices it inserts inline.
var (
	imageKeywords = []string{"[图片]", "图片", "photo", "image", "img"}
	voiceKeywords = []string{"[语音]", "语音", "voice", "audio"}

	systemKeywords = []string{
		"你已添加",
		"已成为你的朋友",
		"系统消息",
		"撤回了一条消息",
		"拍了拍",
		"开启了朋友验证",
		"joined the group",
		"left the group",
		"invited",
	}
)

// classifyByKeyword maps content to Image/Voice/System via substring hints,
// or returns TypeUnknown when no hint matches.
func classifyByKeyword(content string) MessageType {
	lower := strings.ToLower(content)
	for _, k := range imageKeywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return TypeImage
		}
	}
	for _, k := range voiceKeywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return TypeVoice
		}
	}
	for _, k := range systemKeywords {
		if strings.Contains(content, k) {
			return TypeSystem
		}
	}
	return TypeUnknown
}

// containsMediaKeyword reports whether text mentions any image, voice or
// system placeholder. The merged-text stage refuses to fuse bubbles across
// such markers.
func containsMediaKeyword(text string) bool {
	return classifyByKeyword(text) != TypeUnknown
}
