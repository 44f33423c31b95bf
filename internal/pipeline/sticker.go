package pipeline

import "strings"

// stickerMaxRunes is the longest phrase the sticker heuristic considers.
const stickerMaxRunes = 8

// emojiPlaneStart is the first code point of the supplementary symbol
// planes; any rune at or above it marks the text as sticker-like.
const emojiPlaneStart = 0x1F000

// Short mood words commonly rendered as stickers rather than typed text:
// greetings, acknowledgements, laughter, affection.
var stickerPhrases = map[string]struct{}{
	"你好":   {},
	"早":    {},
	"早上好":  {},
	"早安":   {},
	"午安":   {},
	"晚安":   {},
	"晚安呀":  {},
	"晚上好":  {},
	"谢谢":   {},
	"谢谢你":  {},
	"不客气":  {},
	"好的":   {},
	"好嘞":   {},
	"好哒":   {},
	"收到":   {},
	"嗯":    {},
	"嗯嗯":   {},
	"哦":    {},
	"哦哦":   {},
	"在吗":   {},
	"在不":   {},
	"哈哈":   {},
	"嘿嘿":   {},
	"嘻嘻":   {},
	"加油":   {},
	"抱抱":   {},
	"么么哒":  {},
	"拜拜":   {},
	"再见":   {},
	"辛苦了":  {},
	"没事":   {},
	"没关系":  {},
	"ok":   {},
	"OK":   {},
	"bye":  {},
	"hi":   {},
	"hello": {},
}

// isStickerPhrase reports whether trimmed content looks like a sticker:
// at most eight runes, and one of (a) a known short mood word, (b) a run of
// one repeated non-trivial character, (c) any rune in the emoji planes.
// extra is merged over the built-in phrase table.
func isStickerPhrase(content string, extra map[string]struct{}) bool {
	t := strings.TrimSpace(content)
	if t == "" {
		return false
	}
	runes := []rune(t)
	if len(runes) > stickerMaxRunes {
		return false
	}

	if _, ok := stickerPhrases[t]; ok {
		return true
	}
	if _, ok := extra[t]; ok {
		return true
	}
	if isRepeatedRun(runes) {
		return true
	}
	for _, r := range runes {
		if r >= emojiPlaneStart {
			return true
		}
	}
	return false
}

// isRepeatedRun reports whether runes are one character repeated at least
// twice, excluding trivial ASCII punctuation and digit repeats ("..", "111")
// that are more likely OCR noise than laughter.
func isRepeatedRun(runes []rune) bool {
	if len(runes) < 2 {
		return false
	}
	first := runes[0]
	for _, r := range runes[1:] {
		if r != first {
			return false
		}
	}
	if first < 0x80 && (first < 'A' || (first > 'Z' && first < 'a') || first > 'z') {
		return false
	}
	return true
}
