package pipeline

import (
	"strings"
	"unicode"
)

// Known OCR hallucination strings: outputs the recognizer emits for empty or
// near-empty crops. Matched against the full trimmed text.
var hallucinationDenylist = map[string]struct{}{
	"©":      {},
	"®":      {},
	"·":      {},
	"....":   {},
	"。。。":    {},
	"一一":     {},
	"||":     {},
	"--":     {},
	"①":      {},
	"¥":      {},
	"www":    {},
	"http//": {},
}

// Markers of this tool's own log lines and UI labels. A capture that
// accidentally includes the tool's own window would otherwise feed its log
// output back through the pipeline. Matched as substrings.
var selfLogMarkers = []string{
	"[DEBUG]",
	"[INFO]",
	"[WARN]",
	"[ERROR]",
	"chatlift",
	"识别文本区域",
	"区域识别",
	"OCR引擎",
	"开始扫描",
	"停止扫描",
	"滚动扫描",
	"截图失败",
	"导出完成",
}

// shortGarbageMax is the maximum rune length at which symbol-only strings
// are treated as noise.
const shortGarbageMax = 8

// isSelfLog reports whether text looks like the tool's own log or UI output.
func isSelfLog(text string) bool {
	for _, m := range selfLogMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// isGarbageText reports whether text is OCR noise that should be blanked.
// Blanked units stay in the pipeline: their geometry may still classify them
// as media.
func isGarbageText(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if _, ok := hallucinationDenylist[t]; ok {
		return true
	}

	runes := []rune(t)
	if len(runes) > shortGarbageMax {
		return false
	}

	// Short strings of nothing but punctuation, digits and symbols are noise
	// unless they are a pure number (which can be a legitimate message).
	// Emoji are category So but carry meaning; the sticker heuristic claims
	// them, so they are never symbolic noise here.
	pureNumber := true
	symbolic := true
	for _, r := range runes {
		if !unicode.IsDigit(r) {
			pureNumber = false
		}
		if r >= emojiPlaneStart {
			symbolic = false
			continue
		}
		if !unicode.IsDigit(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			symbolic = false
		}
	}
	return symbolic && !pureNumber
}

// scrubFragments applies the fragment-level filter pass. Self-log fragments
// are removed outright and reported; garbage fragments keep their geometry
// but lose their text.
func scrubFragments(frags []Fragment) (kept []Fragment, warnings []string) {
	kept = make([]Fragment, 0, len(frags))
	for _, f := range frags {
		t := strings.TrimSpace(f.Text)
		if t != "" && isSelfLog(t) {
			warnings = append(warnings, "self-capture detected, fragment dropped: "+truncate(t, 60))
			continue
		}
		if isGarbageText(t) {
			f.Text = ""
		}
		kept = append(kept, f)
	}
	return kept, warnings
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
