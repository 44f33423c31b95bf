package pipeline

import "strings"

// selfIndicator is the nickname prefix WeChat renders for the user's own
// quoted messages.
const selfIndicator = "我"

// nicknameTrimSet holds bracket characters OCR tends to wrap nicknames in.
const nicknameTrimSet = "()（）[]【】<>《》「」"

// extractQuote detects a quoted-reply layout inside a unit's lines:
// nickname, quoted text, then the actual reply. Preconditions: at least
// three non-empty lines and neither of the first two looking like a
// timestamp. On a match it returns the quote metadata and the sanitized
// content (quoted text plus remaining lines, with any deeper
// timestamp-shaped lines stripped). Otherwise it returns nil and the
// original lines joined unchanged.
func extractQuote(lines []string) (*QuoteMeta, string) {
	nonEmpty := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) < 3 || isTimestampLine(nonEmpty[0]) || isTimestampLine(nonEmpty[1]) {
		return nil, strings.Join(nonEmpty, "\n")
	}

	nickname := strings.Trim(nonEmpty[0], nicknameTrimSet)
	quoted := nonEmpty[1]

	label := QuoteOther
	if strings.HasPrefix(nickname, selfIndicator) {
		label = QuoteSelf
	}

	rest := make([]string, 0, len(nonEmpty)-2)
	for _, l := range nonEmpty[2:] {
		if isTimestampLine(l) {
			continue
		}
		rest = append(rest, l)
	}

	content := quoted
	if len(rest) > 0 {
		content += "\n" + strings.Join(rest, "\n")
	}

	return &QuoteMeta{
		OriginalNickname: nickname,
		OriginalSender:   label,
		QuotedText:       quoted,
	}, content
}
