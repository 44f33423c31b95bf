package pipeline

import (
	"strings"
	"unicode/utf8"
)

// Cross-bubble aggregation limits.
const (
	maxAggregateBubbles = 5
	mergedTextMaxRunes  = 400

	compactMinLines   = 3
	compactMaxLines   = 12
	compactGapFactor  = 0.6 // of average line height
	compactMaxXStddev = 15.0
)

// Terminal punctuation that ends a sentence; a bubble not ending in one of
// these is a candidate for continuation by the next bubble.
const terminalPunctuation = "。！？!?…"

// sameSideRun returns how many consecutive bubbles starting at i share the
// same sender, capped at limit. Time-separator bubbles end the run: a merge
// must never swallow a system divider.
func sameSideRun(bubbles []*bubble, i, limit int) int {
	n := 1
	for i+n < len(bubbles) && n < limit &&
		bubbles[i+n].sender == bubbles[i].sender &&
		!isTimeSeparator(bubbles[i+n].lines()) {
		n++
	}
	return n
}

// unionBubbles merges the fragments of bubbles[i:i+k] into one transient
// bubble for classification.
func unionBubbles(bubbles []*bubble, i, k int) *bubble {
	merged := &bubble{sender: bubbles[i].sender}
	for _, b := range bubbles[i : i+k] {
		merged.frags = append(merged.frags, b.frags...)
	}
	return merged
}

// tryMergeImage checks whether a run of 2+ same-side bubbles forms one image
// region: the merged text carries no real words (empty or garbage, and not a
// sticker phrase) while the union geometry matches the image heuristic.
// Returns the number of bubbles consumed, or 0.
func tryMergeImage(bubbles []*bubble, i, run int, capW, capH int, medianArea float64) int {
	if run < 2 {
		return 0
	}
	for k := run; k >= 2; k-- {
		merged := unionBubbles(bubbles, i, k)
		text := merged.content()
		if text != "" && !isGarbageText(text) {
			continue
		}
		if isStickerPhrase(text, nil) {
			continue
		}
		if classifyEmptyMedia(merged.box(), merged.hint(), merged.stats(), capW, capH, medianArea) == TypeImage {
			return k
		}
	}
	return 0
}

// tryMergeShare checks whether a run of 2+ same-side bubbles joins into a
// share card. The largest satisfying window wins so a card split across
// bubbles is swallowed whole. Returns consumed count and the card.
func tryMergeShare(bubbles []*bubble, i, run int) (int, *ShareCard) {
	for k := run; k >= 2; k-- {
		merged := unionBubbles(bubbles, i, k)
		if card := extractShareCard(merged.lines()); card != nil {
			return k, card
		}
	}
	return 0, nil
}

// tryMergeText checks whether 2+ same-side bubbles continue one sentence.
// The merge refuses media keywords, URLs, share-platform tokens, and
// anything beyond 400 runes combined. Returns the consumed count, or 0.
func tryMergeText(bubbles []*bubble, i, run int) int {
	if run < 2 {
		return 0
	}
	k := 1
	for k < run {
		prev := bubbles[i+k-1].content()
		next := bubbles[i+k].content()
		if prev == "" || next == "" || !sentenceContinues(prev) {
			break
		}
		k++
	}
	if k < 2 {
		return 0
	}

	merged := unionBubbles(bubbles, i, k)
	text := merged.content()
	if utf8.RuneCountInString(text) > mergedTextMaxRunes {
		return 0
	}
	if containsMediaKeyword(text) || reURL.MatchString(text) || containsPlatformToken(text) {
		return 0
	}
	return k
}

// sentenceContinues reports whether text ends mid-sentence, i.e. without
// terminal punctuation, so the next bubble may be its continuation.
func sentenceContinues(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	runes := []rune(t)
	last := runes[len(runes)-1]
	return !strings.ContainsRune(terminalPunctuation, last)
}

// tryCompactCard checks for the compact-card layout: 3–12 closely packed,
// low-horizontal-variance lines (possibly within a single bubble) whose
// joined text carries a URL or platform hint. Returns consumed bubbles and
// the extracted card.
func tryCompactCard(bubbles []*bubble, i, run int) (int, *ShareCard) {
	for k := run; k >= 1; k-- {
		merged := unionBubbles(bubbles, i, k)
		if !isCompactLayout(merged.frags) {
			continue
		}
		lines := merged.lines()
		joined := strings.Join(lines, "\n")
		if !reURL.MatchString(joined) && !containsPlatformToken(joined) {
			continue
		}
		card := extractShareCard(lines)
		if card == nil {
			// The layout and hint are decisive even when the grammar's
			// labeled lines are missing; degrade to a minimal card.
			card = &ShareCard{
				Platform: genericPlatform,
				URL:      reURL.FindString(joined),
			}
			if p := platformFromURL(card.URL); p != "" {
				card.Platform = p
			}
			if len(lines) > 0 {
				card.Title = lines[0]
			}
			if len(lines) > 1 {
				card.Body = strings.Join(lines[1:], "\n")
			}
		}
		return k, card
	}
	return 0, nil
}

// isCompactLayout reports whether fragments form a tight vertical stack:
// 3–12 lines, vertical pitch at most 0.6× the average line height, and
// horizontal start positions within 15px standard deviation.
func isCompactLayout(frags []Fragment) bool {
	n := 0
	for _, f := range frags {
		if strings.TrimSpace(f.Text) != "" {
			n++
		}
	}
	if n < compactMinLines || n > compactMaxLines {
		return false
	}

	var (
		xs      []float64
		heights float64
		prevY   int
		maxGap  int
		first   = true
	)
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		xs = append(xs, float64(f.Box.X))
		heights += float64(f.Box.H)
		if !first {
			if gap := f.Box.Y - prevY; gap > maxGap {
				maxGap = gap
			}
		}
		prevY = f.Box.Y
		first = false
	}

	avgHeight := heights / float64(n)
	if avgHeight <= 0 {
		return false
	}
	if float64(maxGap) > compactGapFactor*avgHeight {
		return false
	}
	return stddev(xs) <= compactMaxXStddev
}
