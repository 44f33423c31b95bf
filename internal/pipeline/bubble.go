package pipeline

import (
	"sort"
	"strings"
)

// Default proximity thresholds for line-to-bubble grouping.
const (
	DefaultVerticalGap   = 12
	DefaultHorizontalGap = 40
)

// bubble is a cluster of fragments believed to belong to one chat message
// rendering. Bubbles are created by groupBubbles, annotated in place, and
// discarded at the end of the Parse call.
type bubble struct {
	frags  []Fragment
	sender Sender
}

// lines returns the trimmed, non-empty text of each fragment in order.
func (b *bubble) lines() []string {
	out := make([]string, 0, len(b.frags))
	for _, f := range b.frags {
		if t := strings.TrimSpace(f.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// content joins the bubble's non-empty lines with newlines.
func (b *bubble) content() string {
	return strings.Join(b.lines(), "\n")
}

// rawText joins every fragment's text verbatim with single spaces.
func (b *bubble) rawText() string {
	parts := make([]string, 0, len(b.frags))
	for _, f := range b.frags {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

// avgConfidence averages fragment confidences. Zero-confidence fragments
// still count: they drag the average down rather than being skipped.
func (b *bubble) avgConfidence() float64 {
	if len(b.frags) == 0 {
		return 0
	}
	var sum float64
	for _, f := range b.frags {
		sum += f.Confidence
	}
	return sum / float64(len(b.frags))
}

// box returns the union bounding box of all fragments.
func (b *bubble) box() Rectangle {
	var r Rectangle
	for _, f := range b.frags {
		r = r.Union(f.Box)
	}
	return r
}

// weightedCenterX returns the fragment-area-weighted horizontal center,
// falling back to the plain mean when all areas are degenerate.
func (b *bubble) weightedCenterX() float64 {
	var wsum, csum float64
	for _, f := range b.frags {
		w := float64(f.Box.Area())
		if w <= 0 {
			w = 1
		}
		wsum += w
		csum += w * f.Box.CenterX()
	}
	if wsum == 0 {
		return 0
	}
	return csum / wsum
}

// hint returns the first non-empty kind hint among the fragments.
func (b *bubble) hint() KindHint {
	for _, f := range b.frags {
		if f.Hint != HintNone && f.Hint != HintText {
			return f.Hint
		}
	}
	return HintNone
}

// stats returns the first fragment crop stats that carry evidence.
func (b *bubble) stats() CropStats {
	for _, f := range b.frags {
		if f.Stats.HasStats {
			return f.Stats
		}
	}
	return CropStats{}
}

// groupBubbles clusters fragments into bubbles with a greedy single pass.
//
// Fragments are sorted by (top y, x) first so grouping is deterministic for
// any input order. A fragment joins the current bubble when its vertical gap
// to the previously appended fragment is at most vGap pixels and its
// horizontal offset is at most hGap pixels; otherwise it starts a new bubble.
func groupBubbles(frags []Fragment, vGap, hGap int) []*bubble {
	if len(frags) == 0 {
		return nil
	}

	sorted := make([]Fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Y != sorted[j].Box.Y {
			return sorted[i].Box.Y < sorted[j].Box.Y
		}
		return sorted[i].Box.X < sorted[j].Box.X
	})

	var bubbles []*bubble
	cur := &bubble{frags: []Fragment{sorted[0]}}

	for _, f := range sorted[1:] {
		last := cur.frags[len(cur.frags)-1]
		vDist := f.Box.Y - last.Box.Bottom()
		if vDist < 0 {
			vDist = 0
		}
		hDist := f.Box.X - last.Box.X
		if hDist < 0 {
			hDist = -hDist
		}
		if vDist <= vGap && hDist <= hGap {
			cur.frags = append(cur.frags, f)
			continue
		}
		bubbles = append(bubbles, cur)
		cur = &bubble{frags: []Fragment{f}}
	}
	bubbles = append(bubbles, cur)
	return bubbles
}
