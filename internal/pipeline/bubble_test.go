package pipeline

import "testing"

func frag(text string, x, y, w, h int) Fragment {
	return Fragment{Text: text, Box: Rectangle{X: x, Y: y, W: w, H: h}, Confidence: 0.95}
}

func TestGroupBubbles_Proximity(t *testing.T) {
	frags := []Fragment{
		frag("第一行", 100, 100, 200, 24),
		frag("第二行", 100, 130, 200, 24), // 6px below first line's bottom
		frag("新气泡", 100, 220, 200, 24), // 66px gap, new bubble
	}

	bubbles := groupBubbles(frags, DefaultVerticalGap, DefaultHorizontalGap)
	if len(bubbles) != 2 {
		t.Fatalf("expected 2 bubbles, got %d", len(bubbles))
	}
	if got := len(bubbles[0].frags); got != 2 {
		t.Errorf("first bubble should hold 2 fragments, got %d", got)
	}
	if bubbles[0].content() != "第一行\n第二行" {
		t.Errorf("unexpected content: %q", bubbles[0].content())
	}
}

func TestGroupBubbles_HorizontalSplit(t *testing.T) {
	// Same vertical band but 200px apart horizontally: two bubbles.
	frags := []Fragment{
		frag("左边", 40, 100, 120, 24),
		frag("右边", 400, 104, 120, 24),
	}
	bubbles := groupBubbles(frags, DefaultVerticalGap, DefaultHorizontalGap)
	if len(bubbles) != 2 {
		t.Fatalf("expected 2 bubbles, got %d", len(bubbles))
	}
}

func TestGroupBubbles_OrderIndependent(t *testing.T) {
	a := frag("上面", 100, 100, 200, 24)
	b := frag("下面", 100, 128, 200, 24)

	forward := groupBubbles([]Fragment{a, b}, DefaultVerticalGap, DefaultHorizontalGap)
	reversed := groupBubbles([]Fragment{b, a}, DefaultVerticalGap, DefaultHorizontalGap)

	if len(forward) != 1 || len(reversed) != 1 {
		t.Fatalf("expected 1 bubble each, got %d and %d", len(forward), len(reversed))
	}
	if forward[0].content() != reversed[0].content() {
		t.Errorf("grouping depends on input order: %q vs %q",
			forward[0].content(), reversed[0].content())
	}
}

func TestGroupBubbles_Empty(t *testing.T) {
	if got := groupBubbles(nil, DefaultVerticalGap, DefaultHorizontalGap); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestAssignSenders_SplitInvariant(t *testing.T) {
	frags := []Fragment{
		frag("对方的话", 40, 100, 200, 24),
		frag("我的话", 500, 160, 200, 24),
		frag("对方又说", 40, 220, 200, 24),
	}
	bubbles := groupBubbles(frags, DefaultVerticalGap, DefaultHorizontalGap)
	splitX := splitLine(frags, 0)
	assignSenders(bubbles, splitX)

	want := []Sender{SenderOther, SenderSelf, SenderOther}
	for i, b := range bubbles {
		if b.sender != want[i] {
			t.Errorf("bubble %d: sender = %s, want %s", i, b.sender, want[i])
		}
	}
}

func TestSplitLine_Override(t *testing.T) {
	frags := []Fragment{frag("x", 0, 0, 700, 24)}
	if got := splitLine(frags, 260); got != 260 {
		t.Errorf("override ignored: got %v", got)
	}
	if got := splitLine(frags, 0); got != 350 {
		t.Errorf("derived split = %v, want 350", got)
	}
}

func TestBubbleMetrics(t *testing.T) {
	b := &bubble{frags: []Fragment{
		{Text: "a", Box: Rectangle{X: 10, Y: 10, W: 100, H: 20}, Confidence: 1.0},
		{Text: "b", Box: Rectangle{X: 10, Y: 34, W: 80, H: 20}, Confidence: 0.5},
	}}

	if got := b.avgConfidence(); got != 0.75 {
		t.Errorf("avgConfidence = %v, want 0.75", got)
	}
	box := b.box()
	if box.X != 10 || box.Y != 10 || box.W != 100 || box.H != 44 {
		t.Errorf("unexpected union box: %+v", box)
	}
}
