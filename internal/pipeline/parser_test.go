package pipeline

import (
	"reflect"
	"testing"
	"time"
)

// fixedCtx returns a ParseContext anchored at Wednesday 2024-10-16 20:00.
func fixedCtx(dir ScanDirection) ParseContext {
	return ParseContext{Time: ref, Direction: dir}
}

// ==================== Scenario coverage ====================

func TestParse_StickerScenario(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{frag("晚安", 300, 120, 60, 24)}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	m := res.Messages[0]
	if m.Type != TypeSticker {
		t.Errorf("type = %s, want sticker", m.Type)
	}
	if m.Content != "晚安" {
		t.Errorf("content = %q", m.Content)
	}
}

func TestParse_ShareCardScenario(t *testing.T) {
	p := NewParser(Options{})
	lines := []string{"小红书", "秋日咖啡指南", "来源：小红书", "https://xhs/abc"}
	frags := make([]Fragment, 0, len(lines))
	y := 100
	for _, l := range lines {
		frags = append(frags, frag(l, 300, y, 240, 24))
		y += 12
	}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	m := res.Messages[0]
	if m.Type != TypeShare {
		t.Fatalf("type = %s, want share", m.Type)
	}
	if m.ShareCard == nil {
		t.Fatal("share card missing")
	}
	if m.ShareCard.Platform != "小红书" {
		t.Errorf("platform = %q", m.ShareCard.Platform)
	}
	if m.ShareCard.Title != "秋日咖啡指南" {
		t.Errorf("title = %q", m.ShareCard.Title)
	}
	if m.ShareCard.URL != "https://xhs/abc" {
		t.Errorf("url = %q", m.ShareCard.URL)
	}
}

func TestParse_WeekdaySeparatorScenario(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{frag("星期五23:53", 240, 300, 180, 26)}

	res, pctx := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	m := res.Messages[0]
	if m.Type != TypeSystem {
		t.Fatalf("type = %s, want system", m.Type)
	}
	if m.Sender != SenderSystem {
		t.Errorf("sender = %s, want system", m.Sender)
	}
	// Most recent past Friday relative to Wednesday 2024-10-16.
	want := time.Date(2024, 10, 11, 23, 53, 0, 0, time.Local)
	if !m.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", m.Timestamp, want)
	}
	if !pctx.Time.Equal(want) {
		t.Errorf("returned context = %v, want %v", pctx.Time, want)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	p := NewParser(Options{})
	res, pctx := p.Parse(nil, fixedCtx(DirectionUp))
	if len(res.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(res.Messages))
	}
	if !pctx.Time.Equal(ref) {
		t.Errorf("context time changed on empty input: %v", pctx.Time)
	}
}

func TestParse_GarbageBecomesUnknown(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{frag("4:8080/#", 100, 100, 60, 24)}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	m := res.Messages[0]
	if m.Type != TypeUnknown {
		t.Errorf("type = %s, want unknown", m.Type)
	}
	if m.Content != "" {
		t.Errorf("garbage content should be blanked, got %q", m.Content)
	}
}

// ==================== Properties ====================

func TestParse_Deterministic(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{
		frag("星期五 23:53", 240, 40, 180, 26),
		frag("晚安", 300, 120, 60, 24),
		frag("明天九点开会，别忘了带上", 40, 200, 260, 24),
		frag("那份材料", 40, 260, 120, 24),
	}

	first, _ := p.Parse(frags, fixedCtx(DirectionDown))
	second, _ := p.Parse(frags, fixedCtx(DirectionDown))

	if !reflect.DeepEqual(first.Messages, second.Messages) {
		t.Errorf("parse is not deterministic:\n%+v\nvs\n%+v", first.Messages, second.Messages)
	}
	for i := range first.Messages {
		if first.Messages[i].StableKey() != second.Messages[i].StableKey() {
			t.Errorf("message %d: keys differ across identical parses", i)
		}
	}
}

func TestParse_SentenceMerge(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{
		frag("哈哈哈，但是公司还是抠啊，要3年/5年/10年的是", 280, 120, 280, 24),
		frag("黄金，小年的是其他礼品", 280, 180, 280, 24),
	}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected merged single message, got %d", len(res.Messages))
	}
	m := res.Messages[0]
	if m.Type != TypeText {
		t.Errorf("type = %s, want text", m.Type)
	}
	if !reflect.DeepEqual(m.Sender, SenderSelf) {
		t.Errorf("sender = %s, want self", m.Sender)
	}
	if want := "哈哈哈，但是公司还是抠啊，要3年/5年/10年的是\n黄金，小年的是其他礼品"; m.Content != want {
		t.Errorf("content = %q", m.Content)
	}
}

func TestParse_MergeStopsAtTerminalPunctuation(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{
		frag("今天先到这里吧。", 280, 120, 280, 24),
		frag("明天继续讨论", 280, 180, 280, 24),
	}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(res.Messages))
	}
}

func TestParse_AggregatedShareBeatsSticker(t *testing.T) {
	// The first bubble alone is a sticker phrase, but reached via
	// cross-bubble aggregation the share grammar claims the whole run.
	p := NewParser(Options{})
	frags := []Fragment{
		frag("😄😄", 300, 100, 80, 24),
		frag("秋日咖啡指南", 300, 160, 240, 24),
		frag("来源：小红书", 300, 220, 240, 24),
		frag("https://xhs/abc", 300, 280, 240, 24),
	}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 aggregated message, got %d", len(res.Messages))
	}
	if res.Messages[0].Type != TypeShare {
		t.Errorf("type = %s, want share", res.Messages[0].Type)
	}

	// The same sticker bubble alone still classifies as a sticker.
	solo, _ := p.Parse(frags[:1], fixedCtx(DirectionDown))
	if solo.Messages[0].Type != TypeSticker {
		t.Errorf("solo type = %s, want sticker", solo.Messages[0].Type)
	}
}

func TestParse_TimeMonotonicScanDown(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{
		frag("今天 09:00", 240, 40, 160, 24),
		frag("早上好，今天有安排吗", 40, 100, 240, 24),
		frag("今天 10:00", 240, 200, 160, 24),
		frag("十点了，准备出门", 500, 260, 240, 24),
	}

	res, pctx := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(res.Messages))
	}
	for i := 1; i < len(res.Messages); i++ {
		if res.Messages[i].Timestamp.Before(res.Messages[i-1].Timestamp) {
			t.Errorf("timestamps not monotonic at %d: %v then %v",
				i, res.Messages[i-1].Timestamp, res.Messages[i].Timestamp)
		}
	}
	want := time.Date(2024, 10, 16, 10, 0, 0, 0, time.Local)
	if !pctx.Time.Equal(want) {
		t.Errorf("context time = %v, want %v", pctx.Time, want)
	}
}

func TestParse_ScanUpReversesChronology(t *testing.T) {
	// Scrolling up: capture order is newest first. The separator ABOVE a
	// message (later in capture order) is the one that dates it.
	p := NewParser(Options{})
	frags := []Fragment{
		frag("十点的消息", 40, 40, 200, 24),
		frag("今天 10:00", 240, 120, 160, 24),
		frag("九点的消息", 40, 200, 200, 24),
		frag("今天 09:00", 240, 280, 160, 24),
	}

	res, pctx := p.Parse(frags, fixedCtx(DirectionUp))
	if len(res.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(res.Messages))
	}

	nine := time.Date(2024, 10, 16, 9, 0, 0, 0, time.Local)
	ten := time.Date(2024, 10, 16, 10, 0, 0, 0, time.Local)

	if !res.Messages[0].Timestamp.Equal(ten) {
		t.Errorf("newest message timestamp = %v, want %v", res.Messages[0].Timestamp, ten)
	}
	if !res.Messages[2].Timestamp.Equal(nine) {
		t.Errorf("older message timestamp = %v, want %v", res.Messages[2].Timestamp, nine)
	}
	if !pctx.Time.Equal(ten) {
		t.Errorf("context time = %v, want %v (newest resolved)", pctx.Time, ten)
	}
}

func TestChronologicalIndices(t *testing.T) {
	if got := ChronologicalIndices(3, DirectionDown); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("down = %v", got)
	}
	if got := ChronologicalIndices(3, DirectionUp); !reflect.DeepEqual(got, []int{2, 1, 0}) {
		t.Errorf("up = %v", got)
	}
	if got := ChronologicalIndices(0, DirectionUp); len(got) != 0 {
		t.Errorf("empty = %v", got)
	}
}

func TestParse_SelfLogDropped(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{
		frag("正常消息在这里", 40, 100, 200, 24),
		frag("[INFO] 区域识别文本区域数量：12", 40, 400, 300, 24),
	}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected a self-capture warning, got %v", res.Warnings)
	}
}

func TestParse_QuoteInsideBubble(t *testing.T) {
	p := NewParser(Options{})
	lines := []string{"好友A", "明天见", "好的", "12:30"}
	frags := make([]Fragment, 0, len(lines))
	y := 100
	for _, l := range lines {
		frags = append(frags, frag(l, 280, y, 240, 24))
		y += 12
	}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	m := res.Messages[0]
	if m.Type != TypeText {
		t.Fatalf("type = %s, want text", m.Type)
	}
	if m.Quote == nil {
		t.Fatal("quote metadata missing")
	}
	if m.Quote.OriginalNickname != "好友A" {
		t.Errorf("nickname = %q", m.Quote.OriginalNickname)
	}
	if m.Content != "明天见\n好的" {
		t.Errorf("content = %q", m.Content)
	}
}

func TestParse_UpstreamHints(t *testing.T) {
	p := NewParser(Options{})
	cases := []struct {
		hint KindHint
		want MessageType
	}{
		{HintSticker, TypeSticker},
		{HintImage, TypeImage},
	}
	for _, c := range cases {
		frags := []Fragment{{
			Box:        Rectangle{X: 120, Y: 160, W: 140, H: 140},
			Confidence: 0.2,
			Hint:       c.hint,
		}}
		res, _ := p.Parse(frags, fixedCtx(DirectionDown))
		if len(res.Messages) != 1 || res.Messages[0].Type != c.want {
			t.Errorf("hint %s: got %+v, want type %s", c.hint, res.Messages, c.want)
		}
	}
}

func TestParse_ZeroConfidenceHandled(t *testing.T) {
	p := NewParser(Options{})
	frags := []Fragment{{Text: "置信度为零的文本", Box: Rectangle{X: 40, Y: 100, W: 200, H: 24}}}

	res, _ := p.Parse(frags, fixedCtx(DirectionDown))
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	if res.Messages[0].Type != TypeText {
		t.Errorf("type = %s, want text", res.Messages[0].Type)
	}
	if res.Messages[0].Confidence != 0 {
		t.Errorf("confidence = %v, want 0", res.Messages[0].Confidence)
	}
}
