package pipeline

import (
	"fmt"
	"time"
)

// ScanDirection tells the pipeline how capture order relates to
// chronological order. Scrolling up through history captures newest
// messages first; scrolling down captures oldest first. This is an explicit
// caller contract, never inferred.
type ScanDirection string

const (
	DirectionUp   ScanDirection = "up"
	DirectionDown ScanDirection = "down"
)

// Options configures a Parser. The zero value selects all defaults.
type Options struct {
	VerticalGap    int // bubble grouping, default 12px
	HorizontalGap  int // bubble grouping, default 40px
	SplitXOverride int // sender split line; 0 derives it from fragment geometry

	// ExtraStickerPhrases merges additional short mood words over the
	// built-in table.
	ExtraStickerPhrases []string
}

// ParseContext is the cross-call state the caller threads between captures:
// the current time anchor and the scan direction. The pipeline never stores
// it; Parse returns the updated context for the next call.
type ParseContext struct {
	Time      time.Time
	Direction ScanDirection
}

// ParseResult is the output of one capture's reconstruction.
type ParseResult struct {
	Messages []Message
	Warnings []string
}

// Parser reconstructs messages from OCR fragments. Parsers are stateless
// and safe to reuse across captures; concurrent use requires external
// serialization only because callers mutate their own dedup accumulators
// between calls.
type Parser struct {
	vGap, hGap   int
	splitX       int
	extraSticker map[string]struct{}
}

// NewParser builds a Parser from opts.
func NewParser(opts Options) *Parser {
	p := &Parser{
		vGap:   opts.VerticalGap,
		hGap:   opts.HorizontalGap,
		splitX: opts.SplitXOverride,
	}
	if p.vGap <= 0 {
		p.vGap = DefaultVerticalGap
	}
	if p.hGap <= 0 {
		p.hGap = DefaultHorizontalGap
	}
	if len(opts.ExtraStickerPhrases) > 0 {
		p.extraSticker = make(map[string]struct{}, len(opts.ExtraStickerPhrases))
		for _, s := range opts.ExtraStickerPhrases {
			p.extraSticker[s] = struct{}{}
		}
	}
	return p
}

// Parse reconstructs one capture's fragments into ordered messages and
// returns the updated context. It never fails: empty input yields empty
// output, and per-unit heuristic errors degrade that unit to Unknown.
func (p *Parser) Parse(frags []Fragment, pctx ParseContext) (ParseResult, ParseContext) {
	if pctx.Direction == "" {
		pctx.Direction = DirectionUp
	}
	if pctx.Time.IsZero() {
		pctx.Time = time.Now()
	}
	if len(frags) == 0 {
		return ParseResult{}, pctx
	}

	var result ParseResult

	kept, warnings := scrubFragments(frags)
	result.Warnings = warnings
	if len(kept) == 0 {
		return result, pctx
	}

	bubbles := groupBubbles(kept, p.vGap, p.hGap)
	splitX := splitLine(kept, p.splitX)
	assignSenders(bubbles, splitX)

	capW, capH := captureExtent(kept)
	medianArea := medianTextBubbleArea(bubbles)

	// Classification cascade, capture order. Aggregating stages report how
	// many bubbles they consumed so no bubble is processed twice.
	type unit struct {
		msg         Message
		isSeparator bool
		sepLines    []string
	}
	var units []unit

	for i := 0; i < len(bubbles); {
		b := bubbles[i]

		content := b.content()
		if content != "" && isSelfLog(content) {
			result.Warnings = append(result.Warnings,
				"self-capture detected, unit dropped: "+truncate(content, 60))
			i++
			continue
		}

		msg, consumed, sep := p.classifyUnit(bubbles, i, capW, capH, medianArea)
		units = append(units, unit{msg: msg, isSeparator: sep, sepLines: b.lines()})
		i += consumed
	}

	// Time context propagation runs in chronological order, which is the
	// reverse of capture order when scrolling up through history.
	ctxTime := pctx.Time
	for _, idx := range ChronologicalIndices(len(units), pctx.Direction) {
		u := &units[idx]
		if u.isSeparator {
			if t, ok := parseTimeSeparator(u.sepLines, ctxTime); ok {
				ctxTime = t
			}
			u.msg.Timestamp = ctxTime
			continue
		}
		u.msg.Timestamp = ctxTime
	}

	result.Messages = make([]Message, 0, len(units))
	for _, u := range units {
		result.Messages = append(result.Messages, u.msg)
	}

	pctx.Time = ctxTime
	return result, pctx
}

// ChronologicalIndices maps n units in capture order to chronological
// (oldest first) order for the given scan direction. This is the single
// place the direction contract is interpreted.
func ChronologicalIndices(n int, dir ScanDirection) []int {
	out := make([]int, n)
	if dir == DirectionDown {
		for i := range out {
			out[i] = i
		}
		return out
	}
	for i := range out {
		out[i] = n - 1 - i
	}
	return out
}

// classifyUnit runs the precedence cascade starting at bubble i. It returns
// the resulting message, the number of bubbles consumed (always >= 1), and
// whether the unit is a time separator. A panic inside any heuristic is
// contained here: the unit degrades to Unknown instead of aborting the
// batch.
func (p *Parser) classifyUnit(bubbles []*bubble, i, capW, capH int, medianArea float64) (msg Message, consumed int, separator bool) {
	b := bubbles[i]
	consumed = 1

	defer func() {
		if r := recover(); r != nil {
			msg = p.newMessage(b, TypeUnknown, b.content())
			msg.RawText = fmt.Sprintf("%s [classify error: %v]", b.rawText(), r)
			consumed = 1
			separator = false
		}
	}()

	lines := b.lines()

	// 1. System time separator.
	if isTimeSeparator(lines) {
		msg = p.newMessage(b, TypeSystem, b.content())
		msg.Sender = SenderSystem
		return msg, 1, true
	}

	run := sameSideRun(bubbles, i, maxAggregateBubbles)

	// 2. Merged image region.
	if k := tryMergeImage(bubbles, i, run, capW, capH, medianArea); k > 0 {
		merged := unionBubbles(bubbles, i, k)
		content := merged.content()
		if isGarbageText(content) {
			content = ""
		}
		return p.newMessage(merged, TypeImage, content), k, false
	}

	// 3. Merged share card.
	if k, card := tryMergeShare(bubbles, i, run); k > 0 {
		merged := unionBubbles(bubbles, i, k)
		msg = p.newMessage(merged, TypeShare, card.Title)
		msg.ShareCard = card
		return msg, k, false
	}

	// 4. Merged sentence continuation.
	if k := tryMergeText(bubbles, i, run); k > 0 {
		merged := unionBubbles(bubbles, i, k)
		quote, content := extractQuote(merged.lines())
		msg = p.newMessage(merged, TypeText, content)
		msg.Quote = quote
		return msg, k, false
	}

	// 5. Compact-card share layout.
	if k, card := tryCompactCard(bubbles, i, run); k > 0 {
		merged := unionBubbles(bubbles, i, k)
		msg = p.newMessage(merged, TypeShare, card.Title)
		msg.ShareCard = card
		return msg, k, false
	}

	// 6. Single-bubble fallback.
	return p.classifySingle(b, capW, capH, medianArea), 1, false
}

// classifySingle is cascade stage 6: sticker phrase, geometric media for
// blanked units, keyword hints, then plain text with quote extraction.
func (p *Parser) classifySingle(b *bubble, capW, capH int, medianArea float64) Message {
	content := b.content()
	if isGarbageText(content) {
		content = ""
	}

	if isStickerPhrase(content, p.extraSticker) {
		return p.newMessage(b, TypeSticker, content)
	}

	if content == "" {
		t := classifyEmptyMedia(b.box(), b.hint(), b.stats(), capW, capH, medianArea)
		return p.newMessage(b, t, "")
	}

	if shouldReclassifyAsImage(b.frags, content) {
		return p.newMessage(b, TypeImage, content)
	}

	if t := classifyByKeyword(content); t != TypeUnknown {
		msg := p.newMessage(b, t, content)
		if t == TypeSystem {
			msg.Sender = SenderSystem
		}
		return msg
	}

	quote, sanitized := extractQuote(b.lines())
	msg := p.newMessage(b, TypeText, sanitized)
	msg.Quote = quote
	return msg
}

// newMessage builds a message from a bubble with the shared fields filled.
// The ID stays empty so StableKey dedups on content identity.
func (p *Parser) newMessage(b *bubble, t MessageType, content string) Message {
	box := b.box()
	return Message{
		Sender:     b.sender,
		Content:    content,
		Type:       t,
		Confidence: b.avgConfidence(),
		RawText:    b.rawText(),
		Region:     &box,
	}
}
