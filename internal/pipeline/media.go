package pipeline

import "strings"

// Geometric thresholds for deciding what an empty-text unit is. The numbers
// come from measured WeChat bubble layouts at 100% scaling.
const (
	mediaMinSide      = 10
	mediaMinRelArea   = 0.0001
	mediaMinAbsArea   = 100
	stickerMinAspect  = 0.75
	stickerMaxAspect  = 1.35
	stickerMinSide    = 40
	stickerMaxSide    = 340
	stickerMaxExtent  = 0.38 // of min(capture w, capture h)
	stickerMaxRelArea = 0.10
	imageMedianFactor = 2.0 // times the median text-bubble area
	imageMinAspect    = 0.2
	imageMaxAspect    = 5.0
	imageMinSide      = 30
	imageMinArea      = 900

	// Solid-color text bubbles mis-hinted as media.
	solidBubbleDominantRatio = 0.95
	solidBubbleMaxStddev     = 3.0
	flatRegionMaxEdgeDensity = 0.01

	// Non-empty text that is really a poster-style image.
	oversizedLineHeight  = 60
	sparseMinSpan        = 150
	sparseMinAvgSpacing  = 60
	sparseMaxLines       = 10
	shortTextMaxRunes    = 30
	shortTextMinArea     = 40000
	outrightImageSpanMin = 300
)

// classifyEmptyMedia decides Sticker vs Image vs Unknown for a unit whose
// text was empty (or blanked by the garbage filter), from geometry alone.
//
// medianTextArea is the median bounding-box area of this capture's
// text-carrying bubbles; zero means no reference exists and conservative
// absolute minimums apply instead.
func classifyEmptyMedia(box Rectangle, hint KindHint, stats CropStats, capW, capH int, medianTextArea float64) MessageType {
	w, h := box.W, box.H
	if min(w, h) < mediaMinSide {
		return TypeUnknown
	}

	area := float64(box.Area())
	capArea := float64(capW) * float64(capH)
	relArea := 0.0
	if capArea > 0 {
		relArea = area / capArea
	}
	if relArea < mediaMinRelArea && area < mediaMinAbsArea {
		return TypeUnknown
	}

	// An upstream media hint is trusted unless the crop is evidently a
	// solid-color text bubble or a flat region.
	if hint == HintSticker || hint == HintImage {
		if looksLikeTextBubble(stats) {
			return TypeUnknown
		}
		if hint == HintSticker {
			return TypeSticker
		}
		return TypeImage
	}

	aspect := box.Aspect()
	maxExtent := float64(max(w, h))
	capMin := float64(min(capW, capH))

	if aspect >= stickerMinAspect && aspect <= stickerMaxAspect &&
		min(w, h) >= stickerMinSide && min(w, h) <= stickerMaxSide &&
		(capMin <= 0 || maxExtent <= stickerMaxExtent*capMin) &&
		relArea <= stickerMaxRelArea {
		return TypeSticker
	}

	if medianTextArea > 0 {
		if area >= imageMedianFactor*medianTextArea {
			return TypeImage
		}
	} else if aspect >= imageMinAspect && aspect <= imageMaxAspect &&
		min(w, h) >= imageMinSide && area >= imageMinArea {
		return TypeImage
	}

	return TypeUnknown
}

// looksLikeTextBubble reports whether crop statistics indicate a plain
// solid-color chat bubble rather than real media. Absent stats mean no
// rejection evidence.
func looksLikeTextBubble(stats CropStats) bool {
	if !stats.HasStats {
		return false
	}
	if stats.DominantColorRatio > solidBubbleDominantRatio && stats.PixelStddev < solidBubbleMaxStddev {
		return true
	}
	return stats.EdgeDensity > 0 && stats.EdgeDensity < flatRegionMaxEdgeDensity
}

// shouldReclassifyAsImage reports whether a unit with recognized text is
// better treated as an image: oversized poster fonts, sparse line layout,
// a short caption inside a very large region, or an outright tall span.
func shouldReclassifyAsImage(frags []Fragment, content string) bool {
	if len(frags) == 0 {
		return false
	}

	var box Rectangle
	maxLineH := 0
	lines := 0
	for _, f := range frags {
		box = box.Union(f.Box)
		if f.Box.H > maxLineH {
			maxLineH = f.Box.H
		}
		if strings.TrimSpace(f.Text) != "" {
			lines++
		}
	}
	if maxLineH > oversizedLineHeight {
		return true
	}

	span := box.H
	if span > outrightImageSpanMin {
		return true
	}

	if span > sparseMinSpan && lines <= sparseMaxLines && lines > 0 {
		if float64(span)/float64(lines) > sparseMinAvgSpacing {
			return true
		}
	}

	if len([]rune(content)) < shortTextMaxRunes && box.Area() > shortTextMinArea {
		return true
	}
	return false
}

// medianTextBubbleArea computes the median bounding-box area across bubbles
// that still carry text, as the size reference for the image heuristic.
func medianTextBubbleArea(bubbles []*bubble) float64 {
	var areas []float64
	for _, b := range bubbles {
		if b.content() == "" {
			continue
		}
		if a := b.box().Area(); a > 0 {
			areas = append(areas, float64(a))
		}
	}
	if len(areas) == 0 {
		return 0
	}
	// Insertion sort keeps this allocation-free for the few dozen bubbles a
	// capture produces.
	for i := 1; i < len(areas); i++ {
		for j := i; j > 0 && areas[j] < areas[j-1]; j-- {
			areas[j], areas[j-1] = areas[j-1], areas[j]
		}
	}
	n := len(areas)
	if n%2 == 1 {
		return areas[n/2]
	}
	return (areas[n/2-1] + areas[n/2]) / 2
}
