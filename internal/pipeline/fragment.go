// Package pipeline reconstructs a structured chat transcript from noisy OCR
// text fragments captured from a scrolling chat window.
//
// One call to Parser.Parse consumes the fragments of a single screen capture
// and produces an ordered list of typed, attributed Messages. The pipeline is
// synchronous, stateless between calls, and never returns an error: malformed
// input degrades to Unknown-typed messages (or empty output), never to a
// crash. All cross-call state (the current time anchor) is threaded through
// an explicit ParseContext.
package pipeline

import "math"

// Rectangle is a pixel-space region with a top-left origin.
type Rectangle struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Area returns W*H, clamped at zero for degenerate boxes.
func (r Rectangle) Area() int {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// CenterX returns the horizontal midpoint.
func (r Rectangle) CenterX() float64 {
	return float64(r.X) + float64(r.W)/2
}

// Right returns X+W.
func (r Rectangle) Right() int { return r.X + r.W }

// Bottom returns Y+H.
func (r Rectangle) Bottom() int { return r.Y + r.H }

// Union returns the smallest rectangle covering both r and o.
func (r Rectangle) Union(o Rectangle) Rectangle {
	if r.Area() == 0 {
		return o
	}
	if o.Area() == 0 {
		return r
	}
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.Right(), o.Right())
	y2 := max(r.Bottom(), o.Bottom())
	return Rectangle{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Aspect returns W/H, or 0 for degenerate boxes.
func (r Rectangle) Aspect() float64 {
	if r.H <= 0 {
		return 0
	}
	return float64(r.W) / float64(r.H)
}

// KindHint is a coarse media hint attached upstream by the capture
// collaborator. It is advisory: the geometric heuristic may override it.
type KindHint string

const (
	HintNone    KindHint = ""
	HintText    KindHint = "text"
	HintImage   KindHint = "image"
	HintSticker KindHint = "sticker"
)

// CropStats carries optional precomputed pixel statistics for a fragment's
// crop. Pixel access is outside this pipeline; when the capture collaborator
// supplies these, the media heuristic uses them to reject solid-color text
// bubbles that were mis-hinted as media. Zero values mean "no evidence".
type CropStats struct {
	DominantColorRatio float64 `json:"dominant_color_ratio,omitempty" yaml:"dominant_color_ratio,omitempty"`
	PixelStddev        float64 `json:"pixel_stddev,omitempty" yaml:"pixel_stddev,omitempty"`
	EdgeDensity        float64 `json:"edge_density,omitempty" yaml:"edge_density,omitempty"`
	HasStats           bool    `json:"has_stats,omitempty" yaml:"has_stats,omitempty"`
}

// Fragment is one recognized text region from a single screen capture.
// Fragments are owned by the pipeline for the duration of one Parse call
// and are never mutated.
type Fragment struct {
	Text       string    `json:"text" yaml:"text"`
	Box        Rectangle `json:"box" yaml:"box"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	Hint       KindHint  `json:"hint,omitempty" yaml:"hint,omitempty"`
	Stats      CropStats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// captureExtent computes the capture's width and height as the maximum
// fragment extents. Used for the sender split line and the media heuristic.
func captureExtent(frags []Fragment) (w, h int) {
	for _, f := range frags {
		if r := f.Box.Right(); r > w {
			w = r
		}
		if b := f.Box.Bottom(); b > h {
			h = b
		}
	}
	return w, h
}

// stddev computes the population standard deviation of xs.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
