package pipeline

// splitLine computes the x coordinate dividing the two conversation sides.
//
// Computed once per capture and constant for every bubble in it: a caller
// override wins; otherwise the capture width is approximated as the maximum
// fragment right edge and the line sits at half of it.
func splitLine(frags []Fragment, override int) float64 {
	if override > 0 {
		return float64(override)
	}
	w, _ := captureExtent(frags)
	return float64(w) / 2
}

// assignSenders labels each bubble self or other against the split line.
// A bubble whose fragment-weighted horizontal center is at or right of the
// line belongs to self; the rest belong to the other side. System bubbles
// are relabeled later by the classification cascade.
func assignSenders(bubbles []*bubble, splitX float64) {
	for _, b := range bubbles {
		if b.weightedCenterX() >= splitX {
			b.sender = SenderSelf
		} else {
			b.sender = SenderOther
		}
	}
}
