// Package merge aligns transcription segments with resolved speaker turns
// by maximum temporal overlap, producing the final annotated output of an
// annotation request.
package merge

import (
	"strings"

	"github.com/MrWong99/diarserver/internal/speaker"
)

// unknownSpeaker is the sentinel label used when no turn covers a segment,
// or when no turns were supplied at all.
const unknownSpeaker = "UNKNOWN"

// Segment is one transcribed span of text, prior to speaker annotation.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// Annotated is one output segment: the transcribed text, its original
// timing, and the speaker label assigned by maximum overlap.
type Annotated struct {
	Text    string
	Start   float64
	End     float64
	Speaker string
}

// Merge produces one Annotated result per segment, preserving input order.
// Segment start/end are passed through untouched; text is whitespace-trimmed
// at the edges. If turns is empty, every segment is labeled UNKNOWN. The
// function is pure and holds no state.
func Merge(segments []Segment, turns []speaker.Turn) []Annotated {
	out := make([]Annotated, len(segments))
	for i, seg := range segments {
		out[i] = Annotated{
			Text:    strings.TrimSpace(seg.Text),
			Start:   seg.Start,
			End:     seg.End,
			Speaker: bestOverlapSpeaker(seg, turns),
		}
	}
	return out
}

// bestOverlapSpeaker finds the turn maximizing overlap with seg and returns
// its label, or UNKNOWN if no turn overlaps seg at all.
func bestOverlapSpeaker(seg Segment, turns []speaker.Turn) string {
	var (
		bestOverlap = 0.0
		bestLabel   = unknownSpeaker
		found       bool
	)
	for _, t := range turns {
		overlap := min(seg.End, t.End) - max(seg.Start, t.Start)
		if overlap < 0 {
			overlap = 0
		}
		if overlap > 0 && (!found || overlap > bestOverlap) {
			bestOverlap = overlap
			bestLabel = t.LocalLabel
			found = true
		}
	}
	return bestLabel
}
