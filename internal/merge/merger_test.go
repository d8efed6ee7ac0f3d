package merge

import (
	"testing"

	"github.com/MrWong99/diarserver/internal/speaker"
)

func TestMerge_EmptyTurns_AllUnknown(t *testing.T) {
	segs := []Segment{{Text: "hello", Start: 0, End: 1}, {Text: "world", Start: 1, End: 2}}
	out := Merge(segs, nil)

	if len(out) != len(segs) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(segs))
	}
	for _, a := range out {
		if a.Speaker != "UNKNOWN" {
			t.Errorf("speaker = %q, want UNKNOWN", a.Speaker)
		}
	}
}

// S6 — merge overlap.
func TestMerge_S6_MaximumOverlapWins(t *testing.T) {
	segs := []Segment{{Text: "  hi there  ", Start: 1.0, End: 3.0}}
	turns := []speaker.Turn{
		{LocalLabel: "SPEAKER_00", Start: 0.0, End: 2.0},
		{LocalLabel: "SPEAKER_01", Start: 1.8, End: 4.0},
	}

	out := Merge(segs, turns)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Speaker != "SPEAKER_01" {
		t.Errorf("speaker = %q, want SPEAKER_01", out[0].Speaker)
	}
	if out[0].Text != "hi there" {
		t.Errorf("text = %q, want trimmed %q", out[0].Text, "hi there")
	}
	if out[0].Start != 1.0 || out[0].End != 3.0 {
		t.Errorf("timing altered: start=%v end=%v", out[0].Start, out[0].End)
	}
}

func TestMerge_NoPositiveOverlap_Unknown(t *testing.T) {
	segs := []Segment{{Text: "x", Start: 10.0, End: 11.0}}
	turns := []speaker.Turn{{LocalLabel: "SPEAKER_00", Start: 0.0, End: 1.0}}

	out := Merge(segs, turns)
	if out[0].Speaker != "UNKNOWN" {
		t.Errorf("speaker = %q, want UNKNOWN", out[0].Speaker)
	}
}

func TestMerge_PreservesOrderAndLength(t *testing.T) {
	segs := make([]Segment, 5)
	for i := range segs {
		segs[i] = Segment{Text: "seg", Start: float64(i), End: float64(i) + 1}
	}
	out := Merge(segs, nil)
	if len(out) != len(segs) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(segs))
	}
	for i, a := range out {
		if a.Start != segs[i].Start || a.End != segs[i].End {
			t.Errorf("segment %d timing mismatch: got %v-%v, want %v-%v", i, a.Start, a.End, segs[i].Start, segs[i].End)
		}
	}
}

func TestMerge_ZeroLengthSegmentDoesNotPanic(t *testing.T) {
	segs := []Segment{{Text: "", Start: 0, End: 0}}
	turns := []speaker.Turn{{LocalLabel: "SPEAKER_00", Start: 0, End: 0}}

	out := Merge(segs, turns)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
}
