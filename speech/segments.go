package speech

import "strings"

// segmentBook tracks the ordered segments of one session. At most the last
// segment is open (non-final); interim updates replace it in place.
type segmentBook struct {
	segs []Segment
}

func (b *segmentBook) open() bool {
	return len(b.segs) > 0 && !b.segs[len(b.segs)-1].Final
}

// apply folds one recognizer update into the book and reports whether the
// visible segments changed.
func (b *segmentBook) apply(u streamUpdate) bool {
	// the top-ranked alternative decides whether the segment has text
	if len(u.Alternatives) == 0 || strings.TrimSpace(u.Alternatives[0].Transcript) == "" {
		if b.open() {
			b.segs = b.segs[:len(b.segs)-1]
			return true
		}
		return false
	}

	alts := make([]Alternative, 0, len(u.Alternatives))
	for i, a := range u.Alternatives {
		t := strings.TrimSpace(a.Transcript)
		if t == "" && i > 0 {
			continue
		}
		alts = append(alts, Alternative{Transcript: t, Confidence: a.Confidence})
	}

	seg := Segment{Alternatives: alts, Final: u.IsFinal}
	if b.open() {
		b.segs[len(b.segs)-1] = seg
	} else {
		b.segs = append(b.segs, seg)
	}
	return true
}

func (b *segmentBook) finals() int {
	n := 0
	for _, s := range b.segs {
		if s.Final {
			n++
		}
	}
	return n
}

// snapshot copies the segments for delivery. Every segment after the first
// gets a leading space so that concatenating best transcripts reads as text.
func (b *segmentBook) snapshot() []Segment {
	out := make([]Segment, len(b.segs))
	for i, s := range b.segs {
		alts := make([]Alternative, len(s.Alternatives))
		copy(alts, s.Alternatives)
		if i > 0 {
			for j := range alts {
				alts[j].Transcript = " " + alts[j].Transcript
			}
		}
		out[i] = Segment{Alternatives: alts, Final: s.Final}
	}
	return out
}
