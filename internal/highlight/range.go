// Package highlight implements the realtime highlight model: the range
// algebra for colored spans over verse text, the per-session in-memory
// store of those spans, and the coordinator that reconciles the in-memory
// copy against durable storage.
package highlight

// Highlight is a colored character span over one verse's text. StartIndex
// and EndIndex are half-open offsets into the verse's raw text. ID is empty
// until the highlight has been persisted at least once; UserID is set at
// creation and never changed afterwards.
type Highlight struct {
	ID         string `json:"id,omitempty"`
	VerseID    string `json:"verseId"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	Color      string `json:"color"`
	UserID     string `json:"userId"`
}

// Palette is the fixed set of highlight colors offered by the app.
var Palette = []string{
	"#FFEB3B", // yellow
	"#A5D6A7", // green
	"#90CAF9", // blue
	"#F48FB1", // pink
	"#FFCC80", // orange
}

// ValidColor reports whether color is one of the palette entries.
func ValidColor(color string) bool {
	for _, c := range Palette {
		if c == color {
			return true
		}
	}
	return false
}

// Normalize orders a selection's endpoints. A normalized range with
// start == end is an empty selection; callers must treat it as a no-op and
// never build a Highlight from it.
func Normalize(a, b int) (start, end int) {
	if a > b {
		return b, a
	}
	return a, b
}

// Overlaps reports whether the span [start, end) intersects the highlight's
// own span. Touching at a boundary (end == h.StartIndex) is not an overlap.
func (h Highlight) Overlaps(start, end int) bool {
	return start < h.EndIndex && end > h.StartIndex
}

// ReplaceOverlapping removes every highlight in existing that overlaps
// newHighlight's span, then appends newHighlight. An overlapped highlight is
// dropped whole, never clipped to a residual sub-range.
func ReplaceOverlapping(existing []Highlight, newHighlight Highlight) []Highlight {
	kept := make([]Highlight, 0, len(existing)+1)
	for _, h := range existing {
		if h.Overlaps(newHighlight.StartIndex, newHighlight.EndIndex) {
			continue
		}
		kept = append(kept, h)
	}
	return append(kept, newHighlight)
}

// sameSpan is the identity used for not-yet-persisted highlights: delete and
// remote duplicate suppression match on range and owner, not on ID.
func (h Highlight) sameSpan(other Highlight) bool {
	return h.VerseID == other.VerseID &&
		h.StartIndex == other.StartIndex &&
		h.EndIndex == other.EndIndex &&
		h.UserID == other.UserID
}
