package highlight

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		a, b       int
		start, end int
	}{
		{5, 12, 5, 12},
		{12, 5, 5, 12},
		{0, 0, 0, 0},
		{7, 7, 7, 7},
	}
	for _, tc := range cases {
		start, end := Normalize(tc.a, tc.b)
		if start != tc.start || end != tc.end {
			t.Errorf("Normalize(%d, %d) = (%d, %d), want (%d, %d)", tc.a, tc.b, start, end, tc.start, tc.end)
		}
	}
}

func TestOverlaps(t *testing.T) {
	h := Highlight{StartIndex: 2, EndIndex: 8}

	cases := []struct {
		name       string
		start, end int
		want       bool
	}{
		{"fully contained", 3, 5, true},
		{"partial at left edge", 0, 3, true},
		{"partial at right edge", 7, 10, true},
		{"fully containing", 0, 10, true},
		{"identical", 2, 8, true},
		{"touching left boundary", 0, 2, false},
		{"touching right boundary", 8, 10, false},
		{"disjoint before", 0, 1, false},
		{"disjoint after", 9, 12, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.Overlaps(tc.start, tc.end); got != tc.want {
				t.Errorf("Overlaps(%d, %d) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestReplaceOverlappingDropsWholeHighlights(t *testing.T) {
	h1 := Highlight{VerseID: "v1", StartIndex: 2, EndIndex: 8, Color: "#FFEB3B", UserID: "u1"}
	h2 := Highlight{VerseID: "v1", StartIndex: 5, EndIndex: 10, Color: "#A5D6A7", UserID: "u1"}

	result := ReplaceOverlapping([]Highlight{h1}, h2)
	if len(result) != 1 {
		t.Fatalf("expected exactly the new highlight, got %d entries: %+v", len(result), result)
	}
	// Strict replace: no residual [2,5) clipping of h1.
	if result[0] != h2 {
		t.Errorf("expected %+v, got %+v", h2, result[0])
	}
}

func TestReplaceOverlappingKeepsDisjoint(t *testing.T) {
	existing := []Highlight{
		{StartIndex: 0, EndIndex: 2},
		{StartIndex: 4, EndIndex: 6},
		{StartIndex: 10, EndIndex: 14},
	}
	newH := Highlight{StartIndex: 4, EndIndex: 8}

	result := ReplaceOverlapping(existing, newH)
	if len(result) != 3 {
		t.Fatalf("expected 3 highlights, got %d", len(result))
	}
	for _, h := range result {
		if h.StartIndex == 4 && h.EndIndex == 6 {
			t.Errorf("overlapped highlight [4,6) survived: %+v", result)
		}
	}
}

func TestValidColor(t *testing.T) {
	for _, c := range Palette {
		if !ValidColor(c) {
			t.Errorf("palette color %s rejected", c)
		}
	}
	if ValidColor("#123456") {
		t.Error("off-palette color accepted")
	}
	if ValidColor("") {
		t.Error("empty color accepted")
	}
}
