package export

import (
	"context"
	"strings"
	"testing"
)

func TestRenderVerseHTML(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		spans    []Span
		expected string
	}{
		{
			name:     "no spans",
			text:     "In the beginning",
			spans:    nil,
			expected: "In the beginning",
		},
		{
			name:     "escapes markup in plain text",
			text:     "a < b & c",
			spans:    nil,
			expected: "a &lt; b &amp; c",
		},
		{
			name:     "single span",
			text:     "For God so loved the world",
			spans:    []Span{{Start: 11, End: 16, Color: "#FFEB3B"}},
			expected: `For God so <mark style="background-color: #FFEB3B">loved</mark> the world`,
		},
		{
			name: "two spans keep order",
			text: "abcdefghij",
			spans: []Span{
				{Start: 6, End: 8, Color: "#4CAF50"},
				{Start: 0, End: 2, Color: "#FFEB3B"},
			},
			expected: `<mark style="background-color: #FFEB3B">ab</mark>cdef<mark style="background-color: #4CAF50">gh</mark>ij`,
		},
		{
			name:     "span clamped to text length",
			text:     "short",
			spans:    []Span{{Start: 3, End: 99, Color: "#FFEB3B"}},
			expected: `sho<mark style="background-color: #FFEB3B">rt</mark>`,
		},
		{
			name:     "zero width span dropped",
			text:     "hello",
			spans:    []Span{{Start: 2, End: 2, Color: "#FFEB3B"}},
			expected: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(RenderVerseHTML(tt.text, tt.spans))
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"John 3", "John-3"},
		{"Psalms 23 (KJV)", "Psalms-23-KJV"},
		{"", "chapter"},
		{"!!!", "chapter"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.out {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}

type fakeDataStore struct {
	chapter ChapterInfo
	verses  []VerseInfo
	spans   map[string][]Span
	notes   []NoteInfo
}

func (f *fakeDataStore) GetChapter(ctx context.Context, chapterID string) (ChapterInfo, error) {
	return f.chapter, nil
}

func (f *fakeDataStore) ListVerses(ctx context.Context, chapterID string) ([]VerseInfo, error) {
	return f.verses, nil
}

func (f *fakeDataStore) HighlightSpans(ctx context.Context, userID, chapterID string) (map[string][]Span, error) {
	return f.spans, nil
}

func (f *fakeDataStore) ListNotes(ctx context.Context, userID, chapterID string) ([]NoteInfo, error) {
	return f.notes, nil
}

func (f *fakeDataStore) GetReaderName(ctx context.Context, userID string) (string, error) {
	return "Alma Reader", nil
}

func newFakeStore() *fakeDataStore {
	return &fakeDataStore{
		chapter: ChapterInfo{ID: "jn-3", BookTitle: "John", Number: 3},
		verses: []VerseInfo{
			{ID: "jn-3-16", Number: 16, Text: "For God so loved the world"},
			{ID: "jn-3-17", Number: 17, Text: "For God sent not his Son"},
		},
		spans: map[string][]Span{
			"jn-3-16": {{Start: 11, End: 16, Color: "#FFEB3B"}},
		},
		notes: []NoteInfo{{VerseNumber: 16, Content: "cross reference Romans 5:8"}},
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(newFakeStore())

	result, err := svc.Export(context.Background(), Request{
		UserID:       "usr_1",
		ChapterID:    "jn-3",
		Format:       FormatHTML,
		IncludeNotes: true,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if result.Filename != "John-3.html" {
		t.Errorf("filename = %q", result.Filename)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("mime type = %q", result.MimeType)
	}

	html := string(result.Data)
	if !strings.Contains(html, `<mark style="background-color: #FFEB3B">loved</mark>`) {
		t.Error("highlighted span missing from output")
	}
	if !strings.Contains(html, "For God sent not his Son") {
		t.Error("unhighlighted verse missing from output")
	}
	if !strings.Contains(html, "cross reference Romans 5:8") {
		t.Error("note missing from output")
	}
	if !strings.Contains(html, "Alma Reader") {
		t.Error("reader name missing from output")
	}
}

func TestExportHTMLWithoutNotes(t *testing.T) {
	svc := NewService(newFakeStore())

	result, err := svc.Export(context.Background(), Request{
		UserID:    "usr_1",
		ChapterID: "jn-3",
		Format:    FormatHTML,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(string(result.Data), "cross reference") {
		t.Error("notes included despite IncludeNotes=false")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(newFakeStore())

	if _, err := svc.Export(context.Background(), Request{ChapterID: "jn-3", Format: "docx"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
