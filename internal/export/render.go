package export

import (
	"html/template"
	"sort"
	"strings"
)

// RenderVerseHTML escapes the verse text and wraps each highlighted span in
// a <mark> tag carrying its color. Spans are character offsets, so slicing
// happens on runes rather than bytes. Overlapping or out-of-range spans are
// clamped; zero-width spans are dropped.
func RenderVerseHTML(text string, spans []Span) template.HTML {
	runes := []rune(text)
	if len(spans) == 0 {
		return template.HTML(template.HTMLEscapeString(text))
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	cursor := 0
	for _, span := range sorted {
		start, end := span.Start, span.End
		if start < cursor {
			start = cursor
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start >= end {
			continue
		}
		b.WriteString(template.HTMLEscapeString(string(runes[cursor:start])))
		b.WriteString(`<mark style="background-color: ` + template.HTMLEscapeString(span.Color) + `">`)
		b.WriteString(template.HTMLEscapeString(string(runes[start:end])))
		b.WriteString(`</mark>`)
		cursor = end
	}
	b.WriteString(template.HTMLEscapeString(string(runes[cursor:])))
	return template.HTML(b.String())
}
