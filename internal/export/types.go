// Package export renders a reader's chapter study pack, the chapter text
// with their highlights marked inline plus their notes, as HTML or PDF.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Request contains parameters for an export operation
type Request struct {
	UserID       string
	ChapterID    string
	Format       Format
	IncludeNotes bool
}

// ChapterInfo holds chapter metadata for the export header
type ChapterInfo struct {
	ID        string
	BookTitle string
	Number    int
}

// VerseInfo holds one verse of the chapter body
type VerseInfo struct {
	ID     string
	Number int
	Text   string
}

// Span is a highlighted character range over a verse, half-open offsets
type Span struct {
	Start int
	End   int
	Color string
}

// NoteInfo holds a note attached to a verse in the chapter
type NoteInfo struct {
	VerseNumber int
	Content     string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
