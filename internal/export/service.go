package export

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetChapter(ctx context.Context, chapterID string) (ChapterInfo, error)
	ListVerses(ctx context.Context, chapterID string) ([]VerseInfo, error)
	// HighlightSpans returns the user's highlight spans for the chapter,
	// keyed by verse ID.
	HighlightSpans(ctx context.Context, userID, chapterID string) (map[string][]Span, error)
	ListNotes(ctx context.Context, userID, chapterID string) ([]NoteInfo, error)
	GetReaderName(ctx context.Context, userID string) (string, error)
}

// Service provides chapter study pack export
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a study pack in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	chapter, err := s.store.GetChapter(ctx, req.ChapterID)
	if err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}

	verses, err := s.store.ListVerses(ctx, req.ChapterID)
	if err != nil {
		return nil, fmt.Errorf("list verses: %w", err)
	}

	spans, err := s.store.HighlightSpans(ctx, req.UserID, req.ChapterID)
	if err != nil {
		return nil, fmt.Errorf("load highlights: %w", err)
	}

	readerName, err := s.store.GetReaderName(ctx, req.UserID)
	if err != nil {
		readerName = ""
	}

	data := TemplateData{
		BookTitle:     chapter.BookTitle,
		ChapterNumber: chapter.Number,
		ReaderName:    readerName,
		GeneratedAt:   time.Now(),
		Verses:        make([]TemplateVerse, 0, len(verses)),
		Notes:         []TemplateNote{},
	}

	for _, v := range verses {
		data.Verses = append(data.Verses, TemplateVerse{
			Number: v.Number,
			HTML:   RenderVerseHTML(v.Text, spans[v.ID]),
		})
	}

	if req.IncludeNotes {
		notes, err := s.store.ListNotes(ctx, req.UserID, req.ChapterID)
		if err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		for _, n := range notes {
			data.Notes = append(data.Notes, TemplateNote{
				VerseNumber: n.VerseNumber,
				Content:     n.Content,
			})
		}
	}

	html, err := RenderChapterHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := fmt.Sprintf("%s %d", chapter.BookTitle, chapter.Number)
	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// sanitizeFilename creates a safe filename from a title
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		case r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "chapter"
	}
	return result
}
