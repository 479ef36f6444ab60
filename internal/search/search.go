package search

// Result is a single verse hit returned to the caller.
type Result struct {
	VerseID       string `json:"verseId"`
	BookTitle     string `json:"bookTitle"`
	ChapterNumber int    `json:"chapterNumber"`
	VerseNumber   int    `json:"verseNumber"`
	Snippet       string `json:"snippet"`
}

// Query describes a verse search request.
type Query struct {
	Text   string
	BookID string // empty = all books
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over verses.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// VerseRecord is the data we index per verse.
type VerseRecord struct {
	ID            string `json:"id"`
	BookID        string `json:"bookId"`
	BookTitle     string `json:"bookTitle"`
	ChapterNumber int    `json:"chapterNumber"`
	VerseNumber   int    `json:"verseNumber"`
	Text          string `json:"text"`
}
