package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	PhotoURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Book struct {
	ID           string
	Title        string
	Abbreviation string
	SortOrder    int
	ChapterCount int
}

type Chapter struct {
	ID         string
	BookID     string
	Number     int
	VerseCount int
}

type Verse struct {
	ID        string
	ChapterID string
	Number    int
	Text      string
}

// Highlight is a colored character span over one verse's text. StartIndex and
// EndIndex are half-open offsets into the verse text. The ID is assigned by
// the database on insert; highlights created in a live session carry an empty
// ID until they have been persisted once.
type Highlight struct {
	ID         string
	VerseID    string
	UserID     string
	StartIndex int
	EndIndex   int
	Color      string
	CreatedAt  time.Time
}

type Note struct {
	ID        string
	VerseID   string
	UserID    string
	Content   string
	ImageKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type StudyGroup struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   time.Time
}

type GroupMember struct {
	GroupID     string
	UserID      string
	DisplayName string
	JoinedAt    time.Time
}

// StudySession is one timed reading sitting, recorded for plain per-user
// totals on the profile page.
type StudySession struct {
	ID         string
	UserID     string
	StartedAt  time.Time
	EndedAt    *time.Time
	VersesRead int
}

type StudyTotals struct {
	Sessions     int
	Minutes      int
	VersesRead   int
	DistinctDays int
}
