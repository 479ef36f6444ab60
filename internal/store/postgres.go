package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, photo_url)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.PhotoURL)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, photo_url
		FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, photo_url
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// ---- refresh sessions (Postgres fallback when Redis is not configured) ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.photo_url
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---- scripture reference data ----

func (s *PostgresStore) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.abbreviation, b.sort_order,
			(SELECT COUNT(*) FROM chapters c WHERE c.book_id = b.id)
		FROM books b
		ORDER BY b.sort_order
	`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	items := make([]Book, 0)
	for rows.Next() {
		var item Book
		if err := rows.Scan(&item.ID, &item.Title, &item.Abbreviation, &item.SortOrder, &item.ChapterCount); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertBook(ctx context.Context, book Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, abbreviation, sort_order)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, book.ID, book.Title, book.Abbreviation, book.SortOrder)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertChapter(ctx context.Context, chapter Chapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, book_id, number)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, chapter.ID, chapter.BookID, chapter.Number)
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertVerse(ctx context.Context, verse Verse) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verses (id, chapter_id, number, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, verse.ID, verse.ChapterID, verse.Number, verse.Text)
	if err != nil {
		return fmt.Errorf("insert verse: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBook(ctx context.Context, bookID string) (Book, error) {
	var item Book
	err := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.title, b.abbreviation, b.sort_order,
			(SELECT COUNT(*) FROM chapters c WHERE c.book_id = b.id)
		FROM books b WHERE b.id=$1
	`, bookID).Scan(&item.ID, &item.Title, &item.Abbreviation, &item.SortOrder, &item.ChapterCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListChapters(ctx context.Context, bookID string) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.book_id, c.number,
			(SELECT COUNT(*) FROM verses v WHERE v.chapter_id = c.id)
		FROM chapters c
		WHERE c.book_id=$1
		ORDER BY c.number
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	items := make([]Chapter, 0)
	for rows.Next() {
		var item Chapter
		if err := rows.Scan(&item.ID, &item.BookID, &item.Number, &item.VerseCount); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetChapter(ctx context.Context, chapterID string) (Chapter, error) {
	var item Chapter
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.book_id, c.number,
			(SELECT COUNT(*) FROM verses v WHERE v.chapter_id = c.id)
		FROM chapters c
		WHERE c.id=$1
	`, chapterID).Scan(&item.ID, &item.BookID, &item.Number, &item.VerseCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Chapter{}, ErrNotFound
	}
	if err != nil {
		return Chapter{}, fmt.Errorf("get chapter: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListVerses(ctx context.Context, chapterID string) ([]Verse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, number, text
		FROM verses
		WHERE chapter_id=$1
		ORDER BY number
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list verses: %w", err)
	}
	defer rows.Close()

	items := make([]Verse, 0)
	for rows.Next() {
		var item Verse
		if err := rows.Scan(&item.ID, &item.ChapterID, &item.Number, &item.Text); err != nil {
			return nil, fmt.Errorf("scan verse: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verses: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetVerse(ctx context.Context, verseID string) (Verse, error) {
	var item Verse
	err := s.db.QueryRowContext(ctx, `SELECT id, chapter_id, number, text FROM verses WHERE id=$1`, verseID).
		Scan(&item.ID, &item.ChapterID, &item.Number, &item.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return Verse{}, ErrNotFound
	}
	if err != nil {
		return Verse{}, fmt.Errorf("get verse: %w", err)
	}
	return item, nil
}

// ---- highlights (document-store contract for the sync coordinator) ----

func (s *PostgresStore) HighlightsByUser(ctx context.Context, userID string) ([]Highlight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, verse_id, user_id, start_index, end_index, color, created_at
		FROM highlights
		WHERE user_id=$1
		ORDER BY verse_id, start_index
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	defer rows.Close()

	items := make([]Highlight, 0)
	for rows.Next() {
		var item Highlight
		if err := rows.Scan(&item.ID, &item.VerseID, &item.UserID, &item.StartIndex, &item.EndIndex, &item.Color, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan highlight: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate highlights: %w", err)
	}
	return items, nil
}

// ReplaceUserHighlights deletes every highlight owned by userID and inserts
// the given set in one transaction, returning the inserted rows with their
// database-assigned ids. All-or-nothing: any failure rolls the whole batch
// back.
func (s *PostgresStore) ReplaceUserHighlights(ctx context.Context, userID string, highlights []Highlight) ([]Highlight, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace highlights: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM highlights WHERE user_id=$1`, userID); err != nil {
		return nil, fmt.Errorf("delete highlights: %w", err)
	}

	inserted := make([]Highlight, 0, len(highlights))
	for _, h := range highlights {
		row := h
		row.UserID = userID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO highlights (verse_id, user_id, start_index, end_index, color)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, row.VerseID, row.UserID, row.StartIndex, row.EndIndex, row.Color).Scan(&row.ID, &row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert highlight: %w", err)
		}
		inserted = append(inserted, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace highlights: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) DeleteHighlight(ctx context.Context, highlightID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM highlights WHERE id=$1 AND user_id=$2`, highlightID, userID)
	if err != nil {
		return fmt.Errorf("delete highlight: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateHighlightColor(ctx context.Context, highlightID, userID, color string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE highlights SET color=$3 WHERE id=$1 AND user_id=$2`, highlightID, userID, color)
	if err != nil {
		return fmt.Errorf("update highlight color: %w", err)
	}
	return nil
}

// ---- notes ----

func (s *PostgresStore) InsertNote(ctx context.Context, note Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, verse_id, user_id, content, image_key)
		VALUES ($1, $2, $3, $4, $5)
	`, note.ID, note.VerseID, note.UserID, note.Content, note.ImageKey)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	var note Note
	err := s.db.QueryRowContext(ctx, `
		SELECT id, verse_id, user_id, content, image_key, created_at, updated_at
		FROM notes WHERE id=$1
	`, noteID).Scan(&note.ID, &note.VerseID, &note.UserID, &note.Content, &note.ImageKey, &note.CreatedAt, &note.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

func (s *PostgresStore) ListNotesByUser(ctx context.Context, userID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, verse_id, user_id, content, image_key, created_at, updated_at
		FROM notes
		WHERE user_id=$1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.VerseID, &note.UserID, &note.Content, &note.ImageKey, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetNoteImage(ctx context.Context, noteID, userID, imageKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET image_key=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2
	`, noteID, userID, imageKey)
	if err != nil {
		return false, fmt.Errorf("set note image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set note image rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, noteID, userID, content string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET content=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2
	`, noteID, userID, content)
	if err != nil {
		return false, fmt.Errorf("update note: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, noteID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1 AND user_id=$2`, noteID, userID)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---- study groups ----

func (s *PostgresStore) InsertGroup(ctx context.Context, group StudyGroup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_groups (id, name, description, owner_id)
		VALUES ($1, $2, $3, $4)
	`, group.ID, group.Name, group.Description, group.OwnerID)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (StudyGroup, error) {
	var group StudyGroup
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner_id, created_at FROM study_groups WHERE id=$1
	`, groupID).Scan(&group.ID, &group.Name, &group.Description, &group.OwnerID, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StudyGroup{}, ErrNotFound
	}
	if err != nil {
		return StudyGroup{}, fmt.Errorf("get group: %w", err)
	}
	return group, nil
}

func (s *PostgresStore) ListGroupsForUser(ctx context.Context, userID string) ([]StudyGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.description, g.owner_id, g.created_at
		FROM study_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id=$1
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	items := make([]StudyGroup, 0)
	for rows.Next() {
		var group StudyGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.OwnerID, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		items = append(items, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.group_id, m.user_id, u.display_name, m.joined_at
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id=$1
		ORDER BY m.joined_at
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	items := make([]GroupMember, 0)
	for rows.Next() {
		var member GroupMember
		if err := rows.Scan(&member.GroupID, &member.UserID, &member.DisplayName, &member.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		items = append(items, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return items, nil
}

// ---- study sessions (stats) ----

func (s *PostgresStore) InsertStudySession(ctx context.Context, session StudySession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_sessions (id, user_id, started_at, verses_read)
		VALUES ($1, $2, $3, $4)
	`, session.ID, session.UserID, session.StartedAt, session.VersesRead)
	if err != nil {
		return fmt.Errorf("insert study session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishStudySession(ctx context.Context, sessionID, userID string, endedAt time.Time, versesRead int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE study_sessions SET ended_at=$3, verses_read=$4
		WHERE id=$1 AND user_id=$2 AND ended_at IS NULL
	`, sessionID, userID, endedAt, versesRead)
	if err != nil {
		return false, fmt.Errorf("finish study session: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) ListStudySessions(ctx context.Context, userID string, limit int) ([]StudySession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, started_at, ended_at, verses_read
		FROM study_sessions
		WHERE user_id=$1
		ORDER BY started_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list study sessions: %w", err)
	}
	defer rows.Close()

	items := make([]StudySession, 0)
	for rows.Next() {
		var session StudySession
		if err := rows.Scan(&session.ID, &session.UserID, &session.StartedAt, &session.EndedAt, &session.VersesRead); err != nil {
			return nil, fmt.Errorf("scan study session: %w", err)
		}
		items = append(items, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate study sessions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) StudyTotalsForUser(ctx context.Context, userID string) (StudyTotals, error) {
	const query = `
		SELECT COUNT(*),
			COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at)) / 60)::INT, 0),
			COALESCE(SUM(verses_read), 0),
			COUNT(DISTINCT DATE(started_at))
		FROM study_sessions
		WHERE user_id=$1 AND ended_at IS NOT NULL
	`
	var totals StudyTotals
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&totals.Sessions, &totals.Minutes, &totals.VersesRead, &totals.DistinctDays)
	if err != nil {
		return StudyTotals{}, fmt.Errorf("study totals: %w", err)
	}
	return totals, nil
}
