package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search over the
// verses table. It is the fallback when Meilisearch is not configured or
// unreachable.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "v.text_tsv @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.BookID != "" {
		where += " AND b.id = $2"
		args = append(args, q.BookID)
	}

	query := fmt.Sprintf(`
		SELECT v.id, b.title, c.number, v.number,
			ts_headline('english', v.text, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30'),
			COUNT(*) OVER ()
		FROM verses v
		JOIN chapters c ON c.id = v.chapter_id
		JOIN books b ON b.id = c.book_id
		WHERE %s
		ORDER BY ts_rank(v.text_tsv, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.VerseID, &r.BookTitle, &r.ChapterNumber, &r.VerseNumber, &r.Snippet, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgfts iterate: %w", err)
	}
	return results, total, nil
}
