package checkpoint

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps all queues in one sqlite database. Same semantics as
// FileStore, for operators who prefer a single artifact over a directory
// of text files.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queue_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue TEXT NOT NULL,
		url TEXT NOT NULL,
		added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_queue_entries_queue ON queue_entries(queue);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Enqueue(q Queue, url string) error {
	if url == "" {
		return fmt.Errorf("enqueue %s: empty url", q)
	}
	_, err := s.db.Exec(
		`INSERT INTO queue_entries (queue, url) VALUES (?, ?)`,
		q.String(), url,
	)
	if err != nil {
		return fmt.Errorf("enqueue into %s: %w", q, err)
	}
	return nil
}

func (s *SQLiteStore) Drain(q Queue) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT url FROM queue_entries WHERE queue = ? ORDER BY id`, q.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", q, err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dedupe(urls), nil
}

func (s *SQLiteStore) Clear(q Queue) error {
	_, err := s.db.Exec(`DELETE FROM queue_entries WHERE queue = ?`, q.String())
	if err != nil {
		return fmt.Errorf("clear %s: %w", q, err)
	}
	return nil
}

func (s *SQLiteStore) Len(q Queue) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT url) FROM queue_entries WHERE queue = ?`, q.String(),
	).Scan(&count)
	return count, err
}
