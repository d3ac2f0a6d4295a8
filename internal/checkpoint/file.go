package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps each queue as a plain UTF-8 text file, one URL per line,
// inside a single directory. The files double as the operator's review
// lists, so they stay human-readable.
type FileStore struct {
	dir string
}

// NewFileStore creates the queue directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(q Queue) string {
	return filepath.Join(s.dir, q.String()+".txt")
}

// Path exposes the backing file location for operator-facing reports.
func (s *FileStore) Path(q Queue) string { return s.path(q) }

func (s *FileStore) Enqueue(q Queue, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("enqueue %s: empty url", q)
	}
	f, err := os.OpenFile(s.path(q), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s queue: %w", q, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, url); err != nil {
		return fmt.Errorf("append to %s queue: %w", q, err)
	}
	return nil
}

func (s *FileStore) Drain(q Queue) ([]string, error) {
	f, err := os.Open(s.path(q))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s queue: %w", q, err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			urls = append(urls, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s queue: %w", q, err)
	}
	return dedupe(urls), nil
}

func (s *FileStore) Clear(q Queue) error {
	if err := os.Remove(s.path(q)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear %s queue: %w", q, err)
	}
	return nil
}

func (s *FileStore) Len(q Queue) (int, error) {
	urls, err := s.Drain(q)
	if err != nil {
		return 0, err
	}
	return len(urls), nil
}
