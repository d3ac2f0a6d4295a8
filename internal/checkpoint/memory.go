package checkpoint

import "fmt"

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	queues map[Queue][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[Queue][]string)}
}

func (s *MemoryStore) Enqueue(q Queue, url string) error {
	if url == "" {
		return fmt.Errorf("enqueue %s: empty url", q)
	}
	s.queues[q] = append(s.queues[q], url)
	return nil
}

func (s *MemoryStore) Drain(q Queue) ([]string, error) {
	return dedupe(append([]string(nil), s.queues[q]...)), nil
}

func (s *MemoryStore) Clear(q Queue) error {
	delete(s.queues, q)
	return nil
}

func (s *MemoryStore) Len(q Queue) (int, error) {
	urls, _ := s.Drain(q)
	return len(urls), nil
}
