package question

import "context"

// Store exposes question retrieval for HTTP handlers.
type Store interface {
	List() []Question
}

// MemoryStore implements Store with an in-memory slice, suitable for the
// built-in bank.
type MemoryStore struct {
	items []Question
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied questions.
func NewMemoryStore(items []Question) *MemoryStore {
	return &MemoryStore{items: append([]Question(nil), items...)}
}

// List returns the question sequence in presentation order.
func (s *MemoryStore) List() []Question {
	return append([]Question(nil), s.items...)
}

// FetchQuestions lets the store stand in for the external question bank.
func (s *MemoryStore) FetchQuestions(_ context.Context) ([]Question, error) {
	return s.List(), nil
}
