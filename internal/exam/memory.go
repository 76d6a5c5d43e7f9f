package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps questions and attempts in process. It backs tests and offline demos.
type MemoryStore struct {
	mu        sync.RWMutex
	questions map[string]Question
	attempts  map[string]Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: map[string]Question{},
		attempts:  map[string]Attempt{},
	}
}

// --- questions ---

func (m *MemoryStore) PutQuestion(_ context.Context, q Question) error {
	if q.ID == "" {
		return fmt.Errorf("question id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q.Options = append([]string(nil), q.Options...)
	m.questions[q.ID] = q
	return nil
}

func (m *MemoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *MemoryStore) DeleteQuestion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	delete(m.questions, id)
	return nil
}

func (m *MemoryStore) ListQuestions(_ context.Context, examType ExamType) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Question{}
	for _, q := range m.questions {
		if q.ExamType == examType {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetQuestionsByIDs(_ context.Context, ids []string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *MemoryStore) CountByExamType(_ context.Context) (map[ExamType]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[ExamType]int{}
	for _, t := range ExamTypes {
		out[t] = 0
	}
	for _, q := range m.questions {
		out[q.ExamType]++
	}
	return out, nil
}

// --- attempts ---

func (m *MemoryStore) Create(_ context.Context, a Attempt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attempts {
		if existing.UserID == a.UserID && existing.ExamType == a.ExamType && !existing.Finalized() {
			return "", fmt.Errorf("user %q already has a %s attempt in progress: %w", a.UserID, a.ExamType, ErrConflict)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a = a.clone()
	a.Version = 1
	m.attempts[a.ID] = a
	return a.ID, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %q: %w", id, ErrNotFound)
	}
	return a.clone(), nil
}

func (m *MemoryStore) FindInProgress(_ context.Context, userID string, examType ExamType) (Attempt, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.UserID == userID && a.ExamType == examType && !a.Finalized() {
			return a.clone(), true, nil
		}
	}
	return Attempt{}, false, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, patch AttemptPatch, pre Precondition) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %q: %w", id, ErrNotFound)
	}
	if pre.InProgress && a.Finalized() {
		return Attempt{}, fmt.Errorf("attempt %q is finalized: %w", id, ErrConflict)
	}
	if pre.Version > 0 && a.Version != pre.Version {
		return Attempt{}, fmt.Errorf("attempt %q changed (version %d, want %d): %w", id, a.Version, pre.Version, ErrConflict)
	}
	a = a.clone()
	for k, v := range patch.Answers {
		a.Answers[k] = v
	}
	if patch.Final != nil {
		patch.Final.apply(&a)
	}
	a.Version++
	a.UpdatedAt = time.Now()
	m.attempts[id] = a
	return a.clone(), nil
}

func (m *MemoryStore) List(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.ExamType != "" && a.ExamType != opts.ExamType {
			continue
		}
		if opts.Completed != nil && a.Finalized() != *opts.Completed {
			continue
		}
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool { return opts.less(out[i], out[j]) })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListExpired(_ context.Context, now time.Time) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if !a.Finalized() && !a.Deadline().After(now) {
			out = append(out, a.clone())
		}
	}
	return out, nil
}
