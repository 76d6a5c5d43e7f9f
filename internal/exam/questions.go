package exam

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrepareQuestion fills in the identity fields of a new question and validates it.
func PrepareQuestion(q Question, createdBy string, now time.Time) (Question, error) {
	if strings.TrimSpace(q.ID) == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now.UTC().Truncate(time.Millisecond)
	}
	if q.CreatedBy == "" {
		q.CreatedBy = createdBy
	}
	if q.Type != MultipleChoice {
		q.Options = nil
	}
	if err := q.Validate(); err != nil {
		return Question{}, fmt.Errorf("question %s: %w", q.ID, err)
	}
	return q, nil
}

// ImportQuestions validates the whole batch before writing any of it.
func ImportQuestions(ctx context.Context, store QuestionStore, qs []Question, createdBy string, now time.Time) (int, error) {
	ready := make([]Question, 0, len(qs))
	for i, q := range qs {
		p, err := PrepareQuestion(q, createdBy, now)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		ready = append(ready, p)
	}
	for i, q := range ready {
		if err := store.PutQuestion(ctx, q); err != nil {
			return i, err
		}
	}
	return len(ready), nil
}
