package exam

import (
	"context"
	"time"
)

// QuestionRepository is the read side the engine needs. No ordering is guaranteed.
type QuestionRepository interface {
	ListQuestions(ctx context.Context, examType ExamType) ([]Question, error)
	GetQuestionsByIDs(ctx context.Context, ids []string) ([]Question, error)
}

// QuestionStore adds the administrative operations used by the question pages.
type QuestionStore interface {
	QuestionRepository
	GetQuestion(ctx context.Context, id string) (Question, error)
	PutQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, id string) error
	CountByExamType(ctx context.Context) (map[ExamType]int, error)
}

// Precondition guards Update. The zero value writes unconditionally.
type Precondition struct {
	InProgress bool  // completed_at must still be absent
	Version    int64 // when > 0 the stored version must match
}

// AttemptPatch is a partial update. Answers are merged key by key into the stored map.
type AttemptPatch struct {
	Answers map[string]interface{}
	Final   *Finalization
}

type AttemptListOpts struct {
	UserID    string
	ExamType  ExamType
	Completed *bool
	// ByCompletion orders by completion time, newest first, with open attempts last.
	// The default order is newest start first.
	ByCompletion bool
	Limit        int
	Offset       int
}

func (o AttemptListOpts) less(a, b Attempt) bool {
	if o.ByCompletion {
		switch {
		case a.Finalized() && b.Finalized() && !a.CompletedAt.Equal(*b.CompletedAt):
			return a.CompletedAt.After(*b.CompletedAt)
		case a.Finalized() != b.Finalized():
			return a.Finalized()
		}
	}
	return a.StartedAt.After(b.StartedAt)
}

// AttemptStore persists attempts. Update must evaluate its Precondition in the same
// write as the change, and fail with ErrConflict when it does not hold.
type AttemptStore interface {
	// Create fails with ErrConflict when (UserID, ExamType) already has an attempt in progress.
	Create(ctx context.Context, a Attempt) (string, error)
	Get(ctx context.Context, id string) (Attempt, error)
	FindInProgress(ctx context.Context, userID string, examType ExamType) (Attempt, bool, error)
	Update(ctx context.Context, id string, patch AttemptPatch, pre Precondition) (Attempt, error)
	List(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	// ListExpired returns in-progress attempts whose deadline is at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]Attempt, error)
}
