package exam

import (
	"context"
	"errors"
	"testing"
)

func TestPrepareQuestion(t *testing.T) {
	q, err := PrepareQuestion(Question{
		ExamType: ExamSales, Type: TrueFalse, Text: "ok?", Options: []string{"stray"}, CorrectAnswer: true,
	}, "admin-1", t0)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if q.ID == "" || !q.CreatedAt.Equal(t0) || q.CreatedBy != "admin-1" || q.Options != nil {
		t.Fatalf("prepared = %+v", q)
	}

	kept, _ := PrepareQuestion(Question{ID: "fixed", ExamType: ExamSales, Type: Essay, Text: "why"}, "x", t0)
	if kept.ID != "fixed" {
		t.Fatalf("explicit id replaced: %s", kept.ID)
	}
}

func TestImportQuestionsIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	batch := []Question{
		{ExamType: ExamQC, Type: TrueFalse, Text: "a", CorrectAnswer: true},
		{ExamType: ExamQC, Type: MultipleChoice, Text: "b", Options: []string{"x"}, CorrectAnswer: 0},
	}
	if _, err := ImportQuestions(ctx, store, batch, "cli", t0); !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("want ErrInvalidQuestion, got %v", err)
	}
	if counts, _ := store.CountByExamType(ctx); counts[ExamQC] != 0 {
		t.Fatalf("partial import stored %d questions", counts[ExamQC])
	}

	batch[1].Options = []string{"x", "y"}
	n, err := ImportQuestions(ctx, store, batch, "cli", t0)
	if err != nil || n != 2 {
		t.Fatalf("import = %d, %v", n, err)
	}
}
