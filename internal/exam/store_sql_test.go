package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mind-engage/examportal/internal/db"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh)
}

func seedSQLQuestions(t *testing.T, s *SQLStore) {
	t.Helper()
	ctx := context.Background()
	qs := []Question{
		{ID: "mc1", ExamType: ExamSAP, Type: MultipleChoice, Text: "pick", Options: []string{"a", "b", "c"}, CorrectAnswer: 2},
		{ID: "mc2", ExamType: ExamSAP, Type: MultipleChoice, Text: "pick", Options: []string{"a", "b"}, CorrectAnswer: 0},
		{ID: "tf1", ExamType: ExamSAP, Type: TrueFalse, Text: "true?", CorrectAnswer: true},
		{ID: "fb1", ExamType: ExamSAP, Type: FillInBlank, Text: "capital of France", CorrectAnswer: "Paris"},
		{ID: "es1", ExamType: ExamSAP, Type: Essay, Text: "explain", CorrectAnswer: "anything"},
		{ID: "qc1", ExamType: ExamQC, Type: TrueFalse, Text: "qc", CorrectAnswer: false},
	}
	for i, q := range qs {
		q.CreatedAt = t0.Add(time.Duration(i) * time.Second)
		if err := s.PutQuestion(ctx, q); err != nil {
			t.Fatalf("put %s: %v", q.ID, err)
		}
	}
}

func TestSQLQuestionRoundTrip(t *testing.T) {
	s := newSQLStore(t)
	seedSQLQuestions(t, s)
	ctx := context.Background()

	q, err := s.GetQuestion(ctx, "mc1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(q.Options) != 3 || q.Type != MultipleChoice || !q.CreatedAt.Equal(t0) {
		t.Fatalf("question = %+v", q)
	}
	// JSON decoding yields float64 for the stored index; grading accepts it.
	eng, _, _ := newTestEngine(t)
	if eng.score([]Question{q}, map[string]interface{}{"mc1": 2}) != 1 {
		t.Fatalf("stored key %v (%T) does not grade", q.CorrectAnswer, q.CorrectAnswer)
	}

	list, err := s.ListQuestions(ctx, ExamSAP)
	if err != nil || len(list) != 5 {
		t.Fatalf("list = %d, %v", len(list), err)
	}
	if list[0].ID != "es1" {
		t.Fatalf("list should be newest first, got %s", list[0].ID)
	}

	counts, err := s.CountByExamType(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[ExamSAP] != 5 || counts[ExamQC] != 1 || counts[ExamSales] != 0 {
		t.Fatalf("counts = %v", counts)
	}

	q.Text = "pick again"
	if err := s.PutQuestion(ctx, q); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got, _ := s.GetQuestion(ctx, "mc1"); got.Text != "pick again" {
		t.Fatalf("upsert did not replace text")
	}

	if err := s.DeleteQuestion(ctx, "qc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteQuestion(ctx, "qc1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
	if _, err := s.GetQuestion(ctx, "qc1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: want ErrNotFound, got %v", err)
	}
}

func sqlAttempt(userID string, et ExamType) Attempt {
	return Attempt{
		ID:              uuid.NewString(),
		UserID:          userID,
		ExamType:        et,
		QuestionIDs:     []string{"mc1", "tf1"},
		Answers:         map[string]interface{}{"mc1": nil, "tf1": nil},
		StartedAt:       t0,
		TotalQuestions:  2,
		AllottedSeconds: 1800,
	}
}

func TestSQLOneOpenAttemptPerUserAndType(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	first := sqlAttempt("u1", ExamSAP)
	if _, err := s.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, sqlAttempt("u1", ExamSAP)); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate open attempt: want ErrConflict, got %v", err)
	}
	if _, err := s.Create(ctx, sqlAttempt("u1", ExamQC)); err != nil {
		t.Fatalf("other exam type: %v", err)
	}

	f := Finalization{Score: 1, CompletedAt: t0.Add(time.Minute), TimeTakenSeconds: 60}
	if _, err := s.Update(ctx, first.ID, AttemptPatch{Final: &f}, Precondition{InProgress: true}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := s.Create(ctx, sqlAttempt("u1", ExamSAP)); err != nil {
		t.Fatalf("new attempt after finalize: %v", err)
	}
}

func TestSQLUpdateConditions(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	a := sqlAttempt("u1", ExamSAP)
	id, _ := s.Create(ctx, a)
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 || got.Finalized() {
		t.Fatalf("fresh attempt = %+v", got)
	}

	got, err = s.Update(ctx, id, AttemptPatch{Answers: map[string]interface{}{"mc1": 2}}, Precondition{InProgress: true})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}

	f := Finalization{Score: 1, CompletedAt: t0.Add(90 * time.Second), TimeTakenSeconds: 90}
	if _, err := s.Update(ctx, id, AttemptPatch{Final: &f}, Precondition{InProgress: true, Version: 1}); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale version: want ErrConflict, got %v", err)
	}
	done, err := s.Update(ctx, id, AttemptPatch{Final: &f}, Precondition{InProgress: true, Version: 2})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !done.Finalized() || *done.Score != 1 || *done.TimeTakenSeconds != 90 {
		t.Fatalf("finalized = %+v", done)
	}

	if _, err := s.Update(ctx, id, AttemptPatch{Answers: map[string]interface{}{"tf1": true}}, Precondition{InProgress: true}); !errors.Is(err, ErrConflict) {
		t.Fatalf("answer after finalize: want ErrConflict, got %v", err)
	}
	again := Finalization{Score: 0, CompletedAt: t0.Add(time.Hour), TimeTakenSeconds: 1800}
	if _, err := s.Update(ctx, id, AttemptPatch{Final: &again}, Precondition{InProgress: true}); !errors.Is(err, ErrConflict) {
		t.Fatalf("second finalize: want ErrConflict, got %v", err)
	}

	stored, _ := s.Get(ctx, id)
	if !stored.CompletedAt.Equal(t0.Add(90*time.Second)) || stored.Answers["tf1"] != nil {
		t.Fatalf("finalized row changed: %+v", stored)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: want ErrNotFound, got %v", err)
	}
}

func TestSQLListAndExpired(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	old := sqlAttempt("u1", ExamSAP)
	recent := sqlAttempt("u2", ExamSAP)
	recent.StartedAt = t0.Add(20 * time.Minute)
	other := sqlAttempt("u1", ExamQC)
	other.StartedAt = t0.Add(5 * time.Minute)
	for _, a := range []Attempt{old, recent, other} {
		if _, err := s.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := s.List(ctx, AttemptListOpts{})
	if err != nil || len(all) != 3 {
		t.Fatalf("list = %d, %v", len(all), err)
	}
	if all[0].ID != recent.ID || all[2].ID != old.ID {
		t.Fatalf("list not ordered newest first")
	}
	mine, _ := s.List(ctx, AttemptListOpts{UserID: "u1"})
	if len(mine) != 2 {
		t.Fatalf("u1 attempts = %d", len(mine))
	}
	page, _ := s.List(ctx, AttemptListOpts{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ID != other.ID {
		t.Fatalf("page = %+v", page)
	}
	open := false
	pending, _ := s.List(ctx, AttemptListOpts{Completed: &open, ExamType: ExamSAP})
	if len(pending) != 2 {
		t.Fatalf("open SAP attempts = %d", len(pending))
	}

	due, err := s.ListExpired(ctx, t0.Add(35*time.Minute))
	if err != nil {
		t.Fatalf("expired: %v", err)
	}
	ids := map[string]bool{}
	for _, a := range due {
		ids[a.ID] = true
	}
	if len(due) != 2 || !ids[old.ID] || !ids[other.ID] {
		t.Fatalf("expired = %v", ids)
	}
}

func TestEngineOverSQLStore(t *testing.T) {
	s := newSQLStore(t)
	seedSQLQuestions(t, s)
	clk := newFakeClock(t0)
	eng := NewEngine(s, s, WithClock(clk), WithLogger(zerolog.Nop()))
	ctx := context.Background()

	a, err := eng.StartAttempt(ctx, "u1", ExamSAP)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.TotalQuestions != 5 {
		t.Fatalf("total = %d", a.TotalQuestions)
	}
	resumed, _ := eng.StartAttempt(ctx, "u1", ExamSAP)
	if resumed.ID != a.ID {
		t.Fatalf("resume created a second attempt")
	}

	answers := map[string]interface{}{"mc1": 2, "mc2": "1", "tf1": true, "fb1": " paris ", "es1": "essay"}
	for id, v := range answers {
		if err := eng.RecordAnswer(ctx, a.ID, id, v); err != nil {
			t.Fatalf("answer %s: %v", id, err)
		}
	}
	clk.Advance(AllottedDuration + time.Minute)
	if _, err := eng.ExpireOverdue(ctx); err != nil {
		t.Fatalf("expire: %v", err)
	}
	done, err := eng.SubmitAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// mc1, tf1 and fb1 are right; mc2 wrong; essay never scores
	if *done.Score != 3 || *done.TimeTakenSeconds != 1800 {
		t.Fatalf("finalized = score %d, time %d", *done.Score, *done.TimeTakenSeconds)
	}
	if done.Passed() {
		t.Fatalf("3/5 should not pass")
	}
}

func TestSQLCorruptAnswersAreNotScored(t *testing.T) {
	s := newSQLStore(t)
	seedSQLQuestions(t, s)
	eng := NewEngine(s, s, WithClock(newFakeClock(t0)), WithLogger(zerolog.Nop()))
	ctx := context.Background()

	a, err := eng.StartAttempt(ctx, "u1", ExamSAP)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := eng.RecordAnswer(ctx, a.ID, "tf1", true); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE exam_attempts SET answers_json=$1 WHERE id=$2`, `{"tf1":tru`, a.ID); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, err := eng.SubmitAttempt(ctx, a.ID); err == nil {
		t.Fatalf("submit scored an attempt whose answers cannot be read")
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE exam_attempts SET answers_json='null' WHERE id=$1`, a.ID); err != nil {
		t.Fatalf("null answers: %v", err)
	}
	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get with null answers: %v", err)
	}
	if got.Finalized() || got.Answers == nil {
		t.Fatalf("attempt = %+v", got)
	}
}

func TestListByCompletion(t *testing.T) {
	finish := func(s AttemptStore, a Attempt, after time.Duration) {
		t.Helper()
		f := Finalization{Score: 1, CompletedAt: a.StartedAt.Add(after), TimeTakenSeconds: int(after / time.Second)}
		if _, err := s.Update(context.Background(), a.ID, AttemptPatch{Final: &f}, Precondition{InProgress: true}); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}
	stores := map[string]AttemptStore{"sql": newSQLStore(t), "memory": NewMemoryStore()}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// started first, finished last
			slow := sqlAttempt("u1", ExamSAP)
			quick := sqlAttempt("u2", ExamSAP)
			quick.StartedAt = t0.Add(10 * time.Minute)
			open := sqlAttempt("u3", ExamSAP)
			open.StartedAt = t0.Add(20 * time.Minute)
			for _, a := range []Attempt{slow, quick, open} {
				if _, err := s.Create(ctx, a); err != nil {
					t.Fatalf("create: %v", err)
				}
			}
			finish(s, slow, 29*time.Minute)
			finish(s, quick, 5*time.Minute)

			done := true
			top, err := s.List(ctx, AttemptListOpts{Completed: &done, ByCompletion: true, Limit: 1})
			if err != nil || len(top) != 1 || top[0].ID != slow.ID {
				t.Fatalf("most recently completed = %+v, %v", top, err)
			}
			all, _ := s.List(ctx, AttemptListOpts{ByCompletion: true})
			if len(all) != 3 || all[0].ID != slow.ID || all[1].ID != quick.ID || all[2].ID != open.ID {
				t.Fatalf("completion order wrong")
			}
			byStart, _ := s.List(ctx, AttemptListOpts{})
			if byStart[0].ID != open.ID {
				t.Fatalf("default order should be newest start first")
			}
		})
	}
}
