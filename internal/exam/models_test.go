package exam

import (
	"errors"
	"testing"
	"time"
)

func TestQuestionValidate(t *testing.T) {
	mc := Question{ExamType: ExamSAP, Type: MultipleChoice, Text: "pick", Options: []string{"a", "b"}, CorrectAnswer: float64(1)}
	cases := []struct {
		name string
		edit func(q *Question)
		ok   bool
	}{
		{"valid multiple choice", func(q *Question) {}, true},
		{"index out of range", func(q *Question) { q.CorrectAnswer = 2 }, false},
		{"one option", func(q *Question) { q.Options = []string{"a"} }, false},
		{"blank option", func(q *Question) { q.Options = []string{"a", " "} }, false},
		{"missing key", func(q *Question) { q.CorrectAnswer = nil }, false},
		{"unknown exam type", func(q *Question) { q.ExamType = "Finance" }, false},
		{"empty text", func(q *Question) { q.Text = "  " }, false},
		{"true false", func(q *Question) { q.Type, q.Options, q.CorrectAnswer = TrueFalse, nil, false }, true},
		{"true false with string", func(q *Question) { q.Type, q.CorrectAnswer = TrueFalse, "true" }, false},
		{"fill in blank", func(q *Question) { q.Type, q.CorrectAnswer = FillInBlank, "Paris" }, true},
		{"fill in blank empty", func(q *Question) { q.Type, q.CorrectAnswer = FillInBlank, " " }, false},
		{"essay without key", func(q *Question) { q.Type, q.CorrectAnswer = Essay, nil }, true},
		{"unknown type", func(q *Question) { q.Type = "matching" }, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := mc
			q.Options = append([]string(nil), mc.Options...)
			c.edit(&q)
			err := q.Validate()
			if c.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.ok && !errors.Is(err, ErrInvalidQuestion) {
				t.Fatalf("want ErrInvalidQuestion, got %v", err)
			}
		})
	}
}

func TestAttemptDerivedFields(t *testing.T) {
	a := Attempt{StartedAt: t0, TotalQuestions: 10}
	if a.Allotted() != AllottedDuration || !a.Deadline().Equal(t0.Add(30*time.Minute)) {
		t.Fatalf("allotted = %v deadline = %v", a.Allotted(), a.Deadline())
	}
	if a.Passed() {
		t.Fatalf("in-progress attempt passed")
	}
	Finalization{Score: 7, CompletedAt: t0.Add(time.Minute), TimeTakenSeconds: 60}.apply(&a)
	if !a.Finalized() || !a.Passed() {
		t.Fatalf("7/10 should pass")
	}
	if q := (Question{CorrectAnswer: 1}).Redacted(); q.CorrectAnswer != nil {
		t.Fatalf("redacted question kept its key")
	}
}
