package report

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
)

var (
	mc = exam.Question{ID: "q1", Type: exam.MultipleChoice, Text: "Which oven?", Options: []string{"Deck", "Rack", "Tunnel"}, CorrectAnswer: 1}
	tf = exam.Question{ID: "q2", Type: exam.TrueFalse, Text: "Flour is dry goods.", CorrectAnswer: true}
	fb = exam.Question{ID: "q3", Type: exam.FillInBlank, Text: "Capital of France", CorrectAnswer: "Paris"}
	es = exam.Question{ID: "q4", Type: exam.Essay, Text: "Describe closing duties. Ñandú café", CorrectAnswer: "model"}
)

func TestAnswerText(t *testing.T) {
	cases := []struct {
		q    exam.Question
		v    interface{}
		want string
	}{
		{mc, 2, "Tunnel"},
		{mc, float64(0), "Deck"},
		{mc, "1", "Rack"},
		{mc, 9, "Invalid option"},
		{mc, nil, "No answer"},
		{tf, false, "False"},
		{tf, true, "True"},
		{fb, "paris", "paris"},
		{fb, "", "No answer"},
		{es, "We clean.", "We clean."},
	}
	for _, c := range cases {
		if got := AnswerText(c.q, c.v); got != c.want {
			t.Errorf("AnswerText(%s, %v) = %q, want %q", c.q.ID, c.v, got, c.want)
		}
	}
}

func finalized(score int) exam.Attempt {
	done := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	taken := 600
	return exam.Attempt{
		ID: "a1", UserID: "u1", ExamType: exam.ExamSAP,
		QuestionIDs:      []string{"q1", "q2", "q3", "q4"},
		Answers:          map[string]interface{}{"q1": 1, "q2": false, "q3": " paris", "q4": "We clean."},
		StartedAt:        done.Add(-10 * time.Minute),
		CompletedAt:      &done,
		Score:            &score,
		TotalQuestions:   4,
		TimeTakenSeconds: &taken,
	}
}

func TestFromAttempt(t *testing.T) {
	ex := &profile.Examiner{FullName: "Ana Cruz", StoreArea: "North"}
	d, err := FromAttempt(finalized(2), []exam.Question{mc, tf, fb, es}, ex)
	if err != nil {
		t.Fatalf("from attempt: %v", err)
	}
	if d.Examiner != "Ana Cruz" || d.Designation != "N/A" || d.Percentage() != 50 || d.Passed() {
		t.Fatalf("data = %+v", d)
	}
	if len(d.Items) != 4 || d.Items[0].Correct != "Rack" || d.Items[3].Correct != "" {
		t.Fatalf("items = %+v", d.Items)
	}

	open := finalized(0)
	open.CompletedAt, open.Score, open.TimeTakenSeconds = nil, nil, nil
	if _, err := FromAttempt(open, nil, nil); !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("in-progress attempt: %v", err)
	}
}

func TestRenderProducesPDF(t *testing.T) {
	d, _ := FromAttempt(finalized(3), []exam.Question{mc, tf, fb, es}, nil)
	for i := 0; i < 40; i++ { // force a page break
		d.Items = append(d.Items, Item{Text: "Filler question", Answer: "x", Correct: "y"})
	}
	var buf bytes.Buffer
	if err := Render(&buf, d); err != nil {
		t.Fatalf("render: %v", err)
	}
	b := buf.Bytes()
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", b[:16])
	}
	m := regexp.MustCompile(`/Count (\d+)`).FindSubmatch(b)
	if m == nil {
		t.Fatalf("no page tree in output")
	}
	if n, _ := strconv.Atoi(string(m[1])); n < 2 {
		t.Fatalf("pages = %d, expected a page break", n)
	}
}
