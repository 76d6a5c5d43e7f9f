package http

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/grading"
)

// attemptView is the wire shape of an attempt.
type attemptView struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	ExamType         exam.ExamType          `json:"exam_type"`
	QuestionIDs      []string               `json:"question_ids"`
	Answers          map[string]interface{} `json:"answers"`
	StartedAt        time.Time              `json:"started_at"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	Score            *int                   `json:"score,omitempty"`
	TotalQuestions   int                    `json:"total_questions"`
	TimeTakenSeconds *int                   `json:"time_taken,omitempty"`
	AllottedSeconds  int                    `json:"allotted_seconds"`

	State            string          `json:"state"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Percentage       *int            `json:"percentage,omitempty"`
	Passed           *bool           `json:"passed,omitempty"`
	Questions        []exam.Question `json:"questions,omitempty"`
}

// attemptState is how a client should render the attempt.
func attemptState(a exam.Attempt, now time.Time) exam.State {
	switch {
	case !a.Finalized() && exam.Countdown(now, a.StartedAt, a.Allotted()) > 0:
		return exam.StateRunning
	case !a.Finalized():
		return exam.StateExpired // finalized on the next write or read through the engine
	case a.TimeTakenSeconds != nil && *a.TimeTakenSeconds >= a.AllottedSeconds:
		return exam.StateExpired
	}
	return exam.StateSubmitted
}

func newAttemptView(a exam.Attempt, now time.Time) attemptView {
	var v attemptView
	_ = copier.Copy(&v, &a)
	// copier also fills Passed from the method of the same name
	v.Passed, v.Percentage = nil, nil
	v.State = attemptState(a, now).String()
	if !a.Finalized() {
		v.RemainingSeconds = int(exam.Countdown(now, a.StartedAt, a.Allotted()) / time.Second)
	}
	if a.Score != nil {
		pct := grading.Percentage(*a.Score, a.TotalQuestions)
		passed := a.Passed()
		v.Percentage, v.Passed = &pct, &passed
	}
	return v
}

// withQuestions attaches the drawn questions. Examiners never see answer keys.
func (v attemptView) withQuestions(qs []exam.Question, showKeys bool) attemptView {
	v.Questions = make([]exam.Question, len(qs))
	for i, q := range qs {
		if !showKeys {
			q = q.Redacted()
		}
		v.Questions[i] = q
	}
	return v
}
