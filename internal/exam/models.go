package exam

import (
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/examportal/internal/grading"
)

type ExamType string

const (
	ExamSAP               ExamType = "SAP"
	ExamManagementTrainee ExamType = "Management Trainee"
	ExamSales             ExamType = "Sales"
	ExamQC                ExamType = "QC"
	ExamProduction        ExamType = "Production"
)

// ExamTypes lists every exam type in display order.
var ExamTypes = []ExamType{ExamSAP, ExamManagementTrainee, ExamSales, ExamQC, ExamProduction}

func (t ExamType) Valid() bool {
	for _, v := range ExamTypes {
		if v == t {
			return true
		}
	}
	return false
}

type QuestionType string

const (
	MultipleChoice QuestionType = grading.TypeMultipleChoice
	TrueFalse      QuestionType = grading.TypeTrueFalse
	FillInBlank    QuestionType = grading.TypeFillInBlank
	Essay          QuestionType = grading.TypeEssay
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, FillInBlank, Essay:
		return true
	}
	return false
}

type Question struct {
	ID            string       `json:"id"`
	ExamType      ExamType     `json:"exam_type"`
	Type          QuestionType `json:"question_type"`
	Text          string       `json:"question_text"`
	Options       []string     `json:"options,omitempty"`        // multiple_choice only
	CorrectAnswer interface{}  `json:"correct_answer,omitempty"` // int index | bool | string
	ImageURL      string       `json:"image_url,omitempty"`
	CreatedBy     string       `json:"created_by,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Redacted returns a copy safe to show an examiner mid-attempt.
func (q Question) Redacted() Question {
	q.CorrectAnswer = nil
	return q
}

// Validate checks that the question is well formed for its type, including the shape of
// its answer key.
func (q Question) Validate() error {
	if !q.ExamType.Valid() {
		return fmt.Errorf("%w: unknown exam type %q", ErrInvalidQuestion, q.ExamType)
	}
	if !q.Type.Valid() {
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, q.Type)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question text required", ErrInvalidQuestion)
	}
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: multiple choice needs at least 2 options", ErrInvalidQuestion)
		}
		for i, o := range q.Options {
			if strings.TrimSpace(o) == "" {
				return fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i)
			}
		}
	case FillInBlank:
		if s, _ := q.CorrectAnswer.(string); strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: fill in the blank needs a non-empty answer", ErrInvalidQuestion)
		}
	case Essay:
		return nil
	}
	if q.CorrectAnswer == nil {
		return fmt.Errorf("%w: correct answer required", ErrInvalidQuestion)
	}
	if err := grading.NewDefaultGrader().Check(q.gradingView(), q.CorrectAnswer); err != nil {
		return fmt.Errorf("%w: correct answer: %v", ErrInvalidQuestion, err)
	}
	return nil
}

func (q Question) gradingView() grading.Q {
	return grading.Q{
		ID:          q.ID,
		Type:        string(q.Type),
		OptionCount: len(q.Options),
		Key:         q.CorrectAnswer,
	}
}

type Attempt struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	ExamType         ExamType               `json:"exam_type"`
	QuestionIDs      []string               `json:"question_ids"`
	Answers          map[string]interface{} `json:"answers"` // questionID -> answer, nil when unanswered
	StartedAt        time.Time              `json:"started_at"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	Score            *int                   `json:"score,omitempty"`
	TotalQuestions   int                    `json:"total_questions"`
	TimeTakenSeconds *int                   `json:"time_taken,omitempty"`
	AllottedSeconds  int                    `json:"allotted_seconds"`
	UpdatedAt        time.Time              `json:"updated_at"`
	Version          int64                  `json:"-"`
}

func (a Attempt) Finalized() bool { return a.CompletedAt != nil }

// Allotted is the duration captured when the attempt started.
func (a Attempt) Allotted() time.Duration {
	if a.AllottedSeconds <= 0 {
		return AllottedDuration
	}
	return time.Duration(a.AllottedSeconds) * time.Second
}

func (a Attempt) Deadline() time.Time { return a.StartedAt.Add(a.Allotted()) }

// Passed applies the fixed pass policy. In-progress attempts never pass.
func (a Attempt) Passed() bool {
	if a.Score == nil {
		return false
	}
	return grading.Passed(*a.Score, a.TotalQuestions)
}

func (a Attempt) hasQuestion(id string) bool {
	for _, q := range a.QuestionIDs {
		if q == id {
			return true
		}
	}
	return false
}

func (a Attempt) clone() Attempt {
	out := a
	out.QuestionIDs = append([]string(nil), a.QuestionIDs...)
	out.Answers = make(map[string]interface{}, len(a.Answers))
	for k, v := range a.Answers {
		out.Answers[k] = v
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	if a.Score != nil {
		s := *a.Score
		out.Score = &s
	}
	if a.TimeTakenSeconds != nil {
		s := *a.TimeTakenSeconds
		out.TimeTakenSeconds = &s
	}
	return out
}

// Finalization is the set of fields written exactly once when an attempt completes.
type Finalization struct {
	Score            int
	CompletedAt      time.Time
	TimeTakenSeconds int
}

func (f Finalization) apply(a *Attempt) {
	at := f.CompletedAt
	score := f.Score
	taken := f.TimeTakenSeconds
	a.CompletedAt = &at
	a.Score = &score
	a.TimeTakenSeconds = &taken
}
