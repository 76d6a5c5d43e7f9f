package grading

import (
	"errors"
	"fmt"
)

// Question type identifiers. They match the values stored in the questions table.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeFillInBlank    = "fill_in_blank"
	TypeEssay          = "essay"
)

// ErrBadResponse is returned when a response does not have the shape its question type expects.
var ErrBadResponse = errors.New("response shape does not match question type")

// Q is a minimal view of a question needed for grading.
// Keep this in sync with exam.Question.
type Q struct {
	ID          string
	Type        string
	OptionCount int // multiple_choice only
	Key         interface{}
}

// Result is the outcome of grading a single question response.
type Result struct {
	Points      int  // 0 or 1
	NeedsManual bool // essay answers are never auto-graded
	Answered    bool
}

// Strategy grades a single question.
type Strategy interface {
	Grade(q Q, response interface{}) (Result, error)
	// Check reports whether response is an acceptable value for q.
	Check(q Q, response interface{}) error
}

// Grader routes by question type to the correct Strategy.
type Grader struct {
	strategies map[string]Strategy
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() *Grader {
	return &Grader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: choiceStrategy{},
			TypeTrueFalse:      trueFalseStrategy{},
			TypeFillInBlank:    blankStrategy{},
			TypeEssay:          essayStrategy{},
		},
	}
}

// Grade scores one response. Unanswered (nil) responses score zero for every type.
func (g *Grader) Grade(q Q, response interface{}) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("no strategy for question type %q", q.Type)
	}
	if response == nil {
		return Result{NeedsManual: q.Type == TypeEssay}, nil
	}
	return s.Grade(q, response)
}

// Check validates the shape of a response before it is stored. nil clears an answer and is always accepted.
func (g *Grader) Check(q Q, response interface{}) error {
	s, ok := g.strategies[q.Type]
	if !ok {
		return fmt.Errorf("%w: unknown question type %q", ErrBadResponse, q.Type)
	}
	if response == nil {
		return nil
	}
	return s.Check(q, response)
}

// Score sums the points for every question in qs against answers keyed by question id.
// It has no side effects; a stored value of the wrong shape scores zero.
func (g *Grader) Score(qs []Q, answers map[string]interface{}) int {
	total := 0
	for _, q := range qs {
		res, err := g.Grade(q, answers[q.ID])
		if err != nil {
			continue
		}
		total += res.Points
	}
	return total
}

// --- Strategies ---

type choiceStrategy struct{}

func (choiceStrategy) Check(q Q, response interface{}) error {
	idx, ok := toIndex(response)
	if !ok {
		return fmt.Errorf("%w: multiple choice answer must be an option index", ErrBadResponse)
	}
	if q.OptionCount > 0 && (idx < 0 || idx >= q.OptionCount) {
		return fmt.Errorf("%w: option index %d out of range", ErrBadResponse, idx)
	}
	return nil
}

func (choiceStrategy) Grade(q Q, response interface{}) (Result, error) {
	resp, ok := toIndex(response)
	if !ok {
		return Result{}, ErrBadResponse
	}
	res := Result{Answered: true}
	if key, ok := toIndex(q.Key); ok && key == resp {
		res.Points = 1
	}
	return res, nil
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Check(_ Q, response interface{}) error {
	if _, ok := response.(bool); !ok {
		return fmt.Errorf("%w: true/false answer must be a boolean", ErrBadResponse)
	}
	return nil
}

func (trueFalseStrategy) Grade(q Q, response interface{}) (Result, error) {
	resp, ok := response.(bool)
	if !ok {
		return Result{}, ErrBadResponse
	}
	res := Result{Answered: true}
	if key, ok := q.Key.(bool); ok && key == resp {
		res.Points = 1
	}
	return res, nil
}

type blankStrategy struct{}

func (blankStrategy) Check(_ Q, response interface{}) error {
	if _, ok := response.(string); !ok {
		return fmt.Errorf("%w: fill-in-the-blank answer must be a string", ErrBadResponse)
	}
	return nil
}

func (blankStrategy) Grade(q Q, response interface{}) (Result, error) {
	resp, ok := response.(string)
	if !ok {
		return Result{}, ErrBadResponse
	}
	res := Result{Answered: normalize(resp) != ""}
	key, _ := q.Key.(string)
	if textMatches(resp, key) {
		res.Points = 1
	}
	return res, nil
}

type essayStrategy struct{}

func (essayStrategy) Check(_ Q, response interface{}) error {
	if _, ok := response.(string); !ok {
		return fmt.Errorf("%w: essay answer must be a string", ErrBadResponse)
	}
	return nil
}

func (essayStrategy) Grade(_ Q, response interface{}) (Result, error) {
	s, ok := response.(string)
	if !ok {
		return Result{}, ErrBadResponse
	}
	return Result{NeedsManual: true, Answered: normalize(s) != ""}, nil
}
