package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	authmw "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/exam"
)

type questionReq struct {
	ExamType      string      `json:"exam_type" validate:"required,exam_type"`
	QuestionType  string      `json:"question_type" validate:"required,oneof=multiple_choice true_false fill_in_blank essay"`
	Text          string      `json:"question_text" validate:"required"`
	Options       []string    `json:"options" validate:"omitempty,max=10"`
	CorrectAnswer interface{} `json:"correct_answer"`
	ImageURL      string      `json:"image_url" validate:"omitempty,url"`
}

func (req questionReq) question() exam.Question {
	return exam.Question{
		ExamType:      exam.ExamType(req.ExamType),
		Type:          exam.QuestionType(req.QuestionType),
		Text:          strings.TrimSpace(req.Text),
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		ImageURL:      req.ImageURL,
	}
}

// GET /questions?exam_type=SAP
func ListQuestionsHandler(store exam.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		et := exam.ExamType(strings.TrimSpace(r.URL.Query().Get("exam_type")))
		types := exam.ExamTypes
		if et != "" {
			if !et.Valid() {
				httpError(w, r, fmt.Errorf("%w: %q", exam.ErrUnknownExamType, et))
				return
			}
			types = []exam.ExamType{et}
		}
		out := []exam.Question{}
		for _, t := range types {
			qs, err := store.ListQuestions(r.Context(), t)
			if err != nil {
				httpError(w, r, err)
				return
			}
			out = append(out, qs...)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /questions
func CreateQuestionHandler(store exam.QuestionStore, clock exam.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}
		q, err := exam.PrepareQuestion(req.question(), authmw.SubjectFromContext(r.Context()), clock.Now())
		if err != nil {
			httpError(w, r, err)
			return
		}
		if err := store.PutQuestion(r.Context(), q); err != nil {
			httpError(w, r, err)
			return
		}
		log.Info().Str("question_id", q.ID).Str("exam_type", string(q.ExamType)).Msg("question created")
		writeJSON(w, http.StatusCreated, q)
	}
}

// PUT /questions/{questionID}
// Attempts hold question ids only, so finalized scores are never recomputed by an edit.
func UpdateQuestionHandler(store exam.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "questionID")
		cur, err := store.GetQuestion(r.Context(), id)
		if err != nil {
			httpError(w, r, err)
			return
		}
		var req questionReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}
		q := req.question()
		q.ID, q.CreatedAt, q.CreatedBy = cur.ID, cur.CreatedAt, cur.CreatedBy
		if q.Type != exam.MultipleChoice {
			q.Options = nil
		}
		if err := q.Validate(); err != nil {
			httpError(w, r, err)
			return
		}
		if err := store.PutQuestion(r.Context(), q); err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /questions/{questionID}
func DeleteQuestionHandler(store exam.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "questionID")
		if err := store.DeleteQuestion(r.Context(), id); err != nil {
			httpError(w, r, err)
			return
		}
		log.Info().Str("question_id", id).Str("by", authmw.SubjectFromContext(r.Context())).Msg("question deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /questions/counts
func QuestionCountsHandler(store exam.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := questionCounts(r.Context(), store)
		if err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

// questionCounts reports every exam type, including those with no questions yet.
func questionCounts(ctx context.Context, store exam.QuestionStore) (map[exam.ExamType]int, error) {
	counts, err := store.CountByExamType(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[exam.ExamType]int, len(exam.ExamTypes))
	for _, t := range exam.ExamTypes {
		out[t] = counts[t]
	}
	return out, nil
}

type importReq struct {
	Questions []questionReq `json:"questions" validate:"required,min=1,dive"`
}

// POST /questions/import validates the whole batch before storing any of it.
func ImportQuestionsHandler(store exam.QuestionStore, clock exam.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}
		qs := make([]exam.Question, len(req.Questions))
		for i, q := range req.Questions {
			qs[i] = q.question()
		}
		n, err := exam.ImportQuestions(r.Context(), store, qs, authmw.SubjectFromContext(r.Context()), clock.Now())
		if err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"imported": n})
	}
}
