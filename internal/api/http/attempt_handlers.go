package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
	"github.com/mind-engage/examportal/internal/rbac"
)

// ownedAttempt loads the attempt in the URL and checks the caller may see it.
func ownedAttempt(eng *exam.Engine, r *http.Request) (exam.Attempt, error) {
	id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
	if id == "" {
		return exam.Attempt{}, fmt.Errorf("%w: attemptID required", errBadRequest)
	}
	a, err := eng.Attempt(r.Context(), id)
	if err != nil {
		return exam.Attempt{}, err
	}
	p := authmw.PrincipalFromContext(r.Context())
	if a.UserID != p.ID && !rbac.Allowed(p.Role, rbac.PermAttemptViewAll) {
		return exam.Attempt{}, fmt.Errorf("attempt %s: %w", id, errForbidden)
	}
	return a, nil
}

type startAttemptReq struct {
	ExamType string `json:"exam_type" validate:"required,exam_type"`
}

// POST /attempts starts or resumes the caller's attempt.
func StartAttemptHandler(eng *exam.Engine, watcher *exam.Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startAttemptReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}
		p := authmw.PrincipalFromContext(r.Context())
		a, err := eng.StartAttempt(r.Context(), p.ID, exam.ExamType(req.ExamType))
		if err != nil {
			httpError(w, r, err)
			return
		}
		watcher.Track(a)
		qs, err := eng.Questions(r.Context(), a)
		if err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAttemptView(a, eng.Clock().Now()).withQuestions(qs, false))
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAttempt(eng, r)
		if err != nil {
			httpError(w, r, err)
			return
		}
		qs, err := eng.Questions(r.Context(), a)
		if err != nil {
			httpError(w, r, err)
			return
		}
		// keys are revealed to the owner only once the attempt is over
		role := rbac.RoleFromContext(r.Context())
		showKeys := a.Finalized() || rbac.Allowed(role, rbac.PermQuestionManage)
		writeJSON(w, http.StatusOK, newAttemptView(a, eng.Clock().Now()).withQuestions(qs, showKeys))
	}
}

// PUT /attempts/{attemptID}/answers/{questionID}  { "value": ... }
func RecordAnswerHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAttempt(eng, r)
		if err != nil {
			httpError(w, r, err)
			return
		}
		if a.UserID != authmw.SubjectFromContext(r.Context()) {
			httpError(w, r, fmt.Errorf("only the examiner can answer: %w", errForbidden))
			return
		}
		var req struct {
			Value interface{} `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := eng.RecordAnswer(r.Context(), a.ID, chi.URLParam(r, "questionID"), req.Value); err != nil {
			httpError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(eng *exam.Engine, watcher *exam.Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAttempt(eng, r)
		if err != nil {
			httpError(w, r, err)
			return
		}
		done, err := watcher.Submit(r.Context(), a.ID)
		if err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAttemptView(done, eng.Clock().Now()))
	}
}

// GET /attempts/{attemptID}/remaining
func RemainingTimeHandler(eng *exam.Engine, settings *profile.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAttempt(eng, r)
		if err != nil {
			httpError(w, r, err)
			return
		}
		left, err := eng.RemainingTime(r.Context(), a.ID)
		if err != nil {
			httpError(w, r, err)
			return
		}
		if left == 0 && !a.Finalized() {
			// RemainingTime just finalized it
			if a, err = eng.Attempt(r.Context(), a.ID); err != nil {
				httpError(w, r, err)
				return
			}
		}
		s, err := settings.Settings(r.Context())
		if err != nil {
			httpError(w, r, err)
			return
		}
		warnAt := time.Duration(s.WarningTime) * time.Minute
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"attempt_id":        a.ID,
			"remaining_seconds": int(left / time.Second),
			"warning":           left > 0 && left <= warnAt,
			"state":             attemptState(a, eng.Clock().Now()).String(),
			"deadline":          a.Deadline(),
		})
	}
}

// GET /attempts?user_id=&exam_type=&status=completed|in_progress&limit=50&offset=0
// Callers without attempt:view-all only ever see their own attempts.
func ListAttemptsHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := authmw.PrincipalFromContext(r.Context())
		q := r.URL.Query()
		opts := exam.AttemptListOpts{
			UserID:   strings.TrimSpace(q.Get("user_id")),
			ExamType: exam.ExamType(strings.TrimSpace(q.Get("exam_type"))),
			Limit:    parseIntDefault(q.Get("limit"), 50),
			Offset:   parseIntDefault(q.Get("offset"), 0),
		}
		if !rbac.Allowed(p.Role, rbac.PermAttemptViewAll) {
			opts.UserID = p.ID
		}
		if opts.ExamType != "" && !opts.ExamType.Valid() {
			httpError(w, r, fmt.Errorf("%w: %q", exam.ErrUnknownExamType, opts.ExamType))
			return
		}
		switch q.Get("status") {
		case "completed":
			done := true
			opts.Completed = &done
		case "in_progress":
			open := false
			opts.Completed = &open
		}
		list, err := eng.History(r.Context(), opts)
		if err != nil {
			httpError(w, r, err)
			return
		}
		now := eng.Clock().Now()
		out := make([]attemptView, len(list))
		for i, a := range list {
			out[i] = newAttemptView(a, now)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /attempts/{attemptID}/preview-score
func PreviewScoreHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		score, err := eng.PreviewScore(r.Context(), id)
		if err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"attempt_id": id, "score": score})
	}
}
