package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
	"github.com/mind-engage/examportal/internal/report"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("exam_type", func(fl validator.FieldLevel) bool {
		return exam.ExamType(fl.Field().String()).Valid()
	})
	return v
}

// decode reads a JSON body into dst and runs struct validation.
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: bad json: %v", errBadRequest, err)
	}
	return validate.Struct(dst)
}

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, errBadRequest),
		errors.Is(err, exam.ErrUnknownExamType), errors.Is(err, exam.ErrInvalidQuestion),
		errors.Is(err, profile.ErrInvalidSettings), errors.Is(err, profile.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, exam.ErrNotFound), errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrInsufficientQuestions), errors.Is(err, exam.ErrAttemptAlreadyFinalized),
		errors.Is(err, exam.ErrConflict), errors.Is(err, profile.ErrEmailTaken), errors.Is(err, report.ErrNotFinalized):
		return http.StatusConflict
	case errors.Is(err, exam.ErrInvalidAnswerFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exam.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func httpError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	http.Error(w, msg, status)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
