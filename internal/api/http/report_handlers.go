package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
	"github.com/mind-engage/examportal/internal/report"
	"github.com/mind-engage/examportal/internal/storage"
)

// GET /attempts/{attemptID}/report.pdf
// The rendered bytes are archived when a blob store is configured; archive failures
// are logged and do not fail the download.
func ReportHandler(eng *exam.Engine, users *profile.Repo, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownedAttempt(eng, r)
		if err != nil {
			httpError(w, r, err)
			return
		}
		if !a.Finalized() {
			// an overdue attempt is finalized here rather than refused
			if _, err := eng.RemainingTime(r.Context(), a.ID); err != nil {
				httpError(w, r, err)
				return
			}
			if a, err = eng.Attempt(r.Context(), a.ID); err != nil {
				httpError(w, r, err)
				return
			}
		}
		qs, err := eng.Questions(r.Context(), a)
		if err != nil {
			httpError(w, r, err)
			return
		}
		var ex *profile.Examiner
		switch p, err := users.GetExaminer(r.Context(), a.UserID); {
		case err == nil:
			ex = &p
		case !errors.Is(err, profile.ErrNotFound):
			httpError(w, r, err)
			return
		}
		data, err := report.FromAttempt(a, qs, ex)
		if err != nil {
			httpError(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := report.Render(&buf, data); err != nil {
			httpError(w, r, err)
			return
		}
		if bs != nil {
			if _, err := bs.Put(storage.ReportKey(a.ID), bytes.NewReader(buf.Bytes())); err != nil {
				log.Warn().Err(err).Str("attempt_id", a.ID).Msg("report archive failed")
			}
		}
		name := "exam-report-" + a.ID + "-" + data.DateTaken.UTC().Format("2006-01-02") + ".pdf"
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		_, _ = w.Write(buf.Bytes())
	}
}
