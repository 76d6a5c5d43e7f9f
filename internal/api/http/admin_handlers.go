package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	authmw "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
	syncx "github.com/mind-engage/examportal/internal/sync"
)

// GET /settings
func GetSettingsHandler(users *profile.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := users.Settings(r.Context())
		if err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type settingsReq struct {
	DefaultTime int  `json:"default_time" validate:"required,gt=0,lte=600"`
	WarningTime int  `json:"warning_time" validate:"gte=0"`
	AutoSubmit  bool `json:"auto_submit"`
}

// PUT /admin/settings
func SaveSettingsHandler(users *profile.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}
		s, err := users.SaveSettings(r.Context(), profile.Settings{
			DefaultTime: req.DefaultTime,
			WarningTime: req.WarningTime,
			AutoSubmit:  req.AutoSubmit,
		})
		if err != nil {
			httpError(w, r, err)
			return
		}
		log.Info().Str("by", authmw.SubjectFromContext(r.Context())).
			Int("default_time", s.DefaultTime).Int("warning_time", s.WarningTime).Msg("exam settings saved")
		writeJSON(w, http.StatusOK, s)
	}
}

type dashboard struct {
	Examiners      int                   `json:"examiners"`
	Questions      map[exam.ExamType]int `json:"questions"`
	RecentAttempts []attemptView         `json:"recent_attempts"`
}

// GET /admin/dashboard
func DashboardHandler(users *profile.Repo, questions exam.QuestionStore, eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			d      dashboard
			recent []exam.Attempt
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() (err error) {
			d.Examiners, err = users.CountExaminers(ctx)
			return err
		})
		g.Go(func() (err error) {
			d.Questions, err = questionCounts(ctx, questions)
			return err
		})
		g.Go(func() (err error) {
			done := true
			recent, err = eng.History(ctx, exam.AttemptListOpts{Completed: &done, ByCompletion: true, Limit: 10})
			return err
		})
		if err := g.Wait(); err != nil {
			httpError(w, r, err)
			return
		}
		now := eng.Clock().Now()
		d.RecentAttempts = make([]attemptView, 0, len(recent))
		for _, a := range recent {
			d.RecentAttempts = append(d.RecentAttempts, newAttemptView(a, now))
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// GET /admin/examiners
func ListExaminersHandler(users *profile.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListExaminers(r.Context())
		if err != nil {
			httpError(w, r, err)
			return
		}
		if list == nil {
			list = []profile.Examiner{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type examinerDetail struct {
	profile.Examiner
	Attempts []attemptView `json:"attempts"`
}

// GET /admin/examiners/{userID}
func GetExaminerHandler(users *profile.Repo, eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		ex, err := users.GetExaminer(r.Context(), id)
		if err != nil {
			httpError(w, r, err)
			return
		}
		list, err := eng.History(r.Context(), exam.AttemptListOpts{UserID: id, ByCompletion: true})
		if err != nil {
			httpError(w, r, err)
			return
		}
		out := examinerDetail{Examiner: ex, Attempts: make([]attemptView, 0, len(list))}
		now := eng.Clock().Now()
		for _, a := range list {
			out.Attempts = append(out.Attempts, newAttemptView(a, now))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type eventView struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// GET /admin/attempts/{attemptID}/events
// Lifecycle events recorded for one attempt, oldest first.
func AttemptEventsHandler(events *syncx.EventRepo, eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if _, err := eng.Attempt(r.Context(), id); err != nil {
			httpError(w, r, err)
			return
		}
		list, err := events.ByKey(r.Context(), id)
		if err != nil {
			httpError(w, r, err)
			return
		}
		out := make([]eventView, 0, len(list))
		for _, e := range list {
			v := eventView{Seq: e.Seq, SiteID: e.SiteID, Type: e.Type, CreatedAt: e.CreatedAt}
			if json.Valid([]byte(e.DataJSON)) {
				v.Data = json.RawMessage(e.DataJSON)
			}
			out = append(out, v)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
