package http

import (
	"net/http"

	authmw "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
)

type profileView struct {
	profile.Examiner
	TotalAttempts     int `json:"total_attempts"`
	CompletedAttempts int `json:"completed_attempts"`
	PassedAttempts    int `json:"passed_attempts"`
}

// GET /profile
// The caller's own examiner record with attempt counts. Admins have no profile and get 404.
func ProfileHandler(users *profile.Repo, eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := authmw.PrincipalFromContext(r.Context())
		ex, err := users.GetExaminer(r.Context(), p.ID)
		if err != nil {
			httpError(w, r, err)
			return
		}
		list, err := eng.History(r.Context(), exam.AttemptListOpts{UserID: p.ID})
		if err != nil {
			httpError(w, r, err)
			return
		}
		out := profileView{Examiner: ex, TotalAttempts: len(list)}
		for _, a := range list {
			if !a.Finalized() {
				continue
			}
			out.CompletedAttempts++
			if a.Passed() {
				out.PassedAttempts++
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
