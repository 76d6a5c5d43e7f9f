package http

import (
	"net/http"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"

	authmw "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/profile"
)

type signupReq struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	FullName     string `json:"full_name" validate:"required,max=200"`
	Age          int    `json:"age" validate:"required,gte=18,lte=100"`
	DateDeployed string `json:"date_deployed" validate:"required,datetime=2006-01-02"`
	Designation  string `json:"designation" validate:"required,max=100"`
	StoreArea    string `json:"store_area" validate:"required,max=100"`
}

// POST /auth/signup registers an examiner and signs them in.
func SignupHandler(users *profile.Repo, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}
		var in profile.Signup
		if err := copier.Copy(&in, &req); err != nil {
			httpError(w, r, err)
			return
		}
		ex, err := users.CreateExaminer(r.Context(), in)
		if err != nil {
			httpError(w, r, err)
			return
		}
		tok, err := authSvc.IssueJWT(ex.ID, profile.RoleExaminer)
		if err != nil {
			httpError(w, r, err)
			return
		}
		log.Info().Str("user_id", ex.ID).Msg("examiner registered")
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"access_token": tok,
			"user_id":      ex.ID,
			"role":         profile.RoleExaminer,
			"examiner":     ex,
		})
	}
}

type createAdminReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// POST /admin/admins
func CreateAdminHandler(users *profile.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAdminReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}
		u, err := users.CreateUser(r.Context(), req.Email, req.Password, profile.RoleAdmin)
		if err != nil {
			httpError(w, r, err)
			return
		}
		log.Info().Str("user_id", u.ID).Str("by", authmw.SubjectFromContext(r.Context())).Msg("admin created")
		writeJSON(w, http.StatusCreated, u)
	}
}
