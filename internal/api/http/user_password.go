package http

import (
	"errors"
	"net/http"

	authmw "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/profile"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// POST /users/change-password
func ChangePasswordHandler(users *profile.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req changePasswordReq
		if err := decode(r, &req); err != nil {
			httpError(w, r, err)
			return
		}

		err := users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
		if errors.Is(err, profile.ErrInvalidCredentials) {
			http.Error(w, "incorrect old password", http.StatusForbidden)
			return
		}
		if err != nil {
			httpError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
