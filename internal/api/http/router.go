package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	authmw "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
	"github.com/mind-engage/examportal/internal/rbac"
	"github.com/mind-engage/examportal/internal/storage"
	syncx "github.com/mind-engage/examportal/internal/sync"
)

// Deps is everything the HTTP surface needs. Blobs and Events may be nil.
type Deps struct {
	Auth      *authmw.AuthService
	Users     *profile.Repo
	Questions exam.QuestionStore
	Engine    *exam.Engine
	Watcher   *exam.Watcher
	Blobs     storage.BlobStore
	Events    *syncx.EventRepo

	CORSOrigins    []string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog, middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Post("/auth/signup", SignupHandler(d.Users, d.Auth))
	r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Users))

	clock := d.Engine.Clock()

	// JWT -> stored role -> RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth), authmw.AttachRoleFromDB(d.Users))

		pr.With(rbac.Require(rbac.PermPasswordChange)).
			Post("/users/change-password", ChangePasswordHandler(d.Users))
		pr.With(rbac.Require(rbac.PermSettingsView)).
			Get("/settings", GetSettingsHandler(d.Users))
		pr.With(rbac.Require(rbac.PermProfileViewOwn)).
			Get("/profile", ProfileHandler(d.Users, d.Engine))

		pr.Route("/attempts", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.PermAttemptCreate)).
				Post("/", StartAttemptHandler(d.Engine, d.Watcher))
			ar.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
				Get("/", ListAttemptsHandler(d.Engine))
			ar.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
				Get("/{attemptID}", GetAttemptHandler(d.Engine))
			ar.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
				Get("/{attemptID}/remaining", RemainingTimeHandler(d.Engine, d.Users))
			ar.With(rbac.Require(rbac.PermAttemptSave)).
				Put("/{attemptID}/answers/{questionID}", RecordAnswerHandler(d.Engine))
			ar.With(rbac.Require(rbac.PermAttemptSubmit)).
				Post("/{attemptID}/submit", SubmitAttemptHandler(d.Engine, d.Watcher))
			ar.With(rbac.Require(rbac.PermAttemptPreview)).
				Get("/{attemptID}/preview-score", PreviewScoreHandler(d.Engine))
			ar.With(rbac.RequireAny(rbac.PermReportViewOwn, rbac.PermReportViewAll)).
				Get("/{attemptID}/report.pdf", ReportHandler(d.Engine, d.Users, d.Blobs))
		})

		pr.Route("/questions", func(qr chi.Router) {
			qr.Use(rbac.Require(rbac.PermQuestionManage))
			qr.Get("/", ListQuestionsHandler(d.Questions))
			qr.Post("/", CreateQuestionHandler(d.Questions, clock))
			qr.Post("/import", ImportQuestionsHandler(d.Questions, clock))
			qr.Get("/counts", QuestionCountsHandler(d.Questions))
			qr.Put("/{questionID}", UpdateQuestionHandler(d.Questions))
			qr.Delete("/{questionID}", DeleteQuestionHandler(d.Questions))
		})

		pr.Route("/admin", func(adm chi.Router) {
			adm.With(rbac.Require(rbac.PermSettingsView)).
				Get("/settings", GetSettingsHandler(d.Users))
			adm.With(rbac.Require(rbac.PermSettingsManage)).
				Put("/settings", SaveSettingsHandler(d.Users))
			adm.With(rbac.Require(rbac.PermDashboardView)).
				Get("/dashboard", DashboardHandler(d.Users, d.Questions, d.Engine))
			adm.With(rbac.Require(rbac.PermExaminersView)).
				Get("/examiners", ListExaminersHandler(d.Users))
			adm.With(rbac.Require(rbac.PermExaminersView)).
				Get("/examiners/{userID}", GetExaminerHandler(d.Users, d.Engine))
			adm.With(rbac.Require(rbac.PermAdminsCreate)).
				Post("/admins", CreateAdminHandler(d.Users))
			if d.Events != nil {
				adm.With(rbac.Require(rbac.PermAttemptViewAll)).
					Get("/attempts/{attemptID}/events", AttemptEventsHandler(d.Events, d.Engine))
			}
		})

		if d.Blobs != nil {
			pr.Route("/reports", func(rr chi.Router) {
				rr.Use(rbac.Require(rbac.PermReportViewAll))
				MountReportArchive(rr, d.Blobs)
			})
		}
	})
	return r
}

// accessLog writes one structured line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("http")
		}()
		next.ServeHTTP(ww, r)
	})
}
