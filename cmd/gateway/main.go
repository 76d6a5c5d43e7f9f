package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/examportal/internal/api/http"
	auth "github.com/mind-engage/examportal/internal/auth/middleware"
	"github.com/mind-engage/examportal/internal/config"
	"github.com/mind-engage/examportal/internal/db"
	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/logger"
	"github.com/mind-engage/examportal/internal/profile"
	"github.com/mind-engage/examportal/internal/storage"
	syncx "github.com/mind-engage/examportal/internal/sync"
)

func main() {
	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Str("mode", string(cfg.Mode)).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("db open failed")
	}
	defer dbh.Close()

	store := exam.NewSQLStore(dbh)
	users := profile.NewRepo(dbh)
	events := syncx.NewEventRepo(dbh)
	recorder := syncx.NewRecorder(events, cfg.SiteID)
	engine := exam.NewEngine(store, store,
		exam.WithStoreTimeout(cfg.StoreTimeout),
		exam.WithRecorder(recorder),
		exam.WithLogger(log.Logger.With().Str("component", "exam").Logger()),
	)
	watcher := exam.NewWatcher(engine)
	defer watcher.Close()
	resumeSessions(ctx, engine, watcher)

	blobs, err := blobStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.BlobDriver).Msg("blob store")
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Auth:        auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
			Users:       users,
			Questions:   store,
			Engine:      engine,
			Watcher:     watcher,
			Blobs:       blobs,
			Events:      events,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("mode", string(cfg.Mode)).Str("db", cfg.DBDriver).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("bye")
}

// resumeSessions re-arms the countdown for attempts left open by a previous run.
// Attempts whose deadline passed while the server was down are expired by Track.
func resumeSessions(ctx context.Context, engine *exam.Engine, watcher *exam.Watcher) {
	open := false
	list, err := engine.History(ctx, exam.AttemptListOpts{Completed: &open, Limit: 500})
	if err != nil {
		log.Warn().Err(err).Msg("resume sessions: list open attempts")
		return
	}
	for _, a := range list {
		watcher.Track(a)
	}
	if len(list) > 0 {
		log.Info().Int("attempts", len(list)).Msg("resumed exam sessions")
	}
}

// blobStore returns nil when report archiving is disabled.
func blobStore(cfg config.Config) (storage.BlobStore, error) {
	switch cfg.BlobDriver {
	case "none", "":
		return nil, nil
	case "supabase":
		return storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.BucketName)
	default:
		return storage.NewFSStore(cfg.BlobBasePath)
	}
}
